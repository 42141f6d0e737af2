package password

import "testing"

func BenchmarkHash_DefaultConfig(b *testing.B) {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		b.Fatalf("NewEngine error: %v", err)
	}
	pw := "this is a Strong password 123!"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Hash(pw); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}

func BenchmarkVerify_DefaultConfig(b *testing.B) {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		b.Fatalf("NewEngine error: %v", err)
	}
	pw := "this is a Strong password 123!"
	sh, err := e.Hash(pw)
	if err != nil {
		b.Fatalf("Hash error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !e.Verify(pw, sh.Hash, sh.Salt) {
			b.Fatalf("Verify failed")
		}
	}
}

func BenchmarkValidate(b *testing.B) {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		b.Fatalf("NewEngine error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Validate("this is a Strong password 123!")
	}
}
