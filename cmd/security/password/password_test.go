package password

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

type failingReader struct{}

func (failingReader) Read(_ []byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestHashAndVerify_OK(t *testing.T) {
	e := newTestEngine(t)

	sh, err := e.Hash("this is a Strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(sh.Hash, "$argon2id$v=19$m=65536,t=4,p=3$") {
		t.Fatalf("unexpected PHC prefix: %s", sh.Hash)
	}
	if len(sh.Salt) != 64 {
		t.Fatalf("salt length=%d want 64 hex chars", len(sh.Salt))
	}

	if !e.Verify("this is a Strong password 123!", sh.Hash, sh.Salt) {
		t.Fatalf("expected match")
	}
	if e.Verify("this is a strong password 123!", sh.Hash, sh.Salt) {
		t.Fatalf("expected mismatch for different password")
	}
}

func TestVerify_RequiresMatchingSalt(t *testing.T) {
	e := newTestEngine(t)

	sh, err := e.Hash("Abcdef1!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	other := strings.Repeat("0", 64)
	if e.Verify("Abcdef1!", sh.Hash, other) {
		t.Fatalf("hash must not verify under a different salt")
	}
	if e.Verify("Abcdef1!", sh.Hash, "") {
		t.Fatalf("hash must not verify without its salt")
	}
}

func TestHash_SaltsAreUnique(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Hash("same-Password-1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := e.Hash("same-Password-1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a.Salt == b.Salt {
		t.Fatalf("expected distinct salts")
	}
	if a.Hash == b.Hash {
		t.Fatalf("expected distinct hashes")
	}
}

func TestHashWithSalt(t *testing.T) {
	e := newTestEngine(t)
	salt := strings.Repeat("ab", 32)

	sh, err := e.HashWithSalt("Abcdef1!", salt)
	if err != nil {
		t.Fatalf("HashWithSalt error: %v", err)
	}
	if sh.Salt != salt {
		t.Fatalf("salt not preserved: %q", sh.Salt)
	}
	if !e.Verify("Abcdef1!", sh.Hash, salt) {
		t.Fatalf("expected match")
	}

	for _, bad := range []string{"", "abcd", strings.Repeat("zz", 32), strings.Repeat("ab", 31)} {
		_, err := e.HashWithSalt("Abcdef1!", bad)
		if !errors.Is(err, ErrInvalidSalt) || !IsHashingError(err) {
			t.Fatalf("salt %q: expected HashingError(ErrInvalidSalt), got %v", bad, err)
		}
	}
}

func TestHash_EntropyFailure(t *testing.T) {
	e, err := NewEngine(DefaultConfig(), WithRandom(failingReader{}))
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}

	_, err = e.Hash("Abcdef1!")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrEntropy) {
		t.Fatalf("expected ErrEntropy, got %v", err)
	}
	var he *HashingError
	if !errors.As(err, &he) || he.Op != "Hash" {
		t.Fatalf("expected *HashingError with Op=Hash, got %#v", err)
	}
}

func TestVerify_MalformedHashes(t *testing.T) {
	e := newTestEngine(t)
	salt := strings.Repeat("ab", 32)

	cases := []string{
		"",
		"not-a-hash",
		"$2a$10$abcdefghijklmnopqrstuv", // bcrypt
		"$argon2i$v=19$m=65536,t=4,p=3$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=65536,t=4,p=3$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=x,t=4,p=3$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=65536,t=4,p=3$!!!$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=65536,t=4,p=3$c2FsdHNhbHRzYWx0$",
	}
	for _, h := range cases {
		if e.Verify("Abcdef1!", h, salt) {
			t.Fatalf("malformed hash %q must not verify", h)
		}
	}
}

func TestVerify_RefusesOversizedParams(t *testing.T) {
	e := newTestEngine(t)

	// 1 GiB memory is far above 2x the configured 64 MiB.
	h := "$argon2id$v=19$m=1048576,t=4,p=3$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA"
	if e.Verify("Abcdef1!", h, strings.Repeat("ab", 32)) {
		t.Fatalf("oversized params must not verify")
	}
}

func TestNeedsRehash(t *testing.T) {
	e := newTestEngine(t)

	sh, err := e.Hash("Abcdef1!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if e.NeedsRehash(sh.Hash) {
		t.Fatalf("fresh hash must not need rehash")
	}

	stronger := DefaultConfig()
	stronger.Params.Iterations = 5
	e2, err := NewEngine(stronger)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	if !e2.NeedsRehash(sh.Hash) {
		t.Fatalf("expected rehash when iterations increased")
	}
	if !e2.Verify("Abcdef1!", sh.Hash, sh.Salt) {
		t.Fatalf("older hash must still verify under stronger config")
	}
	if !e.NeedsRehash("garbage") {
		t.Fatalf("malformed hash must need rehash")
	}
}

func TestEngine_SharedAcrossGoroutines(t *testing.T) {
	e := newTestEngine(t)

	stored, err := e.Hash("Shared-Secret-9")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	const workers = 4
	errs := make(chan string, workers*3)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if r := e.Validate("Abcdef1!"); !r.Valid || r.Strength != 69 {
				errs <- "Validate returned an unexpected report"
			}
			if !e.Verify("Shared-Secret-9", stored.Hash, stored.Salt) {
				errs <- "Verify rejected the shared hash"
			}
			sh, err := e.Hash("Worker-Secret-7")
			if err != nil {
				errs <- "Hash failed: " + err.Error()
				return
			}
			if !e.Verify("Worker-Secret-7", sh.Hash, sh.Salt) {
				errs <- "Verify rejected a hash made on this goroutine"
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Fatal(msg)
	}
}
