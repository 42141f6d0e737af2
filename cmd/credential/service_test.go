package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"warden/cmd/security/password"
)

func mustEngine(t *testing.T, mutate func(*password.Config)) *password.Engine {
	t.Helper()

	cfg := password.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := password.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func mustService(t *testing.T, e *password.Engine, st Store) *Service {
	t.Helper()

	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(e, st, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_EnrollThenCheck(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	svc := mustService(t, mustEngine(t, nil), st)

	c, err := svc.Enroll(ctx, "Frank@Example.com", "Abcdef1!")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if c.Strength != 69 {
		t.Fatalf("expected strength 69, got %d", c.Strength)
	}
	if len(c.Salt) != 64 || !strings.HasPrefix(c.Hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected secret: hash=%q salt=%q", c.Hash, c.Salt)
	}

	res, err := svc.Check(ctx, "frank@example.com", "Abcdef1!")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Verified || res.Rehashed {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = svc.Check(ctx, "frank@example.com", "Abcdef1?")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Verified {
		t.Fatalf("wrong password verified")
	}
}

func TestService_Enroll_PolicyErrorCarriesReport(t *testing.T) {
	st := NewMemoryStore()
	svc := mustService(t, mustEngine(t, nil), st)

	_, err := svc.Enroll(context.Background(), "grace", "aaaaaaaa")
	if !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy, got %v", err)
	}
	pe, ok := AsPolicyError(err)
	if !ok {
		t.Fatalf("expected PolicyError, got %T", err)
	}
	want := []password.ViolationKind{
		password.MissingUppercase,
		password.MissingDigit,
		password.MissingSpecialChar,
		password.RepeatedCharRun,
	}
	if len(pe.Report.Violations) != len(want) {
		t.Fatalf("violations=%v want=%v", pe.Report.Violations, want)
	}
	for i := range want {
		if pe.Report.Violations[i] != want[i] {
			t.Fatalf("violations=%v want=%v", pe.Report.Violations, want)
		}
	}

	if _, err := st.GetBySubject(context.Background(), "grace"); !IsNotFound(err) {
		t.Fatalf("rejected password must not be stored, got %v", err)
	}
}

func TestService_Enroll_DuplicateSubject(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t, mustEngine(t, nil), NewMemoryStore())

	if _, err := svc.Enroll(ctx, "heidi", "Abcdef1!"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := svc.Enroll(ctx, " HEIDI ", "Xyzabc9#"); !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_Enroll_InvalidSubjectAndTooLong(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t, mustEngine(t, func(c *password.Config) { c.Policy.MaxLength = 16 }), NewMemoryStore())

	if _, err := svc.Enroll(ctx, "   ", "Abcdef1!"); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.Enroll(ctx, strings.Repeat("s", maxSubjectRunes+1), "Abcdef1!"); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input for long subject, got %v", err)
	}
	if _, err := svc.Enroll(ctx, "ivan", "Abcdef1!Abcdef1!x"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := svc.Check(ctx, "ivan", "Abcdef1!Abcdef1!x"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong from Check, got %v", err)
	}
}

func TestService_Check_UnknownSubject(t *testing.T) {
	svc := mustService(t, mustEngine(t, nil), NewMemoryStore())

	res, err := svc.Check(context.Background(), "nobody", "Abcdef1!")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Verified {
		t.Fatalf("unknown subject must not verify")
	}
}

func TestService_Check_RehashesWeakerHash(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	old := mustService(t, mustEngine(t, nil), st)
	c, err := old.Enroll(ctx, "judy", "Abcdef1!")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	stronger := mustEngine(t, func(cfg *password.Config) { cfg.Params.Iterations = password.MinIterations + 1 })
	svc := mustService(t, stronger, st)

	res, err := svc.Check(ctx, "judy", "Abcdef1!")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Verified || !res.Rehashed || res.RehashErr != nil {
		t.Fatalf("expected verified+rehashed, got %+v", res)
	}

	got, err := st.GetBySubject(ctx, "judy")
	if err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if got.Hash == c.Hash || got.Salt == c.Salt {
		t.Fatalf("expected a fresh hash and salt after rehash")
	}
	if stronger.NeedsRehash(got.Hash) {
		t.Fatalf("upgraded hash still needs rehash: %s", got.Hash)
	}

	res, err = svc.Check(ctx, "judy", "Abcdef1!")
	if err != nil || !res.Verified || res.Rehashed {
		t.Fatalf("second check: res=%+v err=%v", res, err)
	}
}

func TestService_Evaluate(t *testing.T) {
	svc := mustService(t, mustEngine(t, nil), NewMemoryStore())

	rep, est := svc.Evaluate("Password1!", "kim")
	if rep.Valid || !rep.Has(password.CommonPassword) {
		t.Fatalf("expected common_password violation, got %+v", rep)
	}
	if est.Score < 0 || est.Score > 4 {
		t.Fatalf("estimate score out of range: %d", est.Score)
	}
}

func TestNewService_RejectsNil(t *testing.T) {
	if _, err := NewService(nil, NewMemoryStore()); err == nil {
		t.Fatalf("expected error for nil engine")
	}
}
