package credential

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"warden/cmd/security/password"
)

// Service orchestrates the password engine and a Store.
//
// It is the only place where plaintext passwords meet persistence: Enroll
// validates then hashes, Check verifies and transparently upgrades hashes
// produced with weaker Argon2id parameters.
type Service struct {
	engine *password.Engine
	store  Store
	now    func() time.Time

	// dummy is verified against when a subject is unknown so both paths pay
	// one Argon2id computation.
	dummy password.SaltedHash
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service. It computes one throwaway hash up front for
// unknown-subject timing parity, so construction costs one Argon2id run.
func NewService(engine *password.Engine, store Store, opts ...ServiceOption) (*Service, error) {
	if engine == nil || store == nil {
		return nil, fmt.Errorf("credential: nil engine or store")
	}

	s := &Service{
		engine: engine,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}

	dummy, err := engine.Hash("warden-dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("credential: dummy hash: %w", err)
	}
	s.dummy = dummy
	return s, nil
}

// Engine returns the underlying password engine.
func (s *Service) Engine() *password.Engine { return s.engine }

// CheckResult is the outcome of Check.
// RehashErr is set when the password verified but persisting the upgraded
// hash failed; the check itself still succeeded.
type CheckResult struct {
	Verified  bool
	Rehashed  bool
	RehashErr error
}

// Evaluate validates a password and adds the advisory estimate. It never
// hashes and never touches the store.
func (s *Service) Evaluate(pw string, userInputs ...string) (password.Report, password.Estimate) {
	return s.engine.Validate(pw), password.EstimateStrength(pw, userInputs...)
}

// Enroll validates pw against the policy, hashes it and stores a new
// credential for subject. A rejected password yields PolicyError with the full
// report; nothing is hashed in that case.
func (s *Service) Enroll(ctx context.Context, subject, pw string) (Credential, error) {
	const op = "credential.Enroll"

	if !validSubject(subject) {
		return Credential{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid subject"}
	}
	if err := s.checkLength(op, pw); err != nil {
		return Credential{}, err
	}

	report := s.engine.Validate(pw)
	if !report.Valid {
		return Credential{}, PolicyError{Op: op, Report: report}
	}

	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	secret, err := s.engine.Hash(pw)
	if err != nil {
		return Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.store.Create(ctx, CreateInput{
		Subject:  subject,
		Secret:   secret,
		Strength: report.Strength,
		Now:      s.now(),
	})
}

// Check verifies pw for subject. Unknown subjects return Verified=false after
// a dummy verification; they are not reported as errors.
func (s *Service) Check(ctx context.Context, subject, pw string) (CheckResult, error) {
	const op = "credential.Check"

	if err := s.checkLength(op, pw); err != nil {
		return CheckResult{}, err
	}

	cred, err := s.store.GetBySubject(ctx, subject)
	if err != nil {
		if IsNotFound(err) {
			_ = s.engine.Verify(pw, s.dummy.Hash, s.dummy.Salt)
			return CheckResult{}, nil
		}
		return CheckResult{}, err
	}

	if !s.engine.Verify(pw, cred.Hash, cred.Salt) {
		return CheckResult{}, nil
	}

	out := CheckResult{Verified: true}
	if !s.engine.NeedsRehash(cred.Hash) {
		return out, nil
	}

	secret, err := s.engine.Hash(pw)
	if err != nil {
		out.RehashErr = err
		return out, nil
	}
	if err := s.store.UpdateHash(ctx, cred.ID, secret, s.now()); err != nil {
		out.RehashErr = err
		return out, nil
	}
	out.Rehashed = true
	return out, nil
}

func (s *Service) checkLength(op, pw string) error {
	maxLen := s.engine.Config().Policy.MaxLength
	if maxLen > 0 && utf8.RuneCountInString(pw) > maxLen {
		return OpError{Op: op, Kind: ErrPasswordTooLong}
	}
	return nil
}
