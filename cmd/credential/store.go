package credential

import (
	"context"
	"time"

	"warden/cmd/security/password"
)

// Credential is a stored password credential for one subject.
// Hash and Salt are the engine's SaltedHash; both are required to verify.
type Credential struct {
	ID          string
	Subject     string
	SubjectNorm string

	Hash     string
	Salt     string
	Strength int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Secret returns the credential's hash/salt pair.
func (c Credential) Secret() password.SaltedHash {
	return password.SaltedHash{Hash: c.Hash, Salt: c.Salt}
}

// CreateInput describes a credential to persist. The password has already been
// validated and hashed; stores never see plaintext.
type CreateInput struct {
	Subject  string
	Secret   password.SaltedHash
	Strength int
	Now      time.Time
}

// Store is the credential persistence boundary.
type Store interface {
	// Create persists a new credential. Returns ConflictError{Field:"subject"}
	// when the normalized subject is already enrolled.
	Create(ctx context.Context, in CreateInput) (Credential, error)

	// GetBySubject loads a credential by (normalized) subject.
	// Returns ErrNotFound when absent.
	GetBySubject(ctx context.Context, subject string) (Credential, error)

	// UpdateHash replaces the stored hash/salt (rehash on login).
	// Returns ErrNotFound when the id is unknown.
	UpdateHash(ctx context.Context, id string, secret password.SaltedHash, now time.Time) error

	Close()
}

func validateCreateInput(op string, in CreateInput) error {
	if !validSubject(in.Subject) {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid subject"}
	}
	if in.Secret.Hash == "" || in.Secret.Salt == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing hash or salt"}
	}
	return nil
}
