package credential

import (
	"context"
	"strings"
	"sync"
	"time"

	"warden/cmd/security/password"
)

// MemoryStore is an in-process Store used when no database is configured and
// in tests. Contents are lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	bySubject map[string]Credential // key: subject_norm
	idIndex   map[string]string     // id -> subject_norm
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySubject: make(map[string]Credential),
		idIndex:   make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Credential, error) {
	const op = "credential.Create"

	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	if err := validateCreateInput(op, in); err != nil {
		return Credential{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return Credential{}, err
	}

	c := Credential{
		ID:          id,
		Subject:     strings.TrimSpace(in.Subject),
		SubjectNorm: NormalizeSubject(in.Subject),
		Hash:        in.Secret.Hash,
		Salt:        in.Secret.Salt,
		Strength:    in.Strength,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySubject[c.SubjectNorm]; exists {
		return Credential{}, ConflictError{Op: op, Field: "subject"}
	}
	s.bySubject[c.SubjectNorm] = c
	s.idIndex[c.ID] = c.SubjectNorm
	return c, nil
}

func (s *MemoryStore) GetBySubject(ctx context.Context, subject string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.bySubject[NormalizeSubject(subject)]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpdateHash(ctx context.Context, id string, secret password.SaltedHash, now time.Time) error {
	const op = "credential.UpdateHash"

	if err := ctx.Err(); err != nil {
		return err
	}
	if secret.Hash == "" || secret.Salt == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing hash or salt"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	norm, ok := s.idIndex[id]
	if !ok {
		return ErrNotFound
	}
	c := s.bySubject[norm]
	c.Hash = secret.Hash
	c.Salt = secret.Salt
	c.UpdatedAt = now
	s.bySubject[norm] = c
	return nil
}

func (s *MemoryStore) Close() {}
