package credential

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"warden/cmd/security/password"
)

// pgxQuerier is the subset of *pgxpool.Pool the store needs. pgxmock pools
// satisfy it too.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements credential persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Unique violations on subject_norm map to ConflictError{Field:"subject"}.
type PostgresStore struct {
	db     pgxQuerier
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the credential store (default "warden").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("credential: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("credential: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. db is usually a *pgxpool.Pool.
func NewPostgresStore(db pgxQuerier, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		db:     db,
		schema: "warden",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("credential: nil pool")
	}
	return st, nil
}

// EnsureSchema creates the schema and credentials table if missing. It is
// idempotent and safe to call on every boot.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	creds := pgIdent(s.schema, "credentials")

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + creds + ` (
		     id            text PRIMARY KEY,
		     subject       text NOT NULL,
		     subject_norm  text NOT NULL,
		     password_hash text NOT NULL,
		     salt          text NOT NULL,
		     strength      integer NOT NULL CHECK (strength BETWEEN 0 AND 100),
		     created_at    timestamptz NOT NULL,
		     updated_at    timestamptz NOT NULL,
		     CONSTRAINT uq_credentials_subject_norm UNIQUE (subject_norm)
		   )`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("credential: ensure schema: %w", err)
		}
	}
	return nil
}

// Create inserts a new credential row.
func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Credential, error) {
	const op = "credential.Create"

	if s == nil || s.db == nil {
		return Credential{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	out := Credential{
		ID:          id,
		Subject:     strings.TrimSpace(in.Subject),
		SubjectNorm: NormalizeSubject(in.Subject),
		Hash:        in.Secret.Hash,
		Salt:        in.Secret.Salt,
		Strength:    in.Strength,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	creds := pgIdent(s.schema, "credentials")

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+creds+` (
		     id, subject, subject_norm, password_hash, salt, strength, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		out.ID,
		out.Subject,
		out.SubjectNorm,
		out.Hash,
		out.Salt,
		out.Strength,
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Credential{}, ConflictError{Op: op, Field: field}
		}
		return Credential{}, err
	}

	return out, nil
}

// GetBySubject loads a credential by normalized subject.
func (s *PostgresStore) GetBySubject(ctx context.Context, subject string) (Credential, error) {
	const op = "credential.GetBySubject"

	if s == nil || s.db == nil {
		return Credential{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	norm := NormalizeSubject(subject)
	if norm == "" {
		return Credential{}, ErrNotFound
	}

	creds := pgIdent(s.schema, "credentials")

	var out Credential
	err := s.db.QueryRow(ctx,
		`SELECT id, subject, subject_norm, password_hash, salt, strength, created_at, updated_at
		   FROM `+creds+`
		  WHERE subject_norm = $1`,
		norm,
	).Scan(
		&out.ID,
		&out.Subject,
		&out.SubjectNorm,
		&out.Hash,
		&out.Salt,
		&out.Strength,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	return out, nil
}

// UpdateHash replaces hash and salt for a credential id.
func (s *PostgresStore) UpdateHash(ctx context.Context, id string, secret password.SaltedHash, now time.Time) error {
	const op = "credential.UpdateHash"

	if s == nil || s.db == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return pgInvalid(op, "missing id")
	}
	if secret.Hash == "" || secret.Salt == "" {
		return pgInvalid(op, "missing hash or salt")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	creds := pgIdent(s.schema, "credentials")

	ct, err := s.db.Exec(ctx,
		`UPDATE `+creds+`
		    SET password_hash = $1,
		        salt = $2,
		        updated_at = $3
		  WHERE id = $4`,
		secret.Hash, secret.Salt, now, id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op: the pool belongs to the caller.
func (s *PostgresStore) Close() {}

// ---- helpers ----

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch {
	case c == "uq_credentials_subject_norm", strings.Contains(c, "subject"):
		return "subject", true
	case c == "credentials_pkey":
		return "id", true
	default:
		return "unknown", true
	}
}
