package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"warden/cmd/security/password"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	s, err := NewPostgresStore(mock)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return mock, s
}

func TestPostgresStore_Create_InsertsNormalizedSubject(t *testing.T) {
	mock, s := newMockStore(t)

	secret := testSecret("a")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "warden"\."credentials"`).
		WithArgs(pgxmock.AnyArg(), "Alice@Example.com", "alice@example.com", secret.Hash, secret.Salt, 77, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, err := s.Create(context.Background(), CreateInput{
		Subject:  " Alice@Example.com ",
		Secret:   secret,
		Strength: 77,
		Now:      now,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(got.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", got.ID)
	}
	if got.SubjectNorm != "alice@example.com" || !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected credential: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Create_UniqueViolationIsConflict(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "warden"\."credentials"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_credentials_subject_norm"})

	_, err := s.Create(context.Background(), CreateInput{
		Subject:  "bob",
		Secret:   testSecret("b"),
		Strength: 60,
	})
	var ce ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Field != "subject" || !errors.Is(err, ErrConflict) {
		t.Fatalf("unexpected conflict: %+v", ce)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Create_RejectsInvalidInput(t *testing.T) {
	_, s := newMockStore(t)

	cases := []CreateInput{
		{Subject: "   ", Secret: testSecret("a")},
		{Subject: "ok", Secret: password.SaltedHash{}},
		{Subject: "bad\x00subject", Secret: testSecret("a")},
	}
	for _, in := range cases {
		if _, err := s.Create(context.Background(), in); !IsInvalidInput(err) {
			t.Fatalf("expected invalid input for %+v, got %v", in, err)
		}
	}
}

func TestPostgresStore_GetBySubject(t *testing.T) {
	mock, s := newMockStore(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	secret := testSecret("c")

	rows := pgxmock.NewRows([]string{
		"id", "subject", "subject_norm", "password_hash", "salt", "strength", "created_at", "updated_at",
	}).AddRow("01ARZ3NDEKTSV4RRFFQ69G5FAV", "Carol", "carol", secret.Hash, secret.Salt, 88, now, now)

	mock.ExpectQuery(`SELECT id, subject, subject_norm, password_hash, salt, strength, created_at, updated_at\s+FROM "warden"\."credentials"`).
		WithArgs("carol").
		WillReturnRows(rows)

	got, err := s.GetBySubject(context.Background(), "  CAROL")
	if err != nil {
		t.Fatalf("GetBySubject returned error: %v", err)
	}
	if got.Subject != "Carol" || got.Strength != 88 || got.Secret() != secret {
		t.Fatalf("unexpected credential: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_GetBySubject_NoRowsIsNotFound(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery(`FROM "warden"\."credentials"`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	if _, err := s.GetBySubject(context.Background(), "ghost"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_UpdateHash(t *testing.T) {
	mock, s := newMockStore(t)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	secret := testSecret("d")

	mock.ExpectExec(`UPDATE "warden"\."credentials"`).
		WithArgs(secret.Hash, secret.Salt, now, "id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE "warden"\."credentials"`).
		WithArgs(secret.Hash, secret.Salt, now, "id-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := s.UpdateHash(context.Background(), "id-1", secret, now); err != nil {
		t.Fatalf("UpdateHash returned error: %v", err)
	}
	if err := s.UpdateHash(context.Background(), "id-2", secret, now); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_EnsureSchema_UsesConfiguredSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	s, err := NewPostgresStore(mock, WithSchema("auth"))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "auth"`).
		WillReturnResult(pgxmock.NewResult("CREATE SCHEMA", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "auth"\."credentials"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithSchema_RejectsBadIdentifiers(t *testing.T) {
	for _, schema := range []string{"", "  ", "1abc", `bad"; DROP`, "a-b"} {
		if _, err := NewPostgresStore(nil, WithSchema(schema)); err == nil {
			t.Fatalf("expected error for schema %q", schema)
		}
	}
}
