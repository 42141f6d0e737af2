// Package credential stores and checks warden credentials.
//
// A credential binds a subject (login name, email, service account) to the
// SaltedHash produced by the password engine. This package owns persistence
// (Postgres or in-memory) and the enroll/check orchestration; policy and
// hashing stay in cmd/security/password.
//
// Plaintext passwords pass through Service methods only and are never stored
// or logged.
package credential
