// Package password enforces warden's password policy and produces salted
// Argon2id hashes.
//
// An Engine offers three operations:
// - Validate: every policy rule is checked and all violations are reported
//   as ViolationKind tags together with a 0..100 strength score
// - Hash: a fresh 32-byte hex salt is prefixed to the password and the
//   result is hashed into a self-describing PHC string
// - Verify: the salted material is rebuilt and compared in constant time
//
// Security notes:
// - Hash strings are treated as untrusted input during Verify; malformed or
//   oversized parameters simply fail verification.
// - Argon2id cost has a floor (64 MiB, 4 iterations, 3 lanes) enforced by NewEngine.
// - The package never logs and never stores anything.
package password
