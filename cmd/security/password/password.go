package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Version = 19 // argon2.Version is 0x13 (19)

	// SaltBytes is the size of the caller-visible salt prefixed to the password.
	SaltBytes = 32
)

// SaltedHash is the durable artifact callers persist. Hash alone is not enough
// to verify: Salt must be stored alongside it.
type SaltedHash struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// Engine validates, scores, hashes and verifies passwords.
// It holds only immutable configuration and is safe for concurrent use.
type Engine struct {
	cfg  Config
	rand io.Reader
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom overrides the secure random source (tests, fault injection).
func WithRandom(r io.Reader) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// NewEngine validates cfg and returns an Engine. Argon2id params below the
// security floor are rejected with ErrInvalidParams.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, rand: rand.Reader}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Validate applies the password policy. See Config.Validate.
func (e *Engine) Validate(password string) Report {
	return e.cfg.Validate(password)
}

// Hash generates a fresh 32-byte salt and hashes salt+password with Argon2id.
func (e *Engine) Hash(password string) (SaltedHash, error) {
	raw := make([]byte, SaltBytes)
	if _, err := io.ReadFull(e.rand, raw); err != nil {
		return SaltedHash{}, &HashingError{Op: "Hash", Err: fmt.Errorf("%w: %v", ErrEntropy, err)}
	}
	return e.hash("Hash", password, hex.EncodeToString(raw))
}

// HashWithSalt hashes salt+password using a caller-supplied salt, which must be
// 64 hex characters (32 bytes). Intended for re-salting flows and tests.
func (e *Engine) HashWithSalt(password, salt string) (SaltedHash, error) {
	b, err := hex.DecodeString(salt)
	if err != nil || len(b) != SaltBytes {
		return SaltedHash{}, &HashingError{Op: "HashWithSalt", Err: ErrInvalidSalt}
	}
	return e.hash("HashWithSalt", password, salt)
}

func (e *Engine) hash(op, password, salt string) (SaltedHash, error) {
	p := e.cfg.Params

	inner := make([]byte, p.SaltLength)
	if _, err := io.ReadFull(e.rand, inner); err != nil {
		return SaltedHash{}, &HashingError{Op: op, Err: fmt.Errorf("%w: %v", ErrEntropy, err)}
	}

	key := argon2.IDKey(
		[]byte(salt+password),
		inner,
		p.Iterations,
		p.MemoryKiB,
		p.Parallelism,
		p.KeyLength,
	)

	b64 := base64.RawStdEncoding
	enc := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(inner),
		b64.EncodeToString(key),
	)

	return SaltedHash{Hash: enc, Salt: salt}, nil
}

// Verify reports whether password matches hash under salt.
// Mismatches, malformed or foreign hashes, and hashes with parameters far above
// the configured ones all return false.
func (e *Engine) Verify(password, hash, salt string) bool {
	params, inner, expected, err := decode(hash)
	if err != nil {
		return false
	}

	// Attacker-controlled hash strings must not buy pathological resource usage.
	if !withinReasonableBounds(params, e.cfg.Params) {
		return false
	}

	key := argon2.IDKey(
		[]byte(salt+password),
		inner,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- expected length is bounded by withinReasonableBounds.
	)

	return subtle.ConstantTimeCompare(key, expected) == 1
}

// NeedsRehash reports whether hash was produced with weaker parameters than the
// engine's current config. Malformed hashes always need a rehash.
func (e *Engine) NeedsRehash(hash string) bool {
	params, _, _, err := decode(hash)
	if err != nil {
		return true
	}

	cur := e.cfg.Params
	switch {
	case params.MemoryKiB < cur.MemoryKiB:
		return true
	case params.Iterations < cur.Iterations:
		return true
	case params.Parallelism < cur.Parallelism:
		return true
	case params.KeyLength != cur.KeyLength:
		return true
	default:
		return false
	}
}

func withinReasonableBounds(got Argon2idParams, limits Argon2idParams) bool {
	// Hashes from older/smaller settings still verify; wildly larger ones do not.
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if uint32(got.Parallelism) > uint32(limits.Parallelism)*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < minKeyLength || got.KeyLength > 128 {
		return false
	}
	return true
}

// decode parses the encoded hash and returns params, inner salt and expected key.
func decode(encoded string) (Argon2idParams, []byte, []byte, error) {
	// $argon2id$v=19$m=65536,t=4,p=3$<salt>$<hash>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	if !strings.HasPrefix(parts[3], "m=") {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	var mem, it, par uint32
	n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par)
	if err != nil || n != 3 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by the encoded string length.
		KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by the encoded string length.
	}

	return params, salt, key, nil
}
