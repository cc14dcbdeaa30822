// Package credential stores the one-time cancellation secret as a salted
// Argon2id hash in a protected file. No other component reads the backing
// file directly; all access goes through Seed/Validate/Wipe.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"

	"github.com/Evalutik/hardstop/internal/fileguard"
)

// Argon2id parameters for hashing the cancellation secret.
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// record is the on-disk layout of the credential file.
type record struct {
	Hash     []byte `json:"hash"`
	Salt     []byte `json:"salt"`
	Consumed bool   `json:"consumed"`
}

// Store owns the credential file and its protection overlay.
type Store struct {
	path  string
	guard fileguard.Guard
}

// NewStore creates a Store for the credential file at path, protected by guard.
func NewStore(path string, guard fileguard.Guard) *Store {
	return &Store{path: path, guard: guard}
}

// Seed hashes secret with a fresh salt, writes the record, and applies the
// protection overlay. An empty secret configures no-password mode: any
// stale record is wiped and every cancellation will be accepted.
// A protection failure surfaces as ErrProtection; the caller must not arm.
func (s *Store) Seed(secret string) error {
	if secret == "" {
		if err := s.Wipe(); err != nil {
			return fmt.Errorf("failed to clear stale credential: %w", err)
		}
		return nil
	}

	salt, err := randBytes(saltLen)
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	rec := record{
		Hash: hashSecret(secret, salt),
		Salt: salt,
	}

	// A previous record may still carry the overlay; lift it before
	// overwriting.
	if err := s.guard.Unprotect(s.path); err != nil {
		return fmt.Errorf("failed to unprotect previous credential: %w", err)
	}
	if err := s.write(rec); err != nil {
		return err
	}
	if err := s.guard.Protect(s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrProtection, err)
	}
	return nil
}

// Configured reports whether a credential record exists, i.e. whether the
// armed timer is password-protected.
func (s *Store) Configured() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Validate checks candidate against the stored hash. It fails closed: any
// read, decode, or hashing problem counts as a mismatch. required states
// whether a password was configured at arm time: a missing record is only
// no-password mode (accept all) when required is false; a missing record
// on a protected timer means the file was destroyed and every candidate
// is denied. On success the record is immediately marked consumed; a
// consumed record never validates again.
func (s *Store) Validate(candidate string, required bool) bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return !required
		}
		return false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return false
	}
	if rec.Consumed || len(rec.Hash) == 0 || len(rec.Salt) == 0 {
		return false
	}

	got := hashSecret(candidate, rec.Salt)
	if subtle.ConstantTimeCompare(got, rec.Hash) != 1 {
		return false
	}

	// One-time use: burn the record before reporting success. If the
	// consumed flag cannot be persisted the credential must not
	// authorize anything.
	if err := s.consume(rec); err != nil {
		return false
	}
	return true
}

// Consume marks the stored record consumed without validating, rendering
// it permanently unusable. Called on the fire path so the secret cannot
// authorize a cancel even if the shutdown is somehow interrupted.
// Missing record is not an error.
func (s *Store) Consume() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read credential: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to decode credential: %w", err)
	}
	return s.consume(rec)
}

// Wipe lifts the protection overlay and deletes the credential file.
// Idempotent: wiping an absent record succeeds.
func (s *Store) Wipe() error {
	if err := s.guard.Unprotect(s.path); err != nil {
		return fmt.Errorf("failed to unprotect credential: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

func (s *Store) consume(rec record) error {
	rec.Consumed = true
	// The overlay is lifted only for the rewrite; a consumed record stays
	// protected until Wipe removes it.
	return fileguard.WithUnprotected(s.guard, s.path, func() error {
		return s.write(rec)
	})
}

// write persists the record atomically: write a temp file, then rename
// over the target so a crash mid-write cannot leave a torn record.
func (s *Store) write(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace credential: %w", err)
	}
	return nil
}

func hashSecret(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}
