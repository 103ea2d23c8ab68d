package identity // package identity implements device-identifier hashing and backup keys

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
)

// Device identifiers are bearer values supplied by untrusted clients, so all
// identity-scoped records key off a salted one-way hash rather than the raw
// value.  The hash is deterministic: the same identifier and salt always
// produce the same digest, which makes it usable as a primary key.

var unsaltedWarn sync.Once

// Hasher computes identity hashes with a process-wide salt.  Construct one
// at startup and inject it; do not reach for package-level state.
type Hasher struct {
	salt string
}

// NewHasher returns a Hasher for the given salt.  An empty salt is allowed,
// since a support tool must keep serving even when misconfigured, but the
// resulting hashes are not protected against dictionary recovery, so a
// warning is logged exactly once per process.
func NewHasher(salt string) *Hasher {
	if salt == "" {
		unsaltedWarn.Do(func() {
			log.Printf("WARNING: IDENTITY_SALT is not set; device hashes are unsalted and recoverable by dictionary attack")
		})
	}
	return &Hasher{salt: salt}
}

// Hash returns the hex-encoded SHA-256 digest of salt||deviceID.
func (h *Hasher) Hash(deviceID string) string {
	return HashDevice(deviceID, h.salt)
}

// HashDevice is the pure form of the identity hash: SHA-256(salt || deviceID),
// hex-encoded.  Deterministic and side-effect free.
func HashDevice(deviceID, salt string) string {
	sum := sha256.Sum256([]byte(salt + deviceID))
	return hex.EncodeToString(sum[:])
}
