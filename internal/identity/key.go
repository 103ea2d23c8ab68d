package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Backup keys are shown to a human once and typed into another device, so
// the alphabet excludes visually confusable characters (0/O, 1/I/L) and the
// key is grouped into blocks for readability.  Only a salted argon2id hash
// of the key is ever persisted.

const (
	// keyAlphabet is the unambiguous character set backup keys draw from.
	keyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	// keyBlocks and keyBlockLen shape the displayed key, e.g. XXXX-XXXX-XXXX-XXXX.
	keyBlocks   = 4
	keyBlockLen = 4
	keyLen      = keyBlocks * keyBlockLen
)

// NewBackupKey generates a random human-typable backup key, grouped into
// hyphen-separated blocks.  The plaintext is returned to the caller exactly
// once; persist only its hash (see KeyHash).
func NewBackupKey() (string, error) {
	chars := make([]byte, keyLen)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := range chars {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		chars[i] = keyAlphabet[n.Int64()]
	}
	blocks := make([]string, 0, keyBlocks)
	for i := 0; i < keyLen; i += keyBlockLen {
		blocks = append(blocks, string(chars[i:i+keyBlockLen]))
	}
	return strings.Join(blocks, "-"), nil
}

// NormalizeKey upper-cases a user-supplied key and strips separators and
// whitespace, so retyping with different grouping still redeems.
func NormalizeKey(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, " ", "")
	return key
}

// ValidKeyFormat reports whether a normalized key has the expected length
// and draws only from the key alphabet.  Checking format before lookup keeps
// "malformed" distinguishable from "unknown".
func ValidKeyFormat(normalized string) bool {
	if len(normalized) != keyLen {
		return false
	}
	for i := 0; i < len(normalized); i++ {
		if !strings.ContainsRune(keyAlphabet, rune(normalized[i])) {
			return false
		}
	}
	return true
}

// KeyHash derives the stored lookup hash of a backup key: argon2id over the
// normalized plaintext with a process-wide salt.  argon2id with fixed
// parameters is deterministic, so the digest doubles as the primary key,
// while staying expensive enough to resist brute force of the short key space.
func KeyHash(key, salt string) string {
	digest := argon2.IDKey([]byte(NormalizeKey(key)), []byte(salt), 1, 64*1024, 4, 32)
	return hex.EncodeToString(digest)
}

// KeyPreview returns the non-secret prefix of a key shown back to the user
// for confirmation, e.g. "VXK4-…".
func KeyPreview(key string) string {
	n := NormalizeKey(key)
	if len(n) < keyBlockLen {
		return n
	}
	return n[:keyBlockLen] + "-…"
}

// NewMigrationToken generates the raw single-use migration token: 32 random
// bytes hex-encoded.  Unlike backup keys it is transferred by link, not
// typed, so length wins over readability.
func NewMigrationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ValidTokenFormat reports whether a migration token is 64 lowercase hex
// characters, the only shape NewMigrationToken emits.
func ValidTokenFormat(token string) bool {
	if len(token) != 64 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// TokenHash returns the SHA-256 hex digest of a migration token.  The raw
// token is high-entropy, so a plain digest suffices for storage.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
