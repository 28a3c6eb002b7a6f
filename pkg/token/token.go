package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Prefix marks operator API tokens so they are easy to spot in secret scanners.
	Prefix = "opr_"

	// EntropyBytes is the number of random bytes in an issued token.
	EntropyBytes = 32

	// MinLength is the shortest token accepted for comparison.
	// Prefix (4) + base64-URL of 32 bytes (44).
	MinLength = len(Prefix) + 44
)

// Issue creates a new random operator token.
func Issue() (string, error) {
	b := make([]byte, EntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return Prefix + base64.URLEncoding.EncodeToString(b), nil
}

// Digest returns the hex HMAC-SHA256 of tok keyed with secret.
func Digest(tok, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(tok))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches reports whether presented hashes to storedDigest under secret.
// The comparison runs in constant time.
func Matches(presented, secret, storedDigest string) bool {
	return hmac.Equal([]byte(Digest(presented, secret)), []byte(storedDigest))
}

// CheckFormat rejects values that cannot be operator tokens before any
// hashing is done.
func CheckFormat(tok string) error {
	if !strings.HasPrefix(tok, Prefix) {
		return fmt.Errorf("token must start with %q", Prefix)
	}
	if len(tok) < MinLength {
		return fmt.Errorf("token too short: got %d characters, need at least %d", len(tok), MinLength)
	}
	return nil
}

// Redact returns a log-safe form of tok that keeps the prefix and last four characters.
func Redact(tok string) string {
	if len(tok) <= len(Prefix)+4 {
		return Prefix + "****"
	}
	return Prefix + "****" + tok[len(tok)-4:]
}
