package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	saltBytes = 16
	keyBytes  = 64
)

// scrypt cost parameters (N, r, p).
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// HashPassword returns "hex(key).hex(salt)" for password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	key, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, keyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	return hex.EncodeToString(key) + "." + saltHex, nil
}

// ComparePassword reports whether supplied matches a stored hash. Malformed
// hashes never match.
func ComparePassword(supplied, stored string) bool {
	hashHex, salt, ok := strings.Cut(stored, ".")
	if !ok || salt == "" {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) != keyBytes {
		return false
	}
	got, err := scrypt.Key([]byte(supplied), []byte(salt), scryptN, scryptR, scryptP, keyBytes)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, got) == 1
}
