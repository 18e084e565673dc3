package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// HashToken hashes a token so comparisons run over fixed-length values
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(hash[:])
}

// VerifyToken compares a presented token with the expected one using
// constant-time comparison
func VerifyToken(token, expected string) bool {
	if token == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(HashToken(expected))) == 1
}
