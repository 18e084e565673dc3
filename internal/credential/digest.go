package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// DefaultSecret is the application secret the browser client shipped with.
// It is readable by anyone holding the client, so digests made with it are
// tamper evidence by convention only.
const DefaultSecret = "MANAS360_PRIVATE_SECRET_2025"

// DigestLength is the length of a hex encoded digest
const DigestLength = sha256.Size * 2

// DigestInput holds the certificate fields bound by the integrity digest
type DigestInput struct {
	CertificateID  string
	RecipientName  string
	ProgramName    string
	CompletionDate string
}

// Hasher computes integrity digests
type Hasher struct {
	secret string
}

// NewHasher creates a hasher keyed with secret. An empty secret selects
// DefaultSecret so digests stay compatible with existing registries.
func NewHasher(secret string) *Hasher {
	if secret == "" {
		secret = DefaultSecret
	}
	return &Hasher{secret: secret}
}

// Canonical returns the delimited string the digest is computed over:
// certificateId|recipientName|programName|completionDate|secret
func (h *Hasher) Canonical(in DigestInput) string {
	return strings.Join([]string{
		in.CertificateID,
		in.RecipientName,
		in.ProgramName,
		in.CompletionDate,
		h.secret,
	}, "|")
}

// Digest returns the lowercase hex SHA-256 of the canonical string
func (h *Hasher) Digest(in DigestInput) string {
	sum := sha256.Sum256([]byte(h.Canonical(in)))
	return hex.EncodeToString(sum[:])
}

// Matches recomputes the digest for in and compares it with hash in
// constant time. Hex case is ignored.
func (h *Hasher) Matches(in DigestInput, hash string) bool {
	expected := h.Digest(in)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(hash))) == 1
}
