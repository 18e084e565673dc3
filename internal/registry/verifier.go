package registry

import (
	"context"
	"errors"

	"github.com/adamscao/certvault/internal/credential"
	"github.com/adamscao/certvault/internal/models"
)

// VerificationResult is the outcome of a verification lookup. A miss is a
// normal result with Found false.
type VerificationResult struct {
	Query       string                    `json:"query"`
	Found       bool                      `json:"found"`
	Record      *models.CertificateRecord `json:"record,omitempty"`
	IntegrityOK bool                      `json:"integrity_ok"`
}

// Verifier looks certificates up by their public identifier
type Verifier struct {
	registry Registry
	hasher   *credential.Hasher
}

// NewVerifier creates a verifier over reg. The hasher recomputes stored
// digests so a tampered record is reported with IntegrityOK false.
func NewVerifier(reg Registry, hasher *credential.Hasher) *Verifier {
	return &Verifier{registry: reg, hasher: hasher}
}

// Verify performs a case-insensitive exact match on the certificate
// identifier
func (v *Verifier) Verify(ctx context.Context, id string) (*VerificationResult, error) {
	result := &VerificationResult{Query: id}

	normalized := models.NormalizeCertificateID(id)
	if normalized == "" {
		return result, nil
	}

	rec, err := v.registry.FindByIdentifier(ctx, normalized)
	if errors.Is(err, ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Found = true
	result.Record = rec
	result.IntegrityOK = v.hasher.Matches(credential.DigestInput{
		CertificateID:  rec.CertificateID,
		RecipientName:  rec.RecipientName,
		ProgramName:    rec.ProgramName,
		CompletionDate: rec.CompletionDate,
	}, rec.Hash)

	return result, nil
}
