package registry

import (
	"context"
	"sync"
	"time"

	"github.com/adamscao/certvault/internal/models"
)

// MemoryRegistry keeps records in process memory, indexed by normalised
// identifier
type MemoryRegistry struct {
	mu      sync.RWMutex
	records []*models.CertificateRecord
	byID    map[string]*models.CertificateRecord
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{byID: make(map[string]*models.CertificateRecord)}
}

// Append stores a copy of rec
func (r *MemoryRegistry) Append(_ context.Context, rec *models.CertificateRecord) error {
	key := models.NormalizeCertificateID(rec.CertificateID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[key]; exists {
		return ErrDuplicateIdentifier
	}

	stored := *rec
	r.records = append(r.records, &stored)
	r.byID[key] = &stored
	return nil
}

// FindByIdentifier returns a copy of the matching record
func (r *MemoryRegistry) FindByIdentifier(_ context.Context, id string) (*models.CertificateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[models.NormalizeCertificateID(id)]
	if !ok {
		return nil, ErrNotFound
	}
	found := *rec
	return &found, nil
}

// List returns all records in issuance order
func (r *MemoryRegistry) List(_ context.Context) ([]*models.CertificateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.CertificateRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.WithoutDocument()
	}
	return out, nil
}

// CountIssuedSince counts records issued by issuer at or after since
func (r *MemoryRegistry) CountIssuedSince(_ context.Context, issuer string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return countIssuedSince(r.records, issuer, since), nil
}

// Len returns the number of stored records
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
