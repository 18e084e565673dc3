// Package registry stores issued certificate records and answers
// verification lookups against them.
//
// Records are appended once and never changed. Lookups compare the
// upper-cased, trimmed certificate identifier.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/adamscao/certvault/internal/models"
)

var (
	// ErrNotFound is returned by FindByIdentifier when no record matches
	ErrNotFound = errors.New("certificate not found")

	// ErrDuplicateIdentifier is returned by Append when a record with the
	// same normalised identifier is already stored
	ErrDuplicateIdentifier = errors.New("certificate identifier already issued")

	// ErrConcurrentWrite is returned when another writer changed the
	// persisted list while an append was in progress
	ErrConcurrentWrite = errors.New("registry modified by a concurrent writer")
)

// Registry is the collection of all issued certificate records
type Registry interface {
	// Append stores a new record
	Append(ctx context.Context, rec *models.CertificateRecord) error

	// FindByIdentifier returns the record whose certificate identifier
	// matches id case-insensitively, or ErrNotFound
	FindByIdentifier(ctx context.Context, id string) (*models.CertificateRecord, error)

	// List returns every record in issuance order without document bytes
	List(ctx context.Context) ([]*models.CertificateRecord, error)

	// CountIssuedSince counts records issued by issuer at or after since
	CountIssuedSince(ctx context.Context, issuer string, since time.Time) (int, error)
}

// FilterByRole returns the records issued under role, keeping order
func FilterByRole(records []*models.CertificateRecord, role models.Role) []*models.CertificateRecord {
	out := make([]*models.CertificateRecord, 0, len(records))
	for _, rec := range records {
		if rec.IssuerRole == role {
			out = append(out, rec)
		}
	}
	return out
}

func countIssuedSince(records []*models.CertificateRecord, issuer string, since time.Time) int {
	cutoff := since.UnixMilli()
	n := 0
	for _, rec := range records {
		if rec.IssuedBy == issuer && rec.Timestamp >= cutoff {
			n++
		}
	}
	return n
}
