package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry"
)

// CertRepository handles certificate record data access. It is the SQLite
// registry backend.
type CertRepository struct {
	db *sql.DB
}

// NewCertRepository creates a new certificate repository
func NewCertRepository(db *sql.DB) *CertRepository {
	return &CertRepository{db: db}
}

var _ registry.Registry = (*CertRepository)(nil)

const certColumns = `
	id, certificate_id, recipient_name, recipient_email, program_name,
	completion_date, issue_date, type, commendation, hash, status,
	signatories, issuer_role, issued_by, cloud_url, document_type, timestamp`

// Append creates a new certificate record
func (r *CertRepository) Append(ctx context.Context, cert *models.CertificateRecord) error {
	signatories, err := json.Marshal(cert.Signatories)
	if err != nil {
		return fmt.Errorf("failed to encode signatories: %w", err)
	}

	query := `
		INSERT INTO certificates (
			id, certificate_id, certificate_key, recipient_name, recipient_email,
			program_name, completion_date, issue_date, type, commendation, hash,
			status, signatories, issuer_role, issued_by, cloud_url, document,
			document_type, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		cert.ID,
		cert.CertificateID,
		models.NormalizeCertificateID(cert.CertificateID),
		cert.RecipientName,
		cert.RecipientEmail,
		cert.ProgramName,
		cert.CompletionDate,
		cert.IssueDate,
		string(cert.Type),
		cert.Commendation,
		cert.Hash,
		cert.Status,
		string(signatories),
		string(cert.IssuerRole),
		cert.IssuedBy,
		cert.CloudURL,
		[]byte(cert.Document),
		cert.DocumentType,
		cert.Timestamp,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return registry.ErrDuplicateIdentifier
		}
		return fmt.Errorf("failed to create certificate record: %w", err)
	}

	return nil
}

// FindByIdentifier retrieves a certificate, document included, by its
// public identifier
func (r *CertRepository) FindByIdentifier(ctx context.Context, id string) (*models.CertificateRecord, error) {
	query := `SELECT` + certColumns + `, document
		FROM certificates
		WHERE certificate_key = ?
	`

	cert, err := scanCert(r.db.QueryRowContext(ctx, query, models.NormalizeCertificateID(id)), true)
	if err == sql.ErrNoRows {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	return cert, nil
}

// List lists all certificates in issuance order
func (r *CertRepository) List(ctx context.Context) ([]*models.CertificateRecord, error) {
	query := `SELECT` + certColumns + `
		FROM certificates
		ORDER BY timestamp ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	var certs []*models.CertificateRecord

	for rows.Next() {
		cert, err := scanCert(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}

	return certs, rows.Err()
}

// CountIssuedSince returns the number of certificates issued by issuer at
// or after since
func (r *CertRepository) CountIssuedSince(ctx context.Context, issuer string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM certificates
		WHERE issued_by = ? AND timestamp >= ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, issuer, since.UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get cert count: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCert(row rowScanner, withDocument bool) (*models.CertificateRecord, error) {
	cert := &models.CertificateRecord{}
	var certType, role, signatories string
	var document []byte

	dest := []any{
		&cert.ID,
		&cert.CertificateID,
		&cert.RecipientName,
		&cert.RecipientEmail,
		&cert.ProgramName,
		&cert.CompletionDate,
		&cert.IssueDate,
		&certType,
		&cert.Commendation,
		&cert.Hash,
		&cert.Status,
		&signatories,
		&role,
		&cert.IssuedBy,
		&cert.CloudURL,
		&cert.DocumentType,
		&cert.Timestamp,
	}
	if withDocument {
		dest = append(dest, &document)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	cert.Type = models.CertificateType(certType)
	cert.Document = document
	cert.IssuerRole = models.Role(role)
	if err := json.Unmarshal([]byte(signatories), &cert.Signatories); err != nil {
		return nil, fmt.Errorf("failed to decode signatories: %w", err)
	}

	return cert, nil
}
