// Package registrytest holds the behaviour every registry backend must
// share, run from each backend's own tests.
package registrytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry"
)

// Record builds a valid record for certificateID issued by issuer at ts
func Record(certificateID, issuer string, role models.Role, ts time.Time) *models.CertificateRecord {
	return &models.CertificateRecord{
		ID:             "id-" + certificateID,
		CertificateID:  certificateID,
		RecipientName:  "Asha Rao",
		RecipientEmail: "asha@x.com",
		ProgramName:    "Mindful Leadership",
		CompletionDate: "2025-01-15",
		IssueDate:      "15 January 2025",
		Type:           models.TypeTherapistTraining,
		Hash:           "01f7bcccdf64cf435c842b88790dd89f2eb77211c8d750747bcd7cde35e58c42",
		Status:         models.StatusActive,
		Signatories:    models.DefaultSignatories,
		IssuerRole:     role,
		IssuedBy:       issuer,
		CloudURL:       "https://bucket.s3.us-east-1.amazonaws.com/certificates/" + certificateID + ".pdf",
		Document:       []byte("<html>" + certificateID + "</html>"),
		DocumentType:   "text/html; charset=utf-8",
		Timestamp:      ts.UnixMilli(),
	}
}

// Run exercises reg, which must start empty
func Run(t *testing.T, newRegistry func(t *testing.T) registry.Registry) {
	t.Run("AppendAndFind", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		rec := Record("MANAS360-CERT-2025-000123", "meera", models.RoleTherapist, time.Now())

		require.NoError(t, reg.Append(ctx, rec))

		found, err := reg.FindByIdentifier(ctx, "MANAS360-CERT-2025-000123")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, found.ID)
		assert.Equal(t, rec.Hash, found.Hash)
		assert.Equal(t, rec.Signatories, found.Signatories)
		assert.Equal(t, rec.Document, found.Document)
		assert.Equal(t, rec.Timestamp, found.Timestamp)
	})

	t.Run("FindIsCaseInsensitive", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, reg.Append(ctx, Record("MANAS360-CERT-2025-000123", "meera", models.RoleTherapist, time.Now())))

		found, err := reg.FindByIdentifier(ctx, "manas360-cert-2025-000123")
		require.NoError(t, err)
		assert.Equal(t, "MANAS360-CERT-2025-000123", found.CertificateID)
	})

	t.Run("FindMissing", func(t *testing.T) {
		reg := newRegistry(t)

		_, err := reg.FindByIdentifier(context.Background(), "MANAS360-CERT-2025-999999")
		assert.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("DuplicateIdentifierRejected", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		require.NoError(t, reg.Append(ctx, Record("MANAS360-CERT-2025-000123", "meera", models.RoleTherapist, time.Now())))

		dup := Record("manas360-cert-2025-000123", "arjun", models.RoleCoach, time.Now())
		dup.ID = "another"
		assert.ErrorIs(t, reg.Append(ctx, dup), registry.ErrDuplicateIdentifier)

		list, err := reg.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("ListKeepsOrderWithoutDocuments", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("MANAS360-CERT-2025-00000%d", i)
			require.NoError(t, reg.Append(ctx, Record(id, "meera", models.RoleTherapist, base.Add(time.Duration(i)*time.Minute))))
		}

		list, err := reg.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i, rec := range list {
			assert.Equal(t, fmt.Sprintf("MANAS360-CERT-2025-00000%d", i), rec.CertificateID)
			assert.Nil(t, rec.Document)
		}
	})

	t.Run("CountIssuedSince", func(t *testing.T) {
		reg := newRegistry(t)
		ctx := context.Background()
		day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

		require.NoError(t, reg.Append(ctx, Record("MANAS360-CERT-2025-000001", "meera", models.RoleTherapist, day.Add(-time.Hour))))
		require.NoError(t, reg.Append(ctx, Record("MANAS360-CERT-2025-000002", "meera", models.RoleTherapist, day.Add(time.Hour))))
		require.NoError(t, reg.Append(ctx, Record("MANAS360-CERT-2025-000003", "meera", models.RoleTherapist, day.Add(2*time.Hour))))
		require.NoError(t, reg.Append(ctx, Record("MANAS360-CERT-2025-000004", "arjun", models.RoleCoach, day.Add(2*time.Hour))))

		n, err := reg.CountIssuedSince(ctx, "meera", day)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = reg.CountIssuedSince(ctx, "nobody", day)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}
