package registry_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/certvault/internal/credential"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/registry/registrytest"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestMemoryRegistry(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) registry.Registry {
		return registry.NewMemoryRegistry()
	})
}

func TestRedisRegistry(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) registry.Registry {
		_, client := setupTestRedis(t)
		return registry.NewRedisRegistry(client, "")
	})
}

func TestRedisRegistry_PersistsSingleJSONArray(t *testing.T) {
	mr, client := setupTestRedis(t)
	reg := registry.NewRedisRegistry(client, "certificates")
	ctx := context.Background()

	require.NoError(t, reg.Append(ctx, registrytest.Record("MANAS360-CERT-2025-000001", "meera", models.RoleTherapist, time.Now())))
	require.NoError(t, reg.Append(ctx, registrytest.Record("MANAS360-CERT-2025-000002", "arjun", models.RoleCoach, time.Now())))

	raw, err := mr.Get("certificates")
	require.NoError(t, err)

	var stored []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Len(t, stored, 2)
	assert.Equal(t, "MANAS360-CERT-2025-000001", stored[0]["certificate_id"])
	assert.Equal(t, "Asha Rao", stored[0]["recipientName"])
	assert.Equal(t, "coach", stored[1]["issuerRole"])
	assert.Equal(t, "data:text/html;charset=utf-8;base64,PGh0bWw+TUFOQVMzNjAtQ0VSVC0yMDI1LTAwMDAwMTwvaHRtbD4=", stored[0]["pdfData"])
}

func TestRedisRegistry_ReadsBrowserLayout(t *testing.T) {
	mr, client := setupTestRedis(t)
	reg := registry.NewRedisRegistry(client, "")

	// Shape written by the browser client, without the server-only fields.
	mr.Set("certificates", `[{"id":"5b0c","certificate_id":"MANAS360-CERT-2025-004242",
		"recipientName":"Kiran","recipientEmail":"k@x.com","programName":"Care Basics",
		"completionDate":"2025-02-01","issueDate":"1 February 2025","type":"coach_training",
		"commendation":"","hash":"abc","status":"active",
		"signatories":[{"name":"Mahan Gupta","title":"CEO & Founder"}],
		"cloudUrl":"https://manas360-s3-bucket.s3.us-east-1.amazonaws.com/certificates/MANAS360-CERT-2025-004242.pdf",
		"pdfData":"data:application/pdf;filename=generated.pdf;base64,JVBERi0xLjMK",
		"timestamp":1738368000000,"issuerRole":"coach"}]`)
	ctx := context.Background()

	rec, err := reg.FindByIdentifier(ctx, "manas360-cert-2025-004242")
	require.NoError(t, err)
	assert.Equal(t, "Kiran", rec.RecipientName)
	assert.Equal(t, models.TypeCoachTraining, rec.Type)
	assert.Equal(t, models.RoleCoach, rec.IssuerRole)
	assert.Equal(t, int64(1738368000000), rec.Timestamp)
	assert.Equal(t, models.Document("%PDF-1.3\n"), rec.Document)

	// The rest of the list stays usable alongside browser records.
	require.NoError(t, reg.Append(ctx, registrytest.Record("MANAS360-CERT-2025-000001", "meera", models.RoleTherapist, time.Now())))
	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	rec, err = reg.FindByIdentifier(ctx, "MANAS360-CERT-2025-004242")
	require.NoError(t, err)
	assert.Equal(t, models.Document("%PDF-1.3\n"), rec.Document)
}

func TestRedisRegistry_CorruptPayload(t *testing.T) {
	mr, client := setupTestRedis(t)
	reg := registry.NewRedisRegistry(client, "")
	mr.Set("certificates", "not json")

	_, err := reg.FindByIdentifier(context.Background(), "MANAS360-CERT-2025-000001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, registry.ErrNotFound)
}

func TestFilterByRole(t *testing.T) {
	now := time.Now()
	records := []*models.CertificateRecord{
		registrytest.Record("MANAS360-CERT-2025-000001", "meera", models.RoleTherapist, now),
		registrytest.Record("MANAS360-CERT-2025-000002", "arjun", models.RoleCoach, now),
		registrytest.Record("MANAS360-CERT-2025-000003", "meera", models.RoleTherapist, now),
	}

	therapists := registry.FilterByRole(records, models.RoleTherapist)
	require.Len(t, therapists, 2)
	assert.Equal(t, "MANAS360-CERT-2025-000003", therapists[1].CertificateID)
	assert.Len(t, registry.FilterByRole(records, models.RoleAdmin), 0)
}

func TestVerifier(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	hasher := credential.NewHasher("")
	verifier := registry.NewVerifier(reg, hasher)
	ctx := context.Background()

	rec := registrytest.Record("MANAS360-CERT-2025-000123", "meera", models.RoleTherapist, time.Now())
	rec.Hash = hasher.Digest(credential.DigestInput{
		CertificateID:  rec.CertificateID,
		RecipientName:  rec.RecipientName,
		ProgramName:    rec.ProgramName,
		CompletionDate: rec.CompletionDate,
	})
	require.NoError(t, reg.Append(ctx, rec))

	t.Run("found case-insensitively", func(t *testing.T) {
		result, err := verifier.Verify(ctx, "  manas360-cert-2025-000123 ")
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.True(t, result.IntegrityOK)
		assert.Equal(t, rec.CertificateID, result.Record.CertificateID)
	})

	t.Run("never issued is a negative result", func(t *testing.T) {
		result, err := verifier.Verify(ctx, "MANAS360-CERT-2025-000124")
		require.NoError(t, err)
		assert.False(t, result.Found)
		assert.Nil(t, result.Record)
	})

	t.Run("empty query", func(t *testing.T) {
		result, err := verifier.Verify(ctx, "   ")
		require.NoError(t, err)
		assert.False(t, result.Found)
	})

	t.Run("tampered record", func(t *testing.T) {
		forged := registrytest.Record("MANAS360-CERT-2025-000777", "meera", models.RoleTherapist, time.Now())
		forged.Hash = rec.Hash
		require.NoError(t, reg.Append(ctx, forged))

		result, err := verifier.Verify(ctx, forged.CertificateID)
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.False(t, result.IntegrityOK)
	})
}
