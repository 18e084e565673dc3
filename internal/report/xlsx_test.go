package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry/registrytest"
)

func TestGenerateVaultExport(t *testing.T) {
	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	records := []*models.CertificateRecord{
		registrytest.Record("MANAS360-CERT-2025-000001", "meera", models.RoleTherapist, ts),
		registrytest.Record("MANAS360-CERT-2025-000002", "arjun", models.RoleCoach, ts.Add(time.Hour)),
	}

	data, err := GenerateVaultExport(records)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, VaultHeader, rows[0])
	assert.Equal(t, "MANAS360-CERT-2025-000001", rows[1][0])
	assert.Equal(t, "Asha Rao", rows[1][1])
	assert.Equal(t, "therapist", rows[1][8])
	assert.Equal(t, "2025-01-15 10:30:00", rows[1][12])
	assert.Equal(t, "arjun", rows[2][9])
}

func TestGenerateVaultExport_Empty(t *testing.T) {
	data, err := GenerateVaultExport(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(VaultHeader))
}
