package render

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/certvault/internal/models"
)

func testRecord() *models.CertificateRecord {
	return &models.CertificateRecord{
		CertificateID:  "MANAS360-CERT-2025-000123",
		RecipientName:  "Asha Rao",
		RecipientEmail: "asha@x.com",
		ProgramName:    "Mindful Leadership",
		CompletionDate: "2025-01-15",
		IssueDate:      "15 January 2025",
		Type:           models.TypeTherapistTraining,
		Signatories:    models.DefaultSignatories,
	}
}

func TestTitleAndSubText(t *testing.T) {
	assert.Equal(t, "Therapist Professional Certification", Title(models.TypeTherapistTraining))
	assert.Equal(t, "Professional Coaching Achievement", Title(models.TypeCoachTraining))
	assert.Equal(t, "Certificate of Milestone Completion", Title(models.TypePatientCompletion))
	assert.Equal(t, "Certificate of Completion", Title("other"))

	assert.Contains(t, SubText(models.TypeCoachTraining), "coaching methodologies")
	assert.Contains(t, SubText("other"), "met all the requirements")
}

func TestQRCodePNG(t *testing.T) {
	data, err := QRCodePNG("https://manas360.in/verify/MANAS360-CERT-2025-000123", 120)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())

	_, err = QRCodePNG("", 120)
	assert.Error(t, err)
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer()
	rec := testRecord()
	rec.Commendation = "For clinical excellence."

	html, err := r.Render(rec, "https://manas360.in/verify/MANAS360-CERT-2025-000123")
	require.NoError(t, err)

	doc := string(html)
	assert.Contains(t, doc, "Therapist Professional Certification")
	assert.Contains(t, doc, "Asha Rao")
	assert.Contains(t, doc, "Mindful Leadership")
	assert.Contains(t, doc, "Completion: 2025-01-15")
	assert.Contains(t, doc, "MANAS360-CERT-2025-000123")
	assert.Contains(t, doc, "For clinical excellence.")
	assert.Contains(t, doc, "Dr. Priya Sharma")
	assert.Contains(t, doc, `src="data:image/png;base64,`)
	assert.Contains(t, doc, "width: 794px; height: 1123px")
}

func TestRenderer_EscapesFields(t *testing.T) {
	rec := testRecord()
	rec.RecipientName = `<script>alert("x")</script>`

	html, err := NewRenderer().Render(rec, "https://manas360.in/verify/x")
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
}

func TestRenderer_LimitsSignatories(t *testing.T) {
	rec := testRecord()
	rec.Signatories = append(append([]models.Signatory{}, models.DefaultSignatories...),
		models.Signatory{Name: "Fourth Person", Title: "Extra"})

	html, err := NewRenderer().Render(rec, "https://manas360.in/verify/x")
	require.NoError(t, err)
	assert.NotContains(t, string(html), "Fourth Person")
	assert.Equal(t, models.MaxSignatories, strings.Count(string(html), `class="signature"`))
}

func TestHTMLExporter(t *testing.T) {
	var e HTMLExporter
	out, err := e.Export(context.Background(), []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(out))
	assert.Equal(t, "text/html; charset=utf-8", e.ContentType())

	_, err = e.Export(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Export(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChromeExporter_CloseWithoutLaunch(t *testing.T) {
	e := NewChromeExporter("")
	assert.Equal(t, "application/pdf", e.ContentType())
	assert.NoError(t, e.Close())
}
