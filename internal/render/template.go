// Package render turns certificate records into printable documents.
package render

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/adamscao/certvault/internal/models"
)

// A4 at 96 dpi
const (
	PageWidthPx  = 794
	PageHeightPx = 1123
)

//go:embed templates/certificate.html
var templateFS embed.FS

var certificateTemplate = template.Must(template.ParseFS(templateFS, "templates/certificate.html"))

var titles = map[models.CertificateType]string{
	models.TypeTherapistTraining: "Therapist Professional Certification",
	models.TypeCoachTraining:     "Professional Coaching Achievement",
	models.TypePatientCompletion: "Certificate of Milestone Completion",
}

var subTexts = map[models.CertificateType]string{
	models.TypeTherapistTraining: "and has demonstrated exceptional mastery in clinical mental health protocols, evidence-based therapeutic practices, and ethical standards of patient care.",
	models.TypeCoachTraining:     "and has shown proficiency in professional coaching methodologies, high-performance leadership strategies, and transformative client engagement.",
	models.TypePatientCompletion: "and has shown remarkable resilience, dedication, and progress in their personal mental wellness journey.",
}

// Title returns the heading printed for a certificate type
func Title(t models.CertificateType) string {
	if s, ok := titles[t]; ok {
		return s
	}
	return "Certificate of Completion"
}

// SubText returns the body sentence printed for a certificate type
func SubText(t models.CertificateType) string {
	if s, ok := subTexts[t]; ok {
		return s
	}
	return "and has successfully met all the requirements for this program with excellence and dedication."
}

type documentData struct {
	Title           string
	SubText         string
	CertificateID   string
	RecipientName   string
	ProgramName     string
	CompletionDate  string
	IssueDate       string
	Commendation    string
	Signatories     []models.Signatory
	VerificationURL string
	QRCode          template.URL
	WidthPx         int
	HeightPx        int
}

// Renderer renders the A4 HTML surface of a certificate
type Renderer struct {
	qrSize int
}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{qrSize: DefaultQRSize}
}

// Render produces the HTML document for rec. verificationURL is printed as a
// QR code in the footer.
func (r *Renderer) Render(rec *models.CertificateRecord, verificationURL string) ([]byte, error) {
	qr, err := QRCodePNG(verificationURL, r.qrSize)
	if err != nil {
		return nil, err
	}

	signatories := rec.Signatories
	if len(signatories) > models.MaxSignatories {
		signatories = signatories[:models.MaxSignatories]
	}

	data := documentData{
		Title:           Title(rec.Type),
		SubText:         SubText(rec.Type),
		CertificateID:   rec.CertificateID,
		RecipientName:   rec.RecipientName,
		ProgramName:     rec.ProgramName,
		CompletionDate:  rec.CompletionDate,
		IssueDate:       rec.IssueDate,
		Commendation:    rec.Commendation,
		Signatories:     signatories,
		VerificationURL: verificationURL,
		QRCode:          template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(qr)),
		WidthPx:         PageWidthPx,
		HeightPx:        PageHeightPx,
	}

	var buf bytes.Buffer
	if err := certificateTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	return buf.Bytes(), nil
}
