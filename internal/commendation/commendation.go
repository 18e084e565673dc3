// Package commendation suggests the short congratulatory sentence printed on
// a certificate.
package commendation

import (
	"context"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/adamscao/certvault/internal/models"
)

// EmptyReplyFallback is used when the text service answers with nothing
const EmptyReplyFallback = "For outstanding performance and dedication to excellence."

const defaultFallback = "For successful completion of the requirements and demonstrated mastery of the subject matter."

var fallbacks = map[models.CertificateType]string{
	models.TypeTherapistTraining: "For successful completion of the requirements and demonstrated mastery of evidence-based clinical practice.",
	models.TypeCoachTraining:     "For successful completion of the requirements and demonstrated mastery of professional coaching.",
	models.TypePatientCompletion: "For the courage and commitment shown in prioritising mental wellness.",
}

// Fallback returns the fixed sentence for a category, used whenever the text
// service is unavailable or fails
func Fallback(t models.CertificateType) string {
	if s, ok := fallbacks[t]; ok {
		return s
	}
	return defaultFallback
}

// Request describes the certificate a commendation is written for
type Request struct {
	RecipientName string                 `json:"recipientName"`
	ProgramName   string                 `json:"programName"`
	Type          models.CertificateType `json:"type"`
}

// Generator produces a commendation. It always returns usable text.
type Generator interface {
	Generate(ctx context.Context, req Request) string
}

// StaticGenerator answers with the category fallback
type StaticGenerator struct{}

// Generate returns Fallback(req.Type)
func (StaticGenerator) Generate(_ context.Context, req Request) string {
	return Fallback(req.Type)
}

var plainText = bluemonday.StrictPolicy()

// Clean strips markup from generated text and collapses whitespace
func Clean(s string) string {
	s = html.UnescapeString(plainText.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
