package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry"
)

// DateLayout is the completion date format bound into the digest
const DateLayout = "2006-01-02"

var (
	// ErrAccountDisabled is returned for disabled issuer accounts
	ErrAccountDisabled = errors.New("user account is disabled")

	// ErrNotPermitted is returned when a role may not issue a category
	ErrNotPermitted = errors.New("role is not permitted to issue this certificate type")

	// ErrQuotaExceeded is returned when the daily issuance limit is reached
	ErrQuotaExceeded = errors.New("daily certificate limit exceeded")
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of an issuance request
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// issuePermissions maps each issuing role to the categories it may issue
var issuePermissions = map[models.Role][]models.CertificateType{
	models.RoleTherapist: {models.TypeTherapistTraining, models.TypePatientCompletion},
	models.RoleCoach:     {models.TypeCoachTraining},
}

// CanIssue reports whether role may issue certificates of type t
func CanIssue(role models.Role, t models.CertificateType) bool {
	for _, allowed := range issuePermissions[role] {
		if allowed == t {
			return true
		}
	}
	return false
}

// DefaultType returns the category a role issues when none is requested
func DefaultType(role models.Role) (models.CertificateType, bool) {
	types := issuePermissions[role]
	if len(types) == 0 {
		return "", false
	}
	return types[0], true
}

// Fields holds the issuer-supplied values checked before hashing
type Fields struct {
	RecipientName  string
	RecipientEmail string
	ProgramName    string
	CompletionDate string
	Type           models.CertificateType
}

// ValidateFields checks the required text fields, the completion date and
// the category. It returns a *ValidationError naming every failure.
func ValidateFields(f Fields) error {
	var errs []FieldError

	required := []struct{ name, value string }{
		{"recipientName", f.RecipientName},
		{"recipientEmail", f.RecipientEmail},
		{"programName", f.ProgramName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, FieldError{Field: r.name, Message: "is required"})
		}
	}

	if _, err := time.Parse(DateLayout, f.CompletionDate); err != nil {
		errs = append(errs, FieldError{Field: "completionDate", Message: "must be a date in YYYY-MM-DD form"})
	}

	if !f.Type.Valid() {
		errs = append(errs, FieldError{Field: "type", Message: fmt.Sprintf("unknown certificate type %q", f.Type)})
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Validator validates issuance requests against policy
type Validator struct {
	config *config.Config
	certs  registry.Registry
	now    func() time.Time
}

// NewValidator creates a new policy validator
func NewValidator(cfg *config.Config, certs registry.Registry) *Validator {
	return &Validator{
		config: cfg,
		certs:  certs,
		now:    time.Now,
	}
}

// ValidateIssuer checks that user may issue a certificate of type t today
func (v *Validator) ValidateIssuer(ctx context.Context, user *models.User, t models.CertificateType) error {
	// Check if user is enabled
	if !user.Enabled {
		return ErrAccountDisabled
	}

	if !CanIssue(user.Role, t) {
		return fmt.Errorf("%w (role %s, type %s)", ErrNotPermitted, user.Role, t)
	}

	// Check daily certificate limit
	now := v.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := v.certs.CountIssuedSince(ctx, user.Username, startOfDay)
	if err != nil {
		return fmt.Errorf("failed to check daily limit: %w", err)
	}

	maxCerts := user.MaxCertsPerDay
	if maxCerts <= 0 {
		maxCerts = v.config.Policy.MaxCertsPerDay
	}

	if count >= maxCerts {
		return fmt.Errorf("%w (%d/%d)", ErrQuotaExceeded, count, maxCerts)
	}

	return nil
}
