package models

import "strings"

// CertificateType is the credential category printed on a certificate
type CertificateType string

// Credential categories
const (
	TypeTherapistTraining CertificateType = "therapist_training"
	TypeCoachTraining     CertificateType = "coach_training"
	TypePatientCompletion CertificateType = "patient_completion"
)

// CertificateTypes lists every known credential category
var CertificateTypes = []CertificateType{
	TypeTherapistTraining,
	TypeCoachTraining,
	TypePatientCompletion,
}

// Valid reports whether t is one of the known categories
func (t CertificateType) Valid() bool {
	for _, known := range CertificateTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Certificate status values. Nothing sets StatusRevoked today.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

// MaxSignatories is the number of signature blocks a document has room for
const MaxSignatories = 3

// Signatory is a name/title pair printed in a signature block
type Signatory struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// DefaultSignatories is the signature set printed on every certificate
var DefaultSignatories = []Signatory{
	{Name: "Mahan Gupta", Title: "CEO & Founder"},
	{Name: "Dr. Priya Sharma", Title: "Chief Medical Officer"},
	{Name: "Ms. Anjali Verma", Title: "Head of Training"},
}

// CertificateRecord is one issued credential as stored in the registry.
// JSON keys match the layout persisted by the browser registry.
type CertificateRecord struct {
	ID             string          `json:"id"`
	CertificateID  string          `json:"certificate_id"`
	RecipientName  string          `json:"recipientName"`
	RecipientEmail string          `json:"recipientEmail"`
	ProgramName    string          `json:"programName"`
	CompletionDate string          `json:"completionDate"`
	IssueDate      string          `json:"issueDate"`
	Type           CertificateType `json:"type"`
	Commendation   string          `json:"commendation"`
	Hash           string          `json:"hash"`
	Status         string          `json:"status"`
	Signatories    []Signatory     `json:"signatories"`
	IssuerRole     Role            `json:"issuerRole,omitempty"`
	IssuedBy       string          `json:"issuedBy,omitempty"`
	CloudURL       string          `json:"cloudUrl,omitempty"`
	Document       Document        `json:"pdfData,omitempty"`
	DocumentType   string          `json:"documentType,omitempty"`
	Timestamp      int64           `json:"timestamp"` // Unix milliseconds
}

// WithoutDocument returns a shallow copy with the document bytes dropped,
// for listings where the payload would only add weight
func (r *CertificateRecord) WithoutDocument() *CertificateRecord {
	c := *r
	c.Document = nil
	return &c
}

// NormalizeCertificateID returns the form used for identifier comparison
func NormalizeCertificateID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
