package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/auth"
	"github.com/adamscao/certvault/internal/commendation"
	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/issuance"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/policy"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/render"
)

// CertHandler handles certificate issuance and document retrieval
type CertHandler struct {
	config        *config.Config
	userRepo      *repository.UserRepository
	registry      registry.Registry
	service       *issuance.Service
	commendations commendation.Generator
	audit         auditor
	logger        *zap.Logger
}

// NewCertHandler creates a new certificate handler
func NewCertHandler(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditRepository,
	reg registry.Registry,
	service *issuance.Service,
	commendations commendation.Generator,
	logger *zap.Logger,
) *CertHandler {
	return &CertHandler{
		config:        cfg,
		userRepo:      userRepo,
		registry:      reg,
		service:       service,
		commendations: commendations,
		audit:         auditor{repo: auditRepo, logger: logger},
		logger:        logger,
	}
}

// Credentials identify an issuer on every issuing request
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTP     string `json:"totp" binding:"required"`
}

// IssueRequest represents a certificate issue request
type IssueRequest struct {
	Credentials
	RecipientName  string `json:"recipientName"`
	RecipientEmail string `json:"recipientEmail"`
	ProgramName    string `json:"programName"`
	CompletionDate string `json:"completionDate"`
	IssueDate      string `json:"issueDate"`
	Type           string `json:"type"`
	Commendation   string `json:"commendation"`
	// DraftStartedAt is when the issuer opened the form, RFC 3339
	DraftStartedAt string `json:"draftStartedAt"`
}

// IssueResponse represents a certificate issue response
type IssueResponse struct {
	Certificate     *models.CertificateRecord `json:"certificate"`
	VerificationURL string                    `json:"verificationUrl"`
	DocumentURL     string                    `json:"documentUrl"`
	Stages          []issuance.Stage          `json:"stages"`
}

// IssueCertificate handles certificate issuance
// POST /v1/certs/issue
func (h *CertHandler) IssueCertificate(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, ok := h.authenticate(c, req.Credentials)
	if !ok {
		return
	}

	draft := issuance.Draft{
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		ProgramName:    req.ProgramName,
		CompletionDate: req.CompletionDate,
		IssueDate:      req.IssueDate,
		Type:           models.CertificateType(req.Type),
		Commendation:   req.Commendation,
	}
	if req.DraftStartedAt != "" {
		started, err := time.Parse(time.RFC3339, req.DraftStartedAt)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", "draftStartedAt must be an RFC 3339 timestamp")
			return
		}
		draft.CreatedAt = started
	}

	var stages []issuance.Stage
	rec, err := h.service.Issue(c.Request.Context(), user, draft, func(s issuance.Stage) {
		stages = append(stages, s)
	})
	if err != nil {
		h.audit.failure(c, models.ActionCertIssue, user.Username, err.Error(), map[string]any{
			"type": req.Type,
		})
		h.respondIssueError(c, err)
		return
	}

	h.audit.success(c, models.ActionCertIssue, user.Username, map[string]any{
		"certificate_id": rec.CertificateID,
		"type":           rec.Type,
		"hash":           rec.Hash,
	})

	c.JSON(http.StatusOK, IssueResponse{
		Certificate:     rec.WithoutDocument(),
		VerificationURL: h.config.VerificationURL(rec.CertificateID),
		DocumentURL:     "/v1/certs/" + rec.CertificateID + "/document",
		Stages:          stages,
	})
}

func (h *CertHandler) respondIssueError(c *gin.Context, err error) {
	var vErr *policy.ValidationError
	switch {
	case errors.As(err, &vErr):
		RespondErrorWithDetails(c, http.StatusBadRequest, "validation_failed", "Please fill in all required fields", vErr.Fields)
	case errors.Is(err, policy.ErrAccountDisabled):
		RespondError(c, http.StatusForbidden, "account_disabled", "User account is disabled")
	case errors.Is(err, policy.ErrNotPermitted):
		RespondError(c, http.StatusForbidden, "not_permitted", err.Error())
	case errors.Is(err, policy.ErrQuotaExceeded):
		RespondError(c, http.StatusForbidden, "quota_exceeded", err.Error())
	case errors.Is(err, issuance.ErrIssuanceInProgress):
		RespondError(c, http.StatusConflict, "issuance_in_progress", "An issuance is already in progress")
	case errors.Is(err, issuance.ErrIdentifierExhausted):
		RespondError(c, http.StatusServiceUnavailable, "identifier_exhausted", "Could not allocate a certificate identifier. Please try again.")
	case errors.Is(err, issuance.ErrRenderFailed):
		RespondError(c, http.StatusInternalServerError, "render_failed", "Failed to generate certificate document. Please try again.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		RespondError(c, http.StatusServiceUnavailable, "issuance_cancelled", "Issuance was cancelled before it was stored")
	default:
		h.logger.Error("certificate issuance failed", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to issue certificate")
	}
}

// CommendationRequest asks for a suggested commendation
type CommendationRequest struct {
	Credentials
	RecipientName string `json:"recipientName" binding:"required"`
	ProgramName   string `json:"programName" binding:"required"`
	Type          string `json:"type"`
}

// SuggestCommendation returns a generated commendation
// POST /v1/certs/commendation
func (h *CertHandler) SuggestCommendation(c *gin.Context) {
	var req CommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, ok := h.authenticate(c, req.Credentials)
	if !ok {
		return
	}

	certType := models.CertificateType(req.Type)
	if certType == "" {
		certType, _ = policy.DefaultType(user.Role)
	}
	if !policy.CanIssue(user.Role, certType) {
		RespondError(c, http.StatusForbidden, "not_permitted", "Role is not permitted to issue this certificate type")
		return
	}

	text := h.commendations.Generate(c.Request.Context(), commendation.Request{
		RecipientName: req.RecipientName,
		ProgramName:   req.ProgramName,
		Type:          certType,
	})

	RespondSuccess(c, gin.H{"commendation": text})
}

// GetDocument returns the stored certificate document
// GET /v1/certs/:certificateId/document
func (h *CertHandler) GetDocument(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	if len(rec.Document) == 0 {
		RespondError(c, http.StatusNotFound, "document_not_found", "No document stored for this certificate")
		return
	}

	ext := ".html"
	if strings.HasPrefix(rec.DocumentType, "application/pdf") {
		ext = ".pdf"
	}
	c.Header("Content-Disposition", `inline; filename="`+rec.CertificateID+ext+`"`)
	c.Data(http.StatusOK, rec.DocumentType, rec.Document)
}

// GetQRCode returns the verification QR code of a certificate
// GET /v1/certs/:certificateId/qr.png
func (h *CertHandler) GetQRCode(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}

	png, err := render.QRCodePNG(h.config.VerificationURL(rec.CertificateID), render.DefaultQRSize)
	if err != nil {
		h.logger.Error("failed to render qr code", zap.String("certificate_id", rec.CertificateID), zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to render QR code")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *CertHandler) lookup(c *gin.Context) (*models.CertificateRecord, bool) {
	rec, err := h.registry.FindByIdentifier(c.Request.Context(), c.Param("certificateId"))
	if errors.Is(err, registry.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "not_found", "Certificate not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("registry lookup failed", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to look up certificate")
		return nil, false
	}
	return rec, true
}

// authenticate checks username, password and TOTP. On failure it writes the
// response and an audit entry.
func (h *CertHandler) authenticate(c *gin.Context, creds Credentials) (*models.User, bool) {
	user, err := h.userRepo.GetByUsername(c.Request.Context(), creds.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			h.logger.Error("failed to load user", zap.Error(err))
		}
		h.audit.failure(c, models.ActionAuthFailed, creds.Username, "User not found", nil)
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return nil, false
	}

	validPassword, err := auth.VerifyPassword(creds.Password, user.PasswordHash)
	if err != nil || !validPassword {
		h.audit.failure(c, models.ActionAuthFailed, creds.Username, "Invalid password", nil)
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return nil, false
	}

	if !auth.ValidateTOTP(user.TOTPSecret, creds.TOTP) {
		h.audit.failure(c, models.ActionAuthFailed, creds.Username, "Invalid TOTP", nil)
		RespondError(c, http.StatusUnauthorized, "invalid_totp", "Invalid TOTP code")
		return nil, false
	}

	return user, true
}
