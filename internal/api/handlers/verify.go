package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry"
)

// VerifyHandler serves the public verification lookup
type VerifyHandler struct {
	config   *config.Config
	verifier *registry.Verifier
	audit    auditor
	logger   *zap.Logger
}

// NewVerifyHandler creates a new verification handler
func NewVerifyHandler(cfg *config.Config, verifier *registry.Verifier, auditRepo *repository.AuditRepository, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		config:   cfg,
		verifier: verifier,
		audit:    auditor{repo: auditRepo, logger: logger},
		logger:   logger,
	}
}

// VerifyResponse is the outcome of a verification lookup
type VerifyResponse struct {
	Query           string                    `json:"query"`
	Found           bool                      `json:"found"`
	IntegrityOK     bool                      `json:"integrity_ok"`
	Certificate     *models.CertificateRecord `json:"certificate,omitempty"`
	VerificationURL string                    `json:"verificationUrl,omitempty"`
	DocumentURL     string                    `json:"documentUrl,omitempty"`
}

// Verify looks a certificate up by identifier. A miss is a normal response
// with found false.
// GET /v1/verify/:certificateId
// GET /verify/:certificateId
func (h *VerifyHandler) Verify(c *gin.Context) {
	query := c.Param("certificateId")

	result, err := h.verifier.Verify(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("verification lookup failed", zap.String("query", query), zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to verify certificate")
		return
	}

	h.audit.success(c, models.ActionCertVerify, "", map[string]any{
		"query":        query,
		"found":        result.Found,
		"integrity_ok": result.IntegrityOK,
	})

	resp := VerifyResponse{
		Query:       result.Query,
		Found:       result.Found,
		IntegrityOK: result.IntegrityOK,
	}
	if result.Found {
		id := result.Record.CertificateID
		resp.Certificate = result.Record.WithoutDocument()
		resp.VerificationURL = h.config.VerificationURL(id)
		resp.DocumentURL = "/v1/certs/" + id + "/document"
	}

	RespondSuccess(c, resp)
}
