package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/auth"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/report"
)

// AdminHandler handles administrative operations
type AdminHandler struct {
	userRepo  *repository.UserRepository
	auditRepo *repository.AuditRepository
	registry  registry.Registry
	audit     auditor
	logger    *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(userRepo *repository.UserRepository, auditRepo *repository.AuditRepository, reg registry.Registry, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		registry:  reg,
		audit:     auditor{repo: auditRepo, logger: logger},
		logger:    logger,
	}
}

// CreateUserRequest represents a user creation request
type CreateUserRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	Role           string `json:"role" binding:"required"`
	TOTPSecret     string `json:"totp_secret"`
	Enabled        *bool  `json:"enabled"`
	MaxCertsPerDay int    `json:"max_certs_per_day"`
}

// CreateUserResponse represents a user creation response
type CreateUserResponse struct {
	Status     string `json:"status"`
	UserID     int64  `json:"user_id"`
	TOTPSecret string `json:"totp_secret"`
	TOTPQRUrl  string `json:"totp_qr_url"`
}

// CreateUser creates a new user
// POST /v1/admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	role := models.Role(req.Role)
	if !role.Valid() {
		RespondError(c, http.StatusBadRequest, "invalid_role", "Role must be admin, therapist or coach")
		return
	}

	// Hash password
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_password", err.Error())
		return
	}

	enrollment, err := auth.EnrollTOTP(req.Username, req.TOTPSecret)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_totp_secret", err.Error())
		return
	}

	// Set defaults
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	user := &models.User{
		Username:       req.Username,
		PasswordHash:   passwordHash,
		TOTPSecret:     enrollment.Secret,
		Role:           role,
		Enabled:        enabled,
		MaxCertsPerDay: req.MaxCertsPerDay,
	}

	if err := h.userRepo.Create(c.Request.Context(), user); errors.Is(err, repository.ErrUsernameTaken) {
		RespondError(c, http.StatusConflict, "user_exists", "User already exists")
		return
	} else if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to create user")
		return
	}

	h.audit.success(c, models.ActionAdminCreateUser, req.Username, map[string]any{
		"role": role,
	})

	c.JSON(http.StatusOK, CreateUserResponse{
		Status:     "ok",
		UserID:     user.ID,
		TOTPSecret: enrollment.Secret,
		TOTPQRUrl:  enrollment.URL,
	})
}

// ListCertificates lists the vault, optionally only one issuer role
// GET /v1/admin/certs?role=
func (h *AdminHandler) ListCertificates(c *gin.Context) {
	records, ok := h.listRecords(c)
	if !ok {
		return
	}

	RespondSuccess(c, gin.H{
		"certificates": records,
		"count":        len(records),
	})
}

// ExportCertificates returns the vault as an xlsx workbook
// GET /v1/admin/certs/export.xlsx
func (h *AdminHandler) ExportCertificates(c *gin.Context) {
	records, ok := h.listRecords(c)
	if !ok {
		return
	}

	data, err := report.GenerateVaultExport(records)
	if err != nil {
		h.logger.Error("failed to export registry", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to export certificates")
		return
	}

	h.audit.success(c, models.ActionRegistryExport, "", map[string]any{
		"count": len(records),
		"role":  c.Query("role"),
	})

	filename := "certificates-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, report.ContentType, data)
}

func (h *AdminHandler) listRecords(c *gin.Context) ([]*models.CertificateRecord, bool) {
	records, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list certificates", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to list certificates")
		return nil, false
	}

	if r := c.Query("role"); r != "" {
		role := models.Role(r)
		if !role.Valid() {
			RespondError(c, http.StatusBadRequest, "invalid_role", "Unknown role")
			return nil, false
		}
		records = registry.FilterByRole(records, role)
	}

	if records == nil {
		records = []*models.CertificateRecord{}
	}
	return records, true
}

// ListAuditLogs returns recent audit entries
// GET /v1/admin/audit?username=&action=&limit=
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := h.auditRepo.List(c.Request.Context(), repository.AuditFilter{
		Username: c.Query("username"),
		Action:   c.Query("action"),
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to list audit logs")
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}

	RespondSuccess(c, gin.H{"logs": logs})
}

// Summary reports activity over the last 24 hours
// GET /v1/admin/summary
func (h *AdminHandler) Summary(c *gin.Context) {
	byAction, err := h.auditRepo.CountSince(c.Request.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		h.logger.Error("failed to count audit logs", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to build summary")
		return
	}

	counts := gin.H{}
	for _, action := range []string{models.ActionCertIssue, models.ActionCertVerify, models.ActionAuthFailed} {
		counts[action] = byAction[action]
	}

	records, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list certificates", zap.Error(err))
		RespondError(c, http.StatusInternalServerError, "internal_error", "Failed to build summary")
		return
	}

	RespondSuccess(c, gin.H{
		"last_24h": counts,
		"vault": gin.H{
			"total":     len(records),
			"therapist": len(registry.FilterByRole(records, models.RoleTherapist)),
			"coach":     len(registry.FilterByRole(records, models.RoleCoach)),
		},
	})
}
