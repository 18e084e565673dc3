package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/models"
)

// auditor writes audit log entries for a request. Failures to write are
// logged and otherwise ignored.
type auditor struct {
	repo   *repository.AuditRepository
	logger *zap.Logger
}

func (a auditor) success(c *gin.Context, action, username string, details map[string]any) {
	a.write(c, &models.AuditLog{
		Action:   action,
		Username: username,
		Success:  true,
	}, details)
}

func (a auditor) failure(c *gin.Context, action, username, reason string, details map[string]any) {
	a.write(c, &models.AuditLog{
		Action:   action,
		Username: username,
		ErrorMsg: reason,
	}, details)
}

func (a auditor) write(c *gin.Context, entry *models.AuditLog, details map[string]any) {
	entry.ClientIP = GetClientIP(c)
	entry.UserAgent = c.GetHeader("User-Agent")

	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			a.logger.Warn("failed to encode audit details", zap.Error(err))
		} else {
			entry.Details = string(raw)
		}
	}

	if err := a.repo.Create(c.Request.Context(), entry); err != nil {
		a.logger.Error("failed to write audit log",
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}
