package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adamscao/certvault/internal/api/handlers"
	"github.com/adamscao/certvault/internal/api/middleware"
	"github.com/adamscao/certvault/internal/commendation"
	"github.com/adamscao/certvault/internal/config"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/issuance"
	"github.com/adamscao/certvault/internal/registry"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
	http   *http.Server
}

// Deps groups the collaborators the HTTP handlers use
type Deps struct {
	UserRepo      *repository.UserRepository
	AuditRepo     *repository.AuditRepository
	Registry      registry.Registry
	Service       *issuance.Service
	Commendations commendation.Generator
	Logger        *zap.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Create handlers
	verifier := registry.NewVerifier(deps.Registry, deps.Service.Hasher())
	certHandler := handlers.NewCertHandler(cfg, deps.UserRepo, deps.AuditRepo, deps.Registry, deps.Service, deps.Commendations, logger)
	verifyHandler := handlers.NewVerifyHandler(cfg, verifier, deps.AuditRepo, logger)
	adminHandler := handlers.NewAdminHandler(deps.UserRepo, deps.AuditRepo, deps.Registry, logger)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Certificate endpoints
		certs := v1.Group("/certs")
		{
			certs.POST("/issue", certHandler.IssueCertificate)
			certs.POST("/commendation", certHandler.SuggestCommendation)
			certs.GET("/:certificateId/document", certHandler.GetDocument)
			certs.GET("/:certificateId/qr.png", certHandler.GetQRCode)
		}

		// Public verification
		v1.GET("/verify/:certificateId", verifyHandler.Verify)

		// Admin endpoints (require admin token)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.Admin.Token, logger))
		{
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/certs", adminHandler.ListCertificates)
			admin.GET("/certs/export.xlsx", adminHandler.ExportCertificates)
			admin.GET("/audit", adminHandler.ListAuditLogs)
			admin.GET("/summary", adminHandler.Summary)
		}
	}

	// Target of the QR code printed on certificates
	router.GET("/verify/:certificateId", verifyHandler.Verify)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
		http: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server and blocks until it stops. It returns nil
// after Shutdown.
func (s *Server) Run() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones to finish
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
