package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/adamscao/certvault/internal/credential"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Registry     RegistryConfig     `yaml:"registry"`
	Integrity    IntegrityConfig    `yaml:"integrity"`
	Verification VerificationConfig `yaml:"verification"`
	Upload       UploadConfig       `yaml:"upload"`
	Render       RenderConfig       `yaml:"render"`
	Commendation CommendationConfig `yaml:"commendation"`
	Policy       PolicyConfig       `yaml:"policy"`
	Admin        AdminConfig        `yaml:"admin"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RegistryConfig selects where certificate records live
type RegistryConfig struct {
	Backend string      `yaml:"backend"` // sqlite, redis or memory
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig contains the redis registry connection
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// IntegrityConfig contains the digest secret
type IntegrityConfig struct {
	Secret string `yaml:"secret"`
}

// VerificationConfig contains the public verification address
type VerificationConfig struct {
	BaseURL string `yaml:"base_url"`
}

// UploadConfig describes the simulated cloud store
type UploadConfig struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	SimulateDelays bool   `yaml:"simulate_delays"`
	RenderDelay    string `yaml:"render_delay"`
	InitDelay      string `yaml:"init_delay"`
	ConnectDelay   string `yaml:"connect_delay"`
	UploadDelay    string `yaml:"upload_delay"`
	FinalizeDelay  string `yaml:"finalize_delay"`
}

// RenderConfig selects the document exporter
type RenderConfig struct {
	Exporter  string `yaml:"exporter"` // html or chrome
	ChromeBin string `yaml:"chrome_bin"`
	Timeout   string `yaml:"timeout"`
}

// CommendationConfig configures the text generation service
type CommendationConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// PolicyConfig contains issuance policy
type PolicyConfig struct {
	MaxCertsPerDay int `yaml:"max_certs_per_day"`
}

// AdminConfig contains admin configuration
type AdminConfig struct {
	Token string `yaml:"token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every optional field filled in
func Default() *Config {
	return &Config{
		Server:   ServerConfig{ListenAddr: ":8080"},
		Database: DatabaseConfig{Path: "/var/lib/certvault/certvault.db"},
		Registry: RegistryConfig{
			Backend: "sqlite",
			Redis:   RedisConfig{Addr: "localhost:6379", Key: "certificates"},
		},
		Verification: VerificationConfig{BaseURL: "https://manas360.in"},
		Upload: UploadConfig{
			Bucket:         "manas360-s3-bucket",
			Region:         "us-east-1",
			SimulateDelays: true,
			RenderDelay:    "800ms",
			InitDelay:      "500ms",
			ConnectDelay:   "500ms",
			UploadDelay:    "800ms",
			FinalizeDelay:  "400ms",
		},
		Render:       RenderConfig{Exporter: "html", Timeout: "30s"},
		Commendation: CommendationConfig{Model: "gemini-2.5-flash", Timeout: "10s"},
		Policy:       PolicyConfig{MaxCertsPerDay: 50},
		Logging:      LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	// Database validation
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Registry validation
	switch c.Registry.Backend {
	case "sqlite", "memory":
	case "redis":
		if c.Registry.Redis.Addr == "" {
			return fmt.Errorf("registry.redis.addr is required for the redis backend")
		}
		if c.Registry.Redis.Key == "" {
			return fmt.Errorf("registry.redis.key is required for the redis backend")
		}
	default:
		return fmt.Errorf("registry.backend must be one of: sqlite, redis, memory")
	}

	// Integrity validation
	if c.Integrity.Secret == "" || c.Integrity.Secret == credential.DefaultSecret {
		fmt.Fprintf(os.Stderr, "WARNING: Using the default integrity secret. Digests can be recomputed by anyone holding it.\n")
	}

	// Verification validation
	u, err := url.Parse(c.Verification.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("verification.base_url must be an absolute URL")
	}

	// Upload validation
	if c.Upload.Bucket == "" || c.Upload.Region == "" {
		return fmt.Errorf("upload.bucket and upload.region are required")
	}
	for name, v := range map[string]string{
		"upload.render_delay":   c.Upload.RenderDelay,
		"upload.init_delay":     c.Upload.InitDelay,
		"upload.connect_delay":  c.Upload.ConnectDelay,
		"upload.upload_delay":   c.Upload.UploadDelay,
		"upload.finalize_delay": c.Upload.FinalizeDelay,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s is invalid: %w", name, err)
		}
	}

	// Render validation
	if c.Render.Exporter != "html" && c.Render.Exporter != "chrome" {
		return fmt.Errorf("render.exporter must be 'html' or 'chrome'")
	}
	if _, err := parseDuration(c.Render.Timeout); err != nil {
		return fmt.Errorf("render.timeout is invalid: %w", err)
	}

	// Commendation validation
	if _, err := parseDuration(c.Commendation.Timeout); err != nil {
		return fmt.Errorf("commendation.timeout is invalid: %w", err)
	}

	// Policy validation
	if c.Policy.MaxCertsPerDay <= 0 {
		return fmt.Errorf("policy.max_certs_per_day must be positive")
	}

	// Admin validation
	if c.Admin.Token == "" {
		return fmt.Errorf("admin.token is required")
	}
	if c.Admin.Token == "your-secure-admin-token-change-me-in-production" {
		fmt.Fprintf(os.Stderr, "WARNING: Using default admin token. Please change it in production!\n")
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}

// StageDelays returns the simulated delays in stage order: render, init,
// connect, upload, finalize. All zero when delays are not simulated.
func (c *Config) StageDelays() [5]time.Duration {
	var out [5]time.Duration
	if !c.Upload.SimulateDelays {
		return out
	}
	for i, v := range []string{
		c.Upload.RenderDelay,
		c.Upload.InitDelay,
		c.Upload.ConnectDelay,
		c.Upload.UploadDelay,
		c.Upload.FinalizeDelay,
	} {
		out[i], _ = parseDuration(v)
	}
	return out
}

// GetRenderTimeout returns the exporter timeout as time.Duration
func (c *Config) GetRenderTimeout() time.Duration {
	d, _ := parseDuration(c.Render.Timeout)
	return d
}

// GetCommendationTimeout returns the text generation timeout as time.Duration
func (c *Config) GetCommendationTimeout() time.Duration {
	d, _ := parseDuration(c.Commendation.Timeout)
	return d
}

// VerificationURL returns the public verification address for a certificate
func (c *Config) VerificationURL(certificateID string) string {
	return strings.TrimRight(c.Verification.BaseURL, "/") + "/verify/" + url.PathEscape(certificateID)
}

// CloudURL returns the object address a certificate document is reported at
func (c *Config) CloudURL(certificateID string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/certificates/%s.pdf",
		c.Upload.Bucket, c.Upload.Region, url.PathEscape(certificateID))
}

// parseDuration parses duration with support for days (e.g., "90d")
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
