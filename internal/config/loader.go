package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file. Fields missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}

// ApplyEnv applies CERTVAULT_* environment variable overrides to cfg
func ApplyEnv(cfg *Config) error {
	if dbPath := os.Getenv("CERTVAULT_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if listenAddr := os.Getenv("CERTVAULT_LISTEN_ADDR"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	if adminToken := os.Getenv("CERTVAULT_ADMIN_TOKEN"); adminToken != "" {
		cfg.Admin.Token = adminToken
	}

	if secret := os.Getenv("CERTVAULT_INTEGRITY_SECRET"); secret != "" {
		cfg.Integrity.Secret = secret
	}

	if backend := os.Getenv("CERTVAULT_REGISTRY_BACKEND"); backend != "" {
		cfg.Registry.Backend = backend
	}

	if addr := os.Getenv("CERTVAULT_REDIS_ADDR"); addr != "" {
		cfg.Registry.Redis.Addr = addr
	}

	if password := os.Getenv("CERTVAULT_REDIS_PASSWORD"); password != "" {
		cfg.Registry.Redis.Password = password
	}

	if apiKey := os.Getenv("CERTVAULT_GENAI_API_KEY"); apiKey != "" {
		cfg.Commendation.APIKey = apiKey
	}

	if simulate := os.Getenv("CERTVAULT_SIMULATE_DELAYS"); simulate != "" {
		v, err := strconv.ParseBool(simulate)
		if err != nil {
			return fmt.Errorf("CERTVAULT_SIMULATE_DELAYS is invalid: %w", err)
		}
		cfg.Upload.SimulateDelays = v
	}

	return nil
}
