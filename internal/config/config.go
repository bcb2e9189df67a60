package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"snowtools/internal/common"
	"snowtools/pkg/models"

	"gopkg.in/yaml.v3"
)

// Built-in defaults applied to any field left empty in config.yaml.
const (
	DefaultAddr           = "127.0.0.1:8484"
	DefaultPortalDatabase = "STREAMLITPORTAL"
	DefaultPortalSchema   = "PUBLIC"
	DefaultSupportDB      = "DB_SNOWTOOLS"
	DefaultSupportSchema  = "PUBLIC"
	DefaultModel          = "claude-4-sonnet"
	DefaultProfile        = "default"

	DefaultCatalogTTL = 5 * time.Minute
	DefaultUsersTTL   = 10 * time.Minute
	DefaultOrgTTL     = time.Hour
)

// DefaultAdminRoles grant portal administration in addition to whatever
// config.yaml lists.
var DefaultAdminRoles = []string{"STREAMLITPORTALADMINS", "ACCOUNTADMIN"}

func GetConfigPath() string {
	// Check for environment variable first
	if configPath := os.Getenv("SNOWTOOLS_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	return common.AppDir()
}

func GetConfigFile() string {
	// Check for environment variable first
	if configFile := os.Getenv("SNOWTOOLS_CONFIG"); configFile != "" {
		// Validate the path to prevent directory traversal
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			// Fall back to default if invalid
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	// Validate the config file path
	cleanedPath, err := common.CleanPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	// Missing file is not an error; defaults carry a fresh install far
	// enough to run the init wizard or serve in managed-session mode.
	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&config)
	return &config, nil
}

func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := GetConfigFile()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// Default returns a config populated with every built-in default.
func Default() *models.Config {
	cfg := &models.Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills empty fields in place so callers never have to
// guard against a partially written config.yaml.
func ApplyDefaults(cfg *models.Config) {
	if cfg.Connection.Profile == "" {
		cfg.Connection.Profile = DefaultProfile
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Portal.Database == "" {
		cfg.Portal.Database = DefaultPortalDatabase
	}
	if cfg.Portal.Schema == "" {
		cfg.Portal.Schema = DefaultPortalSchema
	}
	if len(cfg.Portal.AdminRoles) == 0 {
		cfg.Portal.AdminRoles = append([]string(nil), DefaultAdminRoles...)
	}
	if cfg.Quality.Database == "" {
		cfg.Quality.Database = DefaultSupportDB
	}
	if cfg.Quality.Schema == "" {
		cfg.Quality.Schema = DefaultSupportSchema
	}
	if cfg.Quality.Model == "" {
		cfg.Quality.Model = DefaultModel
	}
}

// TTL parses a duration string from the cache section, falling back when
// the field is empty or malformed.
func TTL(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
