package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"snowtools/internal/common"
	"snowtools/pkg/errors"
	"snowtools/pkg/models"

	"github.com/BurntSushi/toml"
)

// Profile is a named connection from ~/.snowflake/connections.toml, the
// same file the Snowflake CLI and connectors read.
type Profile struct {
	Account   string `toml:"account"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Warehouse string `toml:"warehouse"`
	Role      string `toml:"role"`
	Database  string `toml:"database"`
	Schema    string `toml:"schema"`
}

// PasswordSource supplies passwords for profiles that do not embed one
// in the toml file. The security.CredentialManager satisfies it.
type PasswordSource interface {
	ProfilePassword(profile string) (string, error)
}

// ConnectionsPath returns the connections.toml location.
func ConnectionsPath() string {
	return filepath.Join(common.SnowflakeDir(), "connections.toml")
}

// LoadProfiles reads every profile from connections.toml.
func LoadProfiles(path string) (map[string]Profile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("Connections file not found at %s", path)).
			WithSuggestions(
				"Run 'snowtools init' to create a connection profile",
				"Or create the file following the Snowflake connections.toml format",
			)
	}

	var profiles map[string]Profile
	if _, err := toml.DecodeFile(path, &profiles); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse connections.toml").
			WithContext("path", path)
	}
	return profiles, nil
}

// ProfileNames returns the profile names sorted for display.
func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenConnector opens the warehouse through a connections.toml profile.
// The config's connection overrides (warehouse, role, database, schema)
// win over what the profile declares; the password comes from the
// profile or, failing that, from the credential store.
func OpenConnector(conn models.Connection, passwords PasswordSource) (Client, error) {
	profiles, err := LoadProfiles(ConnectionsPath())
	if err != nil {
		return nil, err
	}

	profile, ok := profiles[conn.Profile]
	if !ok {
		return nil, errors.New(errors.ErrCodeProfileNotFound,
			fmt.Sprintf("Connection profile %q not found", conn.Profile)).
			WithContext("available", strings.Join(ProfileNames(profiles), ", ")).
			WithSuggestions(
				"Check the connection.profile setting in config.yaml",
				"Add the profile to "+ConnectionsPath(),
			)
	}

	applyOverrides(&profile, conn)

	if profile.Account == "" || profile.User == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("Profile %q is missing account or user", conn.Profile))
	}

	if profile.Password == "" && passwords != nil {
		password, err := passwords.ProfilePassword(conn.Profile)
		if err == nil {
			profile.Password = password
		}
	}
	if profile.Password == "" {
		return nil, errors.New(errors.ErrCodeCredentialMissing,
			fmt.Sprintf("No password available for profile %q", conn.Profile)).
			WithSuggestions(
				"Run 'snowtools init' to store the password in the credential store",
				"Or add a password entry to the profile in connections.toml",
			)
	}

	db, err := sql.Open("snowflake", buildDSN(profile))
	if err != nil {
		return nil, errors.ConnectionError("Failed to open Snowflake connection", err).
			WithContext("account", profile.Account).
			WithContext("warehouse", profile.Warehouse)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	breaker := errors.NewCircuitBreaker("snowflake-connect", 5, 30*time.Second)
	err = breaker.Execute(context.Background(), func() error {
		return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
			return pingWithClassification(db, profile.Account, profile.User)
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &client{db: db, timeout: defaultQueryTimeout}, nil
}

func applyOverrides(profile *Profile, conn models.Connection) {
	if conn.Warehouse != "" {
		profile.Warehouse = conn.Warehouse
	}
	if conn.Role != "" {
		profile.Role = conn.Role
	}
	if conn.Database != "" {
		profile.Database = conn.Database
	}
	if conn.Schema != "" {
		profile.Schema = conn.Schema
	}
}

// buildDSN renders the gosnowflake DSN:
// user:password@account/database/schema?warehouse=X&role=Y
func buildDSN(p Profile) string {
	var b strings.Builder
	b.WriteString(p.User)
	b.WriteString(":")
	b.WriteString(p.Password)
	b.WriteString("@")
	b.WriteString(p.Account)

	if p.Database != "" {
		b.WriteString("/")
		b.WriteString(p.Database)
		if p.Schema != "" {
			b.WriteString("/")
			b.WriteString(p.Schema)
		}
	}

	params := url.Values{}
	if p.Warehouse != "" {
		params.Set("warehouse", p.Warehouse)
	}
	if p.Role != "" {
		params.Set("role", p.Role)
	}
	if len(params) > 0 {
		b.WriteString("?")
		b.WriteString(params.Encode())
	}
	return b.String()
}
