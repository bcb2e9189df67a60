package snowflake

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"strings"

	"snowtools/pkg/errors"

	"github.com/snowflakedb/gosnowflake"
)

// sessionTokenPath is where Snowflake-managed runtimes mount the OAuth
// session token. Overridden in tests.
var sessionTokenPath = "/snowflake/session/token"

// InManagedRuntime reports whether Snowflake injected a host and session
// token into this process, which is how Snowpark Container Services
// hands services a ready-made identity.
func InManagedRuntime() bool {
	if os.Getenv("SNOWFLAKE_HOST") == "" {
		return false
	}
	_, err := os.Stat(sessionTokenPath)
	return err == nil
}

// OpenSession opens the warehouse with the managed runtime's token. No
// local configuration is consulted: host, account, and default database
// all come from the environment Snowflake provides.
func OpenSession() (Client, error) {
	host := os.Getenv("SNOWFLAKE_HOST")
	if host == "" {
		return nil, errors.New(errors.ErrCodeInitialization, "SNOWFLAKE_HOST is not set").
			WithSuggestions("Managed-session mode only works inside a Snowflake-hosted runtime")
	}

	token, err := os.ReadFile(sessionTokenPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSessionToken, "Failed to read session token").
			WithContext("path", sessionTokenPath)
	}

	port := 443
	if p := os.Getenv("SNOWFLAKE_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	cfg := &gosnowflake.Config{
		Account:       os.Getenv("SNOWFLAKE_ACCOUNT"),
		Host:          host,
		Port:          port,
		Protocol:      "https",
		Authenticator: gosnowflake.AuthTypeOAuth,
		Token:         strings.TrimSpace(string(token)),
		Database:      os.Getenv("SNOWFLAKE_DATABASE"),
		Schema:        os.Getenv("SNOWFLAKE_SCHEMA"),
		Warehouse:     os.Getenv("SNOWFLAKE_WAREHOUSE"),
	}

	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInitialization, "Failed to build session DSN").
			WithContext("host", host)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.ConnectionError("Failed to open Snowflake connection", err).
			WithContext("host", host)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	err = errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		return pingWithClassification(db, cfg.Account, "")
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &client{db: db, timeout: defaultQueryTimeout}, nil
}
