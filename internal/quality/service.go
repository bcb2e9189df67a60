package quality

import (
	"context"
	"fmt"
	"strings"
	"time"

	"snowtools/internal/cache"
	"snowtools/internal/config"
	"snowtools/internal/observability"
	"snowtools/internal/snowflake"
	"snowtools/pkg/errors"
)

// Service provides the data quality and documentation operations: catalog
// browsing, LLM-generated descriptions, data metric functions, contacts
// and the change history. Documentation state lives in the warehouse
// itself (object comments); the support database only carries the audit
// tables.
type Service struct {
	client  snowflake.Client
	store   *cache.Cache
	logger  *observability.Logger
	degrade *errors.GracefulDegradation

	database string
	schema   string
	model    string

	catalogTTL time.Duration
}

// Options configures a quality Service. Zero values fall back to the
// defaults in internal/config.
type Options struct {
	Database   string
	Schema     string
	Model      string
	CatalogTTL time.Duration
}

// NewService creates a quality service backed by the given warehouse
// client. The cache may be shared with other services; quality keys are
// namespaced under "quality:".
func NewService(client snowflake.Client, store *cache.Cache, opts Options) *Service {
	if opts.Database == "" {
		opts.Database = config.DefaultSupportDB
	}
	if opts.Schema == "" {
		opts.Schema = config.DefaultSupportSchema
	}
	if opts.Model == "" {
		opts.Model = config.DefaultModel
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = config.DefaultCatalogTTL
	}

	return &Service{
		client:     client,
		store:      store,
		logger:     observability.GetDefaultLogger().Component("quality"),
		degrade:    errors.NewGracefulDegradation(errors.GetGlobalErrorHandler()),
		database:   opts.Database,
		schema:     opts.Schema,
		model:      opts.Model,
		catalogTTL: opts.CatalogTTL,
	}
}

// DefaultModel returns the configured Cortex model.
func (s *Service) DefaultModel() string {
	return s.model
}

// supportTable returns a fully qualified audit-table name. Queries never
// rely on the session's current database; the pool hands statements to
// arbitrary connections.
func (s *Service) supportTable(name string) string {
	return fmt.Sprintf("%s.%s.%s", s.database, s.schema, name)
}

// escape doubles single quotes for safe embedding in SQL literals.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// EnsureSupportSchema creates the support database and audit tables if
// they do not exist. Safe to run on every startup.
func (s *Service) EnsureSupportSchema(ctx context.Context) error {
	if !s.supportDatabaseExists(ctx) {
		if err := s.client.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database)); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseNotFound,
				fmt.Sprintf("Support database '%s' could not be created", s.database)).
				WithContext("database", s.database).
				WithSuggestions(
					fmt.Sprintf("Create it manually: CREATE DATABASE %s", s.database),
					"Check that your role has CREATE DATABASE privilege",
				)
		}
		if err := s.client.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", s.database, s.schema)); err != nil {
			return err
		}
	}

	historyDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    HISTORY_ID NUMBER AUTOINCREMENT PRIMARY KEY,
    DATABASE_NAME VARCHAR(255) NOT NULL,
    SCHEMA_NAME VARCHAR(255) NOT NULL,
    OBJECT_TYPE VARCHAR(50) NOT NULL,
    OBJECT_NAME VARCHAR(255) NOT NULL,
    COLUMN_NAME VARCHAR(255),
    BEFORE_DESCRIPTION TEXT,
    AFTER_DESCRIPTION TEXT,
    SQL_EXECUTED TEXT,
    UPDATED_BY VARCHAR(255) DEFAULT CURRENT_USER(),
    UPDATED_AT TIMESTAMP_LTZ DEFAULT CURRENT_TIMESTAMP()
)`, s.supportTable("DATA_DESCRIPTION_HISTORY"))

	if err := s.client.Exec(ctx, historyDDL); err != nil {
		return err
	}

	resultsDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    RESULT_ID NUMBER AUTOINCREMENT PRIMARY KEY,
    MONITOR_NAME VARCHAR(255) NOT NULL,
    DATABASE_NAME VARCHAR(255) NOT NULL,
    SCHEMA_NAME VARCHAR(255) NOT NULL,
    TABLE_NAME VARCHAR(255) NOT NULL,
    COLUMN_NAME VARCHAR(255),
    METRIC_VALUE NUMBER,
    METRIC_UNIT VARCHAR(50),
    THRESHOLD_MIN NUMBER,
    THRESHOLD_MAX NUMBER,
    STATUS VARCHAR(20),
    MEASUREMENT_TIME TIMESTAMP_LTZ,
    RECORD_INSERTED_AT TIMESTAMP_LTZ DEFAULT CURRENT_TIMESTAMP(),
    SQL_EXECUTED TEXT
)`, s.supportTable("DATA_QUALITY_RESULTS"))

	return s.client.Exec(ctx, resultsDDL)
}

// supportDatabaseExists checks INFORMATION_SCHEMA for the support
// database. Any failure reads as absent; the CREATE statements are
// idempotent either way.
func (s *Service) supportDatabaseExists(ctx context.Context) bool {
	query := fmt.Sprintf(
		"SELECT COUNT(*) as db_count FROM INFORMATION_SCHEMA.DATABASES WHERE DATABASE_NAME = '%s'",
		escape(strings.ToUpper(s.database)))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return false
	}
	row, ok := result.First()
	return ok && row.Int("db_count") > 0
}

// invalidateCatalog drops every cached catalog read. Called after any
// write that changes object or column comments.
func (s *Service) invalidateCatalog() {
	if s.store == nil {
		return
	}
	n := s.store.InvalidatePrefix(cache.Key("quality", "catalog"))
	if n > 0 {
		s.logger.WithField("entries", n).Debug("catalog cache invalidated")
	}
}

// invalidateContacts drops cached contact reads after an assignment.
func (s *Service) invalidateContacts() {
	if s.store == nil {
		return
	}
	s.store.InvalidatePrefix(cache.Key("quality", "contacts"))
}
