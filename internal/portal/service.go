package portal

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

// Service provides the apps-portal operations: catalog management,
// access grants, tile images and the end-user app grid. All state lives
// in the portal database; the service only adds read caching on top.
type Service struct {
	client snowflake.Client
	mode   snowflake.Mode
	store  *cache.Cache
	logger *observability.Logger

	database   string
	schema     string
	adminRoles []string

	catalogTTL time.Duration
	usersTTL   time.Duration
	orgTTL     time.Duration
}

// Options configures a portal Service. Zero values fall back to the
// defaults in internal/config.
type Options struct {
	Database   string
	Schema     string
	AdminRoles []string
	CatalogTTL time.Duration
	UsersTTL   time.Duration
	OrgTTL     time.Duration
}

// NewService creates a portal service backed by the given warehouse
// client. The cache may be shared with other services; portal keys are
// namespaced under "portal:".
func NewService(client snowflake.Client, mode snowflake.Mode, store *cache.Cache, opts Options) *Service {
	if opts.Database == "" {
		opts.Database = config.DefaultPortalDatabase
	}
	if opts.Schema == "" {
		opts.Schema = config.DefaultPortalSchema
	}
	if len(opts.AdminRoles) == 0 {
		opts.AdminRoles = config.DefaultAdminRoles
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = config.DefaultCatalogTTL
	}
	if opts.UsersTTL <= 0 {
		opts.UsersTTL = config.DefaultUsersTTL
	}
	if opts.OrgTTL <= 0 {
		opts.OrgTTL = config.DefaultOrgTTL
	}

	return &Service{
		client:     client,
		mode:       mode,
		store:      store,
		logger:     observability.GetDefaultLogger().Component("portal"),
		database:   opts.Database,
		schema:     opts.Schema,
		adminRoles: opts.AdminRoles,
		catalogTTL: opts.CatalogTTL,
		usersTTL:   opts.UsersTTL,
		orgTTL:     opts.OrgTTL,
	}
}

// Database returns the configured portal database name, shown on the
// admin settings tab.
func (s *Service) Database() string {
	return s.database
}

// table returns a fully qualified table name. Queries never rely on the
// session's current database; the pool hands statements to arbitrary
// connections.
func (s *Service) table(name string) string {
	return fmt.Sprintf("%s.%s.%s", s.database, s.schema, name)
}

// escape doubles single quotes for safe embedding in SQL literals.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// EnsureSchema creates the portal tables if they do not exist and
// upgrades the image_path column on older installs. In connector mode
// it first issues USE DATABASE so a missing portal database fails fast
// with a clear error.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if s.mode == snowflake.ModeConnector {
		if err := s.client.Exec(ctx, fmt.Sprintf("USE DATABASE %s", s.database)); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseNotFound,
				fmt.Sprintf("Portal database '%s' is not accessible", s.database)).
				WithContext("database", s.database).
				WithSuggestions(
					fmt.Sprintf("Create it with: CREATE DATABASE %s", s.database),
					"Run 'snowtools init' to set up the portal objects",
					"Check that your role has USAGE on the database",
				)
		}
	}

	appsDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    app_id VARCHAR(255) PRIMARY KEY,
    app_name VARCHAR(255) NOT NULL,
    app_title VARCHAR(255) NOT NULL,
    description TEXT,
    image_path TEXT,
    url_id VARCHAR(255),
    database_name VARCHAR(255),
    schema_name VARCHAR(255),
    is_active BOOLEAN DEFAULT TRUE,
    created_at TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP(),
    updated_at TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP()
)`, s.table("portal_apps"))

	if err := s.client.Exec(ctx, appsDDL); err != nil {
		return err
	}

	// Pre-TEXT installs stored image_path as VARCHAR; widen it so
	// base64 payloads fit. Fails harmlessly when already TEXT.
	migrate := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN image_path SET DATA TYPE TEXT", s.table("portal_apps"))
	if err := s.client.Exec(ctx, migrate); err != nil {
		s.logger.WithField("error", err.Error()).Debug("image_path migration skipped")
	}

	accessDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    access_id NUMBER IDENTITY(1,1) PRIMARY KEY,
    app_id VARCHAR(255) NOT NULL,
    access_type VARCHAR(20) NOT NULL,
    access_value VARCHAR(255) NOT NULL,
    created_at TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP(),
    FOREIGN KEY (app_id) REFERENCES %s(app_id)
)`, s.table("app_access"), s.table("portal_apps"))

	return s.client.Exec(ctx, accessDDL)
}

// Stats returns the portal-wide counters in a single aggregate query.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	query := fmt.Sprintf(`SELECT
    COUNT(*) as total_apps,
    SUM(CASE WHEN is_active THEN 1 ELSE 0 END) as active_apps,
    (SELECT COUNT(*) FROM %s) as total_permissions
FROM %s`, s.table("app_access"), s.table("portal_apps"))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return Stats{}, err
	}
	row, ok := result.First()
	if !ok {
		return Stats{}, nil
	}
	return Stats{
		TotalApps:        row.Int("total_apps"),
		ActiveApps:       row.Int("active_apps"),
		TotalPermissions: row.Int("total_permissions"),
	}, nil
}

// invalidateCatalog drops every cached read that depends on portal_apps
// or app_access. Called after any write.
func (s *Service) invalidateCatalog() {
	if s.store == nil {
		return
	}
	n := s.store.InvalidatePrefix(cache.Key("portal", "apps"))
	if n > 0 {
		s.logger.WithField("entries", n).Debug("catalog cache invalidated")
	}
}
