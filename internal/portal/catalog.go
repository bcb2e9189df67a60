package portal

import (
	"context"
	"fmt"
	"strings"

	"snowtools/internal/cache"
	"snowtools/internal/snowflake"
)

// AllApps returns every registered app ordered by title, for the admin
// views. Results are cached for the catalog TTL.
func (s *Service) AllApps(ctx context.Context) ([]App, error) {
	key := cache.Key("portal", "apps", "all")
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]App), nil
		}
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY app_title", s.table("portal_apps"))
	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	apps := make([]App, 0, len(result.Rows))
	for _, row := range result.Rows {
		apps = append(apps, appFromRow(row))
	}
	if s.store != nil {
		s.store.SetWithTTL(key, apps, s.catalogTTL)
	}
	return apps, nil
}

// AccessibleApps returns the active apps the user may open, matched by
// username or by any of the user's roles. Ordered by title.
func (s *Service) AccessibleApps(ctx context.Context, user string, roles []string) ([]App, error) {
	key := cache.Key("portal", "apps", "user", strings.ToUpper(user))
	if s.store != nil {
		if v, ok := s.store.Get(key); ok {
			return v.([]App), nil
		}
	}

	quoted := make([]string, 0, len(roles))
	for _, role := range roles {
		quoted = append(quoted, fmt.Sprintf("'%s'", escape(strings.ToUpper(role))))
	}
	if len(quoted) == 0 {
		quoted = append(quoted, "'PUBLIC'")
	}

	query := fmt.Sprintf(`SELECT DISTINCT pa.app_id, pa.app_name, pa.app_title, pa.description, pa.image_path, pa.url_id, pa.database_name, pa.schema_name
FROM %s pa
INNER JOIN %s aa ON pa.app_id = aa.app_id
WHERE pa.is_active = TRUE
AND (
    (aa.access_type = 'USER' AND UPPER(aa.access_value) = UPPER('%s'))
    OR (aa.access_type = 'ROLE' AND UPPER(aa.access_value) IN (%s))
)
ORDER BY pa.app_title`,
		s.table("portal_apps"), s.table("app_access"),
		escape(user), strings.Join(quoted, ", "))

	result, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	apps := make([]App, 0, len(result.Rows))
	for _, row := range result.Rows {
		app := appFromRow(row)
		app.Active = true
		apps = append(apps, app)
	}
	if s.store != nil {
		s.store.SetWithTTL(key, apps, s.catalogTTL)
	}
	return apps, nil
}

// DiscoverApps lists every Streamlit app in the account. SHOW STREAMLITS
// output varies between Snowflake releases: recent ones name the columns,
// older ones return positional names, so fall back to the documented
// column order (0 created_on, 1 name, 2 database_name, 3 schema_name,
// 4 title, 5 comment, 6 owner, 7 query_warehouse, 8 url_id).
func (s *Service) DiscoverApps(ctx context.Context) ([]App, error) {
	result, err := s.client.Query(ctx, "SHOW STREAMLITS IN ACCOUNT")
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, nil
	}

	// The positional fallback leans on gosnowflake labeling unnamed
	// result columns by their zero-based ordinal, so "1" addresses the
	// name column when no proper header came back.
	pick := func(row snowflake.Row, name, position string) string {
		if row.Has(name) {
			return row.Str(name)
		}
		return row.Str(position)
	}

	apps := make([]App, 0, len(result.Rows))
	for _, row := range result.Rows {
		app := App{
			Name:         pick(row, "name", "1"),
			Title:        pick(row, "title", "4"),
			Description:  pick(row, "comment", "5"),
			DatabaseName: pick(row, "database_name", "2"),
			SchemaName:   pick(row, "schema_name", "3"),
			URLID:        pick(row, "url_id", "8"),
		}
		if app.Name == "" {
			continue
		}
		if app.Title == "" {
			app.Title = app.Name
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// MergeCatalog lines up discovered apps with their registration state,
// producing the rows of the admin manage-applications table. Registered
// fields win over discovered ones so admin edits survive rescans; apps
// registered but no longer visible in the account are appended at the
// end so they can still be removed.
func MergeCatalog(discovered, registered []App) []CatalogEntry {
	byName := make(map[string]App, len(registered))
	for _, app := range registered {
		byName[app.Name] = app
	}

	entries := make([]CatalogEntry, 0, len(discovered)+len(registered))
	seen := make(map[string]bool, len(discovered))
	for _, d := range discovered {
		seen[d.Name] = true
		if reg, ok := byName[d.Name]; ok {
			reg.URLID = d.URLID
			reg.DatabaseName = d.DatabaseName
			reg.SchemaName = d.SchemaName
			entries = append(entries, CatalogEntry{App: reg, InPortal: true})
			continue
		}
		d.Active = true
		entries = append(entries, CatalogEntry{App: d})
	}
	for _, reg := range registered {
		if !seen[reg.Name] {
			entries = append(entries, CatalogEntry{App: reg, InPortal: true})
		}
	}
	return entries
}

// DiffCatalog computes the save set from the admin's edits: newly
// checked rows insert, unchecked rows delete, edits to title,
// description or active update. Rows are matched by app name.
func DiffCatalog(before, after []CatalogEntry) CatalogChange {
	prior := make(map[string]CatalogEntry, len(before))
	for _, entry := range before {
		prior[entry.App.Name] = entry
	}

	var change CatalogChange
	for _, entry := range after {
		orig, known := prior[entry.App.Name]
		switch {
		case entry.InPortal && (!known || !orig.InPortal):
			change.Add = append(change.Add, entry.App)
		case !entry.InPortal && known && orig.InPortal:
			change.Remove = append(change.Remove, entry.App.Name)
		case entry.InPortal && known && orig.InPortal:
			if entry.App.Title != orig.App.Title ||
				entry.App.Description != orig.App.Description ||
				entry.App.Active != orig.App.Active {
				change.Update = append(change.Update, entry.App)
			}
		}
	}
	return change
}

// ApplyCatalog executes a change set. Removals delete access rows before
// the app row; inserts register the app under app_id = app_name.
func (s *Service) ApplyCatalog(ctx context.Context, change CatalogChange) error {
	if change.Empty() {
		return nil
	}

	for _, name := range change.Remove {
		id := escape(name)
		if err := s.client.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE app_id = '%s'", s.table("app_access"), id)); err != nil {
			return err
		}
		if err := s.client.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE app_id = '%s'", s.table("portal_apps"), id)); err != nil {
			return err
		}
	}

	for _, app := range change.Add {
		query := fmt.Sprintf(`INSERT INTO %s (app_id, app_name, app_title, description, url_id, database_name, schema_name, is_active)
VALUES ('%s', '%s', '%s', '%s', '%s', '%s', '%s', %t)`,
			s.table("portal_apps"),
			escape(app.Name), escape(app.Name), escape(app.Title), escape(app.Description),
			escape(app.URLID), escape(app.DatabaseName), escape(app.SchemaName), app.Active)
		if err := s.client.Exec(ctx, query); err != nil {
			return err
		}
	}

	for _, app := range change.Update {
		query := fmt.Sprintf(`UPDATE %s
SET app_title = '%s', description = '%s', is_active = %t, updated_at = CURRENT_TIMESTAMP()
WHERE app_id = '%s'`,
			s.table("portal_apps"),
			escape(app.Title), escape(app.Description), app.Active, escape(app.Name))
		if err := s.client.Exec(ctx, query); err != nil {
			return err
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"added":   len(change.Add),
		"removed": len(change.Remove),
		"updated": len(change.Update),
	}).Info("portal catalog saved")
	s.invalidateCatalog()
	return nil
}

// SaveCatalog diffs the admin's edits against the prior state and
// applies the result.
func (s *Service) SaveCatalog(ctx context.Context, before, after []CatalogEntry) (CatalogChange, error) {
	change := DiffCatalog(before, after)
	if change.Empty() {
		return change, nil
	}
	return change, s.ApplyCatalog(ctx, change)
}
