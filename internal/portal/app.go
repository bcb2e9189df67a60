package portal

import (
	"time"

	"snowtools/internal/snowflake"
)

// App is one row of portal_apps. For apps coming straight out of
// SHOW STREAMLITS (not yet registered) ID is empty.
type App struct {
	ID           string
	Name         string
	Title        string
	Description  string
	ImagePath    string
	URLID        string
	DatabaseName string
	SchemaName   string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccessEntry is one row of app_access. AppTitle is only populated by
// the overview query that joins back to portal_apps.
type AccessEntry struct {
	ID        int64
	AppID     string
	AppTitle  string
	AppActive bool
	Type      string
	Value     string
	CreatedAt time.Time
}

// Stats holds the portal-wide counters shown on the settings tab.
type Stats struct {
	TotalApps        int64
	ActiveApps       int64
	TotalPermissions int64
}

// CatalogEntry is one row of the admin "Manage Applications" table: a
// discovered Streamlit app merged with its registration state.
type CatalogEntry struct {
	App      App
	InPortal bool
}

// CatalogChange is the save set computed from the admin's edits.
type CatalogChange struct {
	Add    []App
	Remove []string
	Update []App
}

// Empty reports whether the change set would be a no-op.
func (c CatalogChange) Empty() bool {
	return len(c.Add) == 0 && len(c.Remove) == 0 && len(c.Update) == 0
}

func appFromRow(row snowflake.Row) App {
	return App{
		ID:           row.Str("app_id"),
		Name:         row.Str("app_name"),
		Title:        row.Str("app_title"),
		Description:  row.Str("description"),
		ImagePath:    row.Str("image_path"),
		URLID:        row.Str("url_id"),
		DatabaseName: row.Str("database_name"),
		SchemaName:   row.Str("schema_name"),
		Active:       row.Bool("is_active"),
		CreatedAt:    row.Time("created_at"),
		UpdatedAt:    row.Time("updated_at"),
	}
}

func accessFromRow(row snowflake.Row) AccessEntry {
	return AccessEntry{
		ID:        row.Int("access_id"),
		AppID:     row.Str("app_id"),
		AppTitle:  row.Str("app_title"),
		AppActive: row.Bool("is_active"),
		Type:      row.Str("access_type"),
		Value:     row.Str("access_value"),
		CreatedAt: row.Time("created_at"),
	}
}
