package portal

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowtools/internal/snowflake"
)

func TestAllApps(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"APP_ID", "APP_NAME", "APP_TITLE", "DESCRIPTION", "IMAGE_PATH", "URL_ID", "DATABASE_NAME", "SCHEMA_NAME", "IS_ACTIVE", "CREATED_AT", "UPDATED_AT"}).
		AddRow("SALES_APP", "SALES_APP", "Sales Dashboard", "Revenue by region", nil, "abc123", "ANALYTICS", "APPS", true, created, created).
		AddRow("OPS_APP", "OPS_APP", "Ops Console", nil, nil, "def456", "ANALYTICS", "APPS", false, created, created)
	mock.ExpectQuery("SELECT \\* FROM STREAMLITPORTAL.PUBLIC.portal_apps ORDER BY app_title").
		WillReturnRows(rows)

	apps, err := svc.AllApps(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, "SALES_APP", apps[0].ID)
	assert.Equal(t, "Sales Dashboard", apps[0].Title)
	assert.Equal(t, "Revenue by region", apps[0].Description)
	assert.True(t, apps[0].Active)
	assert.Equal(t, created, apps[0].CreatedAt)
	assert.False(t, apps[1].Active)
	assert.Empty(t, apps[1].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllAppsUsesCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(snowflake.NewFromDB(db), snowflake.ModeConnector, cacheForTest(t), Options{})

	mock.ExpectQuery("SELECT \\* FROM STREAMLITPORTAL.PUBLIC.portal_apps").
		WillReturnRows(sqlmock.NewRows([]string{"APP_ID", "APP_NAME", "APP_TITLE"}).
			AddRow("A", "A", "App A"))

	first, err := svc.AllApps(context.Background())
	require.NoError(t, err)

	// Second call served from cache; no further query expected.
	second, err := svc.AllApps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessibleApps(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	rows := sqlmock.NewRows([]string{"APP_ID", "APP_NAME", "APP_TITLE", "DESCRIPTION", "IMAGE_PATH", "URL_ID", "DATABASE_NAME", "SCHEMA_NAME"}).
		AddRow("SALES_APP", "SALES_APP", "Sales Dashboard", "", nil, "abc", "ANALYTICS", "APPS")
	mock.ExpectQuery(regexp.QuoteMeta("(aa.access_type = 'USER' AND UPPER(aa.access_value) = UPPER('JDOE'))")).
		WillReturnRows(rows)

	apps, err := svc.AccessibleApps(context.Background(), "JDOE", []string{"PUBLIC", "ANALYST"})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Sales Dashboard", apps[0].Title)
	assert.True(t, apps[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessibleAppsUpperCasesRoles(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectQuery(regexp.QuoteMeta("IN ('PUBLIC', 'ANALYST')")).
		WillReturnRows(sqlmock.NewRows([]string{"APP_ID"}))

	_, err := svc.AccessibleApps(context.Background(), "jdoe", []string{"public", "analyst"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscoverAppsNamedColumns(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	rows := sqlmock.NewRows([]string{"CREATED_ON", "NAME", "DATABASE_NAME", "SCHEMA_NAME", "TITLE", "COMMENT", "OWNER", "QUERY_WAREHOUSE", "URL_ID"}).
		AddRow(time.Now(), "SALES_APP", "ANALYTICS", "APPS", "Sales Dashboard", "Revenue by region", "SYSADMIN", "COMPUTE_WH", "abc123").
		AddRow(time.Now(), "BARE_APP", "ANALYTICS", "APPS", nil, nil, "SYSADMIN", "COMPUTE_WH", "def456")
	mock.ExpectQuery("SHOW STREAMLITS IN ACCOUNT").WillReturnRows(rows)

	apps, err := svc.DiscoverApps(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, "SALES_APP", apps[0].Name)
	assert.Equal(t, "Sales Dashboard", apps[0].Title)
	assert.Equal(t, "Revenue by region", apps[0].Description)
	assert.Equal(t, "ANALYTICS", apps[0].DatabaseName)
	assert.Equal(t, "APPS", apps[0].SchemaName)
	assert.Equal(t, "abc123", apps[0].URLID)

	// Missing title falls back to the app name.
	assert.Equal(t, "BARE_APP", apps[1].Title)
	assert.Empty(t, apps[1].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscoverAppsPositionalColumns(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	rows := sqlmock.NewRows([]string{"0", "1", "2", "3", "4", "5", "6", "7", "8"}).
		AddRow(time.Now(), "SALES_APP", "ANALYTICS", "APPS", "Sales Dashboard", "Revenue by region", "SYSADMIN", "COMPUTE_WH", "abc123")
	mock.ExpectQuery("SHOW STREAMLITS IN ACCOUNT").WillReturnRows(rows)

	apps, err := svc.DiscoverApps(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "SALES_APP", apps[0].Name)
	assert.Equal(t, "Sales Dashboard", apps[0].Title)
	assert.Equal(t, "Revenue by region", apps[0].Description)
	assert.Equal(t, "ANALYTICS", apps[0].DatabaseName)
	assert.Equal(t, "APPS", apps[0].SchemaName)
	assert.Equal(t, "abc123", apps[0].URLID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscoverAppsEmptyAccount(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectQuery("SHOW STREAMLITS IN ACCOUNT").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	apps, err := svc.DiscoverApps(context.Background())
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestMergeCatalog(t *testing.T) {
	discovered := []App{
		{Name: "SALES_APP", Title: "Sales Dashboard", DatabaseName: "ANALYTICS", SchemaName: "APPS", URLID: "abc"},
		{Name: "NEW_APP", Title: "New App", DatabaseName: "ANALYTICS", SchemaName: "APPS", URLID: "def"},
	}
	registered := []App{
		{ID: "SALES_APP", Name: "SALES_APP", Title: "Sales (curated)", Description: "Curated copy", Active: true},
		{ID: "GONE_APP", Name: "GONE_APP", Title: "Removed From Account", Active: false},
	}

	entries := MergeCatalog(discovered, registered)
	require.Len(t, entries, 3)

	// Registered fields win; discovered coordinates refresh.
	assert.True(t, entries[0].InPortal)
	assert.Equal(t, "Sales (curated)", entries[0].App.Title)
	assert.Equal(t, "abc", entries[0].App.URLID)
	assert.Equal(t, "ANALYTICS", entries[0].App.DatabaseName)

	// Unregistered discoveries default to active, not in portal.
	assert.False(t, entries[1].InPortal)
	assert.True(t, entries[1].App.Active)

	// Registered but no longer discovered still listed for removal.
	assert.True(t, entries[2].InPortal)
	assert.Equal(t, "GONE_APP", entries[2].App.Name)
}

func TestDiffCatalog(t *testing.T) {
	before := []CatalogEntry{
		{App: App{Name: "KEEP", Title: "Keep", Active: true}, InPortal: true},
		{App: App{Name: "DROP", Title: "Drop", Active: true}, InPortal: true},
		{App: App{Name: "EDIT", Title: "Old Title", Active: true}, InPortal: true},
		{App: App{Name: "OUTSIDE", Title: "Outside", Active: true}, InPortal: false},
	}
	after := []CatalogEntry{
		{App: App{Name: "KEEP", Title: "Keep", Active: true}, InPortal: true},
		{App: App{Name: "DROP", Title: "Drop", Active: true}, InPortal: false},
		{App: App{Name: "EDIT", Title: "New Title", Active: true}, InPortal: true},
		{App: App{Name: "OUTSIDE", Title: "Outside", Active: true}, InPortal: true},
	}

	change := DiffCatalog(before, after)
	require.Len(t, change.Add, 1)
	assert.Equal(t, "OUTSIDE", change.Add[0].Name)
	require.Len(t, change.Remove, 1)
	assert.Equal(t, "DROP", change.Remove[0])
	require.Len(t, change.Update, 1)
	assert.Equal(t, "New Title", change.Update[0].Title)
}

func TestDiffCatalogNoChanges(t *testing.T) {
	entries := []CatalogEntry{
		{App: App{Name: "KEEP", Title: "Keep", Active: true}, InPortal: true},
	}
	change := DiffCatalog(entries, entries)
	assert.True(t, change.Empty())
}

func TestApplyCatalog(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	// Access rows must go before the app row.
	mock.ExpectExec("DELETE FROM STREAMLITPORTAL.PUBLIC.app_access WHERE app_id = 'DROP'").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM STREAMLITPORTAL.PUBLIC.portal_apps WHERE app_id = 'DROP'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO STREAMLITPORTAL.PUBLIC.portal_apps (app_id, app_name, app_title, description, url_id, database_name, schema_name, is_active)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET app_title = 'It''s New', description = '', is_active = false, updated_at = CURRENT_TIMESTAMP()")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	change := CatalogChange{
		Add:    []App{{Name: "NEW_APP", Title: "New App", Active: true}},
		Remove: []string{"DROP"},
		Update: []App{{Name: "EDIT", Title: "It's New", Active: false}},
	}
	err := svc.ApplyCatalog(context.Background(), change)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCatalogNoChanges(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	entries := []CatalogEntry{{App: App{Name: "KEEP"}, InPortal: true}}
	change, err := svc.SaveCatalog(context.Background(), entries, entries)
	require.NoError(t, err)
	assert.True(t, change.Empty())
	assert.NoError(t, mock.ExpectationsWereMet())
}
