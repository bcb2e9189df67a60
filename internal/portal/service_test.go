package portal

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowtools/internal/cache"
	"snowtools/internal/snowflake"
)

func newTestService(t *testing.T, mode snowflake.Mode) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(snowflake.NewFromDB(db), mode, nil, Options{})
	return svc, mock
}

func cacheForTest(t *testing.T) *cache.Cache {
	t.Helper()
	store := cache.New(cache.DefaultConfig())
	t.Cleanup(store.Stop)
	return store
}

func TestEnsureSchemaConnectorMode(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectExec("USE DATABASE STREAMLITPORTAL").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS STREAMLITPORTAL.PUBLIC.portal_apps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE STREAMLITPORTAL.PUBLIC.portal_apps ALTER COLUMN image_path SET DATA TYPE TEXT").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS STREAMLITPORTAL.PUBLIC.app_access").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.EnsureSchema(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaSessionModeSkipsUseDatabase(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeSession)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS STREAMLITPORTAL.PUBLIC.portal_apps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE STREAMLITPORTAL.PUBLIC.portal_apps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS STREAMLITPORTAL.PUBLIC.app_access").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.EnsureSchema(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaIgnoresMigrationFailure(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeSession)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS STREAMLITPORTAL.PUBLIC.portal_apps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE STREAMLITPORTAL.PUBLIC.portal_apps").
		WillReturnError(assert.AnError)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS STREAMLITPORTAL.PUBLIC.app_access").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.EnsureSchema(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaMissingDatabase(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectExec("USE DATABASE STREAMLITPORTAL").
		WillReturnError(assert.AnError)

	err := svc.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STREAMLITPORTAL")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	rows := sqlmock.NewRows([]string{"TOTAL_APPS", "ACTIVE_APPS", "TOTAL_PERMISSIONS"}).
		AddRow(int64(12), int64(9), int64(31))
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) as total_apps")).WillReturnRows(rows)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalApps)
	assert.Equal(t, int64(9), stats.ActiveApps)
	assert.Equal(t, int64(31), stats.TotalPermissions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomDatabaseAndSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(snowflake.NewFromDB(db), snowflake.ModeSession, nil, Options{
		Database: "APPS_DB",
		Schema:   "PORTAL",
	})

	mock.ExpectQuery("SELECT \\* FROM APPS_DB.PORTAL.portal_apps ORDER BY app_title").
		WillReturnRows(sqlmock.NewRows([]string{"APP_ID"}))

	_, err = svc.AllApps(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
