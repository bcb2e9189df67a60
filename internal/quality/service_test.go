package quality

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

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(snowflake.NewFromDB(db), nil, Options{})
	return svc, mock
}

func newCachedTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := cache.New(cache.DefaultConfig())
	t.Cleanup(store.Stop)

	svc := NewService(snowflake.NewFromDB(db), store, Options{})
	return svc, mock
}

func dbCountRows(count int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"DB_COUNT"}).AddRow(count)
}

func TestEnsureSupportSchemaExistingDatabase(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE DATABASE_NAME = 'DB_SNOWTOOLS'")).
		WillReturnRows(dbCountRows(1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS DB_SNOWTOOLS.PUBLIC.DATA_DESCRIPTION_HISTORY").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS DB_SNOWTOOLS.PUBLIC.DATA_QUALITY_RESULTS").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.EnsureSupportSchema(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSupportSchemaCreatesDatabase(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE DATABASE_NAME = 'DB_SNOWTOOLS'")).
		WillReturnRows(dbCountRows(0))
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS DB_SNOWTOOLS").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS DB_SNOWTOOLS.PUBLIC").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS DB_SNOWTOOLS.PUBLIC.DATA_DESCRIPTION_HISTORY").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS DB_SNOWTOOLS.PUBLIC.DATA_QUALITY_RESULTS").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.EnsureSupportSchema(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSupportSchemaCreateDatabaseFails(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE DATABASE_NAME = 'DB_SNOWTOOLS'")).
		WillReturnRows(dbCountRows(0))
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS DB_SNOWTOOLS").
		WillReturnError(assert.AnError)

	err := svc.EnsureSupportSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_SNOWTOOLS")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSupportSchemaExistenceCheckErrorTreatedAsAbsent(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE DATABASE_NAME = 'DB_SNOWTOOLS'")).
		WillReturnError(assert.AnError)
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS DB_SNOWTOOLS").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS DB_SNOWTOOLS.PUBLIC").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS DB_SNOWTOOLS.PUBLIC.DATA_DESCRIPTION_HISTORY").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS DB_SNOWTOOLS.PUBLIC.DATA_QUALITY_RESULTS").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.EnsureSupportSchema(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomSupportDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(snowflake.NewFromDB(db), nil, Options{
		Database: "GOVERNANCE",
		Schema:   "AUDIT",
	})

	mock.ExpectQuery(regexp.QuoteMeta("FROM GOVERNANCE.AUDIT.DATA_DESCRIPTION_HISTORY")).
		WillReturnRows(sqlmock.NewRows([]string{"DATABASE_NAME"}))

	_, err = svc.DescriptionHistory(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultModel(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Equal(t, "claude-4-sonnet", svc.DefaultModel())
}
