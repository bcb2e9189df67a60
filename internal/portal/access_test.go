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
	"snowtools/pkg/errors"
)

func TestAppAccess(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	created := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"ACCESS_ID", "ACCESS_TYPE", "ACCESS_VALUE", "CREATED_AT"}).
		AddRow(int64(1), "ROLE", "ANALYST", created).
		AddRow(int64(2), "USER", "JDOE", created)
	mock.ExpectQuery("WHERE app_id = 'SALES_APP'").WillReturnRows(rows)

	entries, err := svc.AppAccess(context.Background(), "SALES_APP")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, "ROLE", entries[0].Type)
	assert.Equal(t, "ANALYST", entries[0].Value)
	assert.Equal(t, "SALES_APP", entries[0].AppID)
	assert.Equal(t, created, entries[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllAccess(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	rows := sqlmock.NewRows([]string{"ACCESS_ID", "APP_ID", "APP_TITLE", "IS_ACTIVE", "ACCESS_TYPE", "ACCESS_VALUE", "CREATED_AT"}).
		AddRow(int64(5), "SALES_APP", "Sales Dashboard", true, "ROLE", "PUBLIC", time.Now())
	mock.ExpectQuery("INNER JOIN STREAMLITPORTAL.PUBLIC.portal_apps pa").WillReturnRows(rows)

	entries, err := svc.AllAccess(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Sales Dashboard", entries[0].AppTitle)
	assert.True(t, entries[0].AppActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantAccess(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectQuery("SELECT access_id").
		WillReturnRows(sqlmock.NewRows([]string{"ACCESS_ID"}))
	mock.ExpectExec(regexp.QuoteMeta("VALUES ('SALES_APP', 'USER', 'JDOE')")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.GrantAccess(context.Background(), "SALES_APP", "user", "jdoe")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantAccessDuplicate(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectQuery("SELECT access_id").
		WillReturnRows(sqlmock.NewRows([]string{"ACCESS_ID"}).AddRow(int64(7)))

	err := svc.GrantAccess(context.Background(), "SALES_APP", "ROLE", "ANALYST")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicateEntry, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "already exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantAccessValidation(t *testing.T) {
	svc, _ := newTestService(t, snowflake.ModeConnector)

	tests := []struct {
		name       string
		accessType string
		value      string
	}{
		{"bad type", "GROUP", "ANALYST"},
		{"empty value", "USER", "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.GrantAccess(context.Background(), "SALES_APP", tt.accessType, tt.value)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
		})
	}
}

func TestRevokeAccess(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectExec("DELETE FROM STREAMLITPORTAL.PUBLIC.app_access WHERE access_id = 42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.RevokeAccess(context.Background(), 42)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
