package snowflake

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowtools/pkg/errors"
	"snowtools/pkg/models"
)

func writeConnectionsFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "connections.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("SNOWFLAKE_HOME", dir)
	return path
}

func TestLoadProfiles(t *testing.T) {
	path := writeConnectionsFile(t, `
[default]
account = "myorg-myaccount"
user = "jdoe"
password = "hunter2"
warehouse = "COMPUTE_WH"
role = "SYSADMIN"

[prod]
account = "myorg-prod"
user = "svc_dashboards"
database = "ANALYTICS"
schema = "PUBLIC"
`)

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "myorg-myaccount", profiles["default"].Account)
	assert.Equal(t, "jdoe", profiles["default"].User)
	assert.Equal(t, "hunter2", profiles["default"].Password)
	assert.Equal(t, "COMPUTE_WH", profiles["default"].Warehouse)

	assert.Equal(t, "svc_dashboards", profiles["prod"].User)
	assert.Equal(t, "ANALYTICS", profiles["prod"].Database)
	assert.Empty(t, profiles["prod"].Password)

	assert.Equal(t, []string{"default", "prod"}, ProfileNames(profiles))
}

func TestLoadProfilesMissingFile(t *testing.T) {
	t.Setenv("SNOWFLAKE_HOME", t.TempDir())

	_, err := LoadProfiles(ConnectionsPath())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetErrorCode(err))
}

func TestLoadProfilesInvalidToml(t *testing.T) {
	path := writeConnectionsFile(t, "[default\naccount=")

	_, err := LoadProfiles(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{
			name: "full profile",
			profile: Profile{
				Account:   "myorg-myaccount",
				User:      "jdoe",
				Password:  "hunter2",
				Warehouse: "COMPUTE_WH",
				Role:      "SYSADMIN",
				Database:  "ANALYTICS",
				Schema:    "PUBLIC",
			},
			want: "jdoe:hunter2@myorg-myaccount/ANALYTICS/PUBLIC?role=SYSADMIN&warehouse=COMPUTE_WH",
		},
		{
			name: "no database or schema",
			profile: Profile{
				Account:   "myorg-myaccount",
				User:      "jdoe",
				Password:  "hunter2",
				Warehouse: "COMPUTE_WH",
			},
			want: "jdoe:hunter2@myorg-myaccount?warehouse=COMPUTE_WH",
		},
		{
			name: "database without schema",
			profile: Profile{
				Account:  "myorg-myaccount",
				User:     "jdoe",
				Password: "hunter2",
				Database: "ANALYTICS",
			},
			want: "jdoe:hunter2@myorg-myaccount/ANALYTICS",
		},
		{
			name: "bare minimum",
			profile: Profile{
				Account:  "acct",
				User:     "u",
				Password: "p",
			},
			want: "u:p@acct",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.profile))
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	profile := Profile{
		Account:   "acct",
		User:      "u",
		Warehouse: "PROFILE_WH",
		Role:      "PROFILE_ROLE",
	}
	applyOverrides(&profile, models.Connection{
		Warehouse: "OVERRIDE_WH",
		Database:  "DB_SNOWTOOLS",
	})

	assert.Equal(t, "OVERRIDE_WH", profile.Warehouse)
	assert.Equal(t, "PROFILE_ROLE", profile.Role)
	assert.Equal(t, "DB_SNOWTOOLS", profile.Database)
}

func TestOpenConnectorProfileNotFound(t *testing.T) {
	writeConnectionsFile(t, `
[default]
account = "acct"
user = "u"
password = "p"
`)

	_, err := OpenConnector(models.Connection{Profile: "staging"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProfileNotFound, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "staging")
}

type staticPasswords map[string]string

func (s staticPasswords) ProfilePassword(profile string) (string, error) {
	if password, ok := s[profile]; ok {
		return password, nil
	}
	return "", errors.New(errors.ErrCodeCredentialMissing, "no password")
}

func TestOpenConnectorMissingPassword(t *testing.T) {
	writeConnectionsFile(t, `
[default]
account = "acct"
user = "u"
`)

	_, err := OpenConnector(models.Connection{Profile: "default"}, staticPasswords{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCredentialMissing, errors.GetErrorCode(err))
}

func TestOpenConnectorIncompleteProfile(t *testing.T) {
	writeConnectionsFile(t, `
[default]
user = "u"
password = "p"
`)

	_, err := OpenConnector(models.Connection{Profile: "default"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}
