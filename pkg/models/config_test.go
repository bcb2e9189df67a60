package models

import (
	"testing"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestConfigMarshalUnmarshal(t *testing.T) {
	config := Config{
		Connection: Connection{
			Profile:   "default",
			Warehouse: "COMPUTE_WH",
			Role:      "SYSADMIN",
			Database:  "DB_SNOWTOOLS",
			Schema:    "PUBLIC",
		},
		Server: Server{
			Addr:     "127.0.0.1:8484",
			BasePath: "/tools",
			ReadOnly: false,
		},
		Portal: Portal{
			Database:   "STREAMLITPORTAL",
			Schema:     "PUBLIC",
			AdminRoles: []string{"STREAMLITPORTALADMINS", "ACCOUNTADMIN"},
		},
		Quality: Quality{
			Database: "DB_SNOWTOOLS",
			Schema:   "PUBLIC",
			Model:    "claude-4-sonnet",
		},
		Cache: Cache{
			CatalogTTL: "5m",
			UsersTTL:   "10m",
			OrgTTL:     "1h",
		},
	}

	// Marshal to YAML
	data, err := yaml.Marshal(&config)
	assert.NoError(t, err)
	assert.NotEmpty(t, data)

	// Unmarshal back
	var unmarshaledConfig Config
	err = yaml.Unmarshal(data, &unmarshaledConfig)
	assert.NoError(t, err)

	// Verify all fields
	assert.Equal(t, config.Connection.Profile, unmarshaledConfig.Connection.Profile)
	assert.Equal(t, config.Connection.Warehouse, unmarshaledConfig.Connection.Warehouse)
	assert.Equal(t, config.Server.Addr, unmarshaledConfig.Server.Addr)
	assert.Equal(t, config.Portal.Database, unmarshaledConfig.Portal.Database)
	assert.Equal(t, config.Portal.AdminRoles, unmarshaledConfig.Portal.AdminRoles)
	assert.Equal(t, config.Quality.Model, unmarshaledConfig.Quality.Model)
	assert.Equal(t, config.Cache.OrgTTL, unmarshaledConfig.Cache.OrgTTL)
}

func TestEmptyConfig(t *testing.T) {
	config := Config{}

	// Should marshal without error
	data, err := yaml.Marshal(&config)
	assert.NoError(t, err)

	// Should unmarshal back
	var unmarshaledConfig Config
	err = yaml.Unmarshal(data, &unmarshaledConfig)
	assert.NoError(t, err)

	assert.Empty(t, unmarshaledConfig.Connection.Profile)
	assert.Empty(t, unmarshaledConfig.Portal.AdminRoles)
}

func TestConfigYAMLKeys(t *testing.T) {
	raw := `
connection:
  profile: prod
  warehouse: REPORTING_WH
server:
  addr: 0.0.0.0:9090
  read_only: true
portal:
  database: APPSPORTAL
  admin_roles:
    - ACCOUNTADMIN
quality:
  model: mistral-large2
cache:
  catalog_ttl: 2m
`
	var config Config
	err := yaml.Unmarshal([]byte(raw), &config)
	assert.NoError(t, err)

	assert.Equal(t, "prod", config.Connection.Profile)
	assert.Equal(t, "REPORTING_WH", config.Connection.Warehouse)
	assert.Equal(t, "0.0.0.0:9090", config.Server.Addr)
	assert.True(t, config.Server.ReadOnly)
	assert.Equal(t, "APPSPORTAL", config.Portal.Database)
	assert.Equal(t, []string{"ACCOUNTADMIN"}, config.Portal.AdminRoles)
	assert.Equal(t, "mistral-large2", config.Quality.Model)
	assert.Equal(t, "2m", config.Cache.CatalogTTL)
}

func TestConnectionOverrides(t *testing.T) {
	tests := []struct {
		name     string
		conn     Connection
		expected string
	}{
		{
			name: "profile only",
			conn: Connection{
				Profile: "default",
			},
			expected: "valid",
		},
		{
			name:     "empty profile",
			conn:     Connection{},
			expected: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isValid := tt.conn.Profile != ""
			if tt.expected == "valid" {
				assert.True(t, isValid)
			} else {
				assert.False(t, isValid)
			}
		})
	}
}
