package models

type Config struct {
	Connection Connection `yaml:"connection"`
	Server     Server     `yaml:"server"`
	Portal     Portal     `yaml:"portal"`
	Quality    Quality    `yaml:"quality"`
	Cache      Cache      `yaml:"cache"`
}

// Connection selects the warehouse profile used when the server runs
// outside a managed Snowflake runtime. Profile names a section in
// ~/.snowflake/connections.toml; the remaining fields override what the
// profile provides.
type Connection struct {
	Profile   string `yaml:"profile"`
	Warehouse string `yaml:"warehouse"`
	Role      string `yaml:"role"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
}

type Server struct {
	Addr     string `yaml:"addr"`      // listen address, e.g. 127.0.0.1:8484
	BasePath string `yaml:"base_path"` // optional URL prefix when proxied
	ReadOnly bool   `yaml:"read_only"` // disable mutating endpoints
}

// Portal configures where the apps catalog lives and who may manage it.
type Portal struct {
	Database   string   `yaml:"database"`
	Schema     string   `yaml:"schema"`
	AdminRoles []string `yaml:"admin_roles"`
}

// Quality configures the support database for description history and
// quality snapshots, plus the default Cortex model for generated text.
type Quality struct {
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	Model    string `yaml:"model"`
}

// Cache holds read-cache lifetimes as duration strings ("5m", "1h").
// Empty fields fall back to built-in defaults at load time.
type Cache struct {
	CatalogTTL string `yaml:"catalog_ttl"`
	UsersTTL   string `yaml:"users_ttl"`
	OrgTTL     string `yaml:"org_ttl"`
}
