package snowflake

import "snowtools/pkg/models"

// Open picks the adapter once at startup: the managed session when the
// runtime provides one, the configured connections.toml profile
// otherwise. The returned Mode tells callers which path was taken;
// a few operations (USE DATABASE on startup, the status page) care.
func Open(cfg *models.Config, passwords PasswordSource) (Client, Mode, error) {
	if InManagedRuntime() {
		client, err := OpenSession()
		return client, ModeSession, err
	}
	client, err := OpenConnector(cfg.Connection, passwords)
	return client, ModeConnector, err
}
