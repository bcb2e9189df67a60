package snowflake

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"
	"snowtools/pkg/errors"
)

// Client runs SQL against a Snowflake warehouse. Both adapters (managed
// session and connections.toml) satisfy it; services never know which
// one they hold.
type Client interface {
	Query(ctx context.Context, query string) (*Result, error)
	Exec(ctx context.Context, query string) error
	Ping(ctx context.Context) error
	Close() error
}

// Mode identifies how the warehouse was reached.
type Mode string

const (
	// ModeSession means the process runs on a Snowflake-managed host and
	// authenticates with the injected session token.
	ModeSession Mode = "session"
	// ModeConnector means a ~/.snowflake/connections.toml profile plus a
	// stored password.
	ModeConnector Mode = "connector"
)

const (
	defaultQueryTimeout = 30 * time.Second

	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 10 * time.Minute
)

// client wraps *sql.DB with per-query timeouts and result normalization.
type client struct {
	db      *sql.DB
	timeout time.Duration
}

// NewFromDB wraps an existing database handle. Production code goes
// through Open; tests inject sqlmock handles here.
func NewFromDB(db *sql.DB) Client {
	return &client{db: db, timeout: defaultQueryTimeout}
}

func (c *client) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.timeout
	if timeout == 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Query runs a statement and collects the full result set. Column names
// are folded to lowercase so callers are insulated from Snowflake's
// uppercase identifier normalization.
func (c *client) Query(ctx context.Context, query string) (*Result, error) {
	qctx, cancel := c.queryContext(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(qctx, query)
	if err != nil {
		return nil, errors.SQLError("Query failed", query, err)
	}
	defer rows.Close()

	return collectResult(query, rows)
}

// Exec runs a statement and discards any result.
func (c *client) Exec(ctx context.Context, query string) error {
	qctx, cancel := c.queryContext(ctx)
	defer cancel()

	if _, err := c.db.ExecContext(qctx, query); err != nil {
		return errors.SQLError("Statement failed", query, err)
	}
	return nil
}

// Ping verifies the warehouse is reachable.
func (c *client) Ping(ctx context.Context) error {
	qctx, cancel := c.queryContext(ctx)
	defer cancel()

	if err := c.db.PingContext(qctx); err != nil {
		return errors.ConnectionError("Warehouse unreachable", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func collectResult(query string, rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read result columns")
	}

	lower := make([]string, len(cols))
	for i, col := range cols {
		lower[i] = strings.ToLower(col)
	}

	result := &Result{Columns: lower}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to scan result row")
		}

		row := make(Row, len(cols))
		for i, col := range lower {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Result iteration failed", query, err)
	}
	return result, nil
}

// normalizeValue unwraps driver byte slices so callers only ever see
// strings, numbers, bools, times, or nil.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// pingWithClassification runs the post-open ping, translating common
// failures into actionable errors.
func pingWithClassification(db *sql.DB, account, user string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if strings.Contains(err.Error(), "authentication") {
			return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
				WithContext("user", user).
				WithSuggestions(
					"Verify your username and password",
					"Check if your account is locked",
					"Ensure MFA is properly configured if required",
				)
		}
		return errors.ConnectionError("Failed to connect to Snowflake", err).
			WithContext("account", account).
			AsRecoverable()
	}
	return nil
}
