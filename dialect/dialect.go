// Package dialect hides the differences between the SQL databases the
// benchmarks run against: driver and DSN, placeholder style, the sleep
// function used for load injection, trigger DDL, schema DDL and maintenance.
package dialect

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Name of the trigger that propagates shipment_updates inserts to shipments.
const TriggerName = "after_shipment_update"

// Environment variable consulted when the config file leaves the password empty.
const PasswordEnv = "LOGISFLOW_DB_PASSWORD"

// Connection parameters, as read from the config file
type Connection struct {
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Database string            `yaml:"database"`
	DSN      string            `yaml:"dsn"`    // used verbatim when set
	Params   map[string]string `yaml:"params"` // extra driver parameters
}

func (c Connection) password() string {
	if c.Password != "" {
		return c.Password
	}
	return os.Getenv(PasswordEnv)
}

type Dialect interface {
	// Short name (mysql|postgres|sqlite)
	Name() string
	// Name of the database/sql driver
	DriverName() string
	// Data source name for the connection
	DSN(c Connection) string
	// Rewrites '?' placeholders into the dialect's style
	Rebind(query string) string
	// SQL function f(seconds) returning 0 after sleeping; used for load injection
	SleepFunc() string
	// Installs any helper objects the other statements depend on
	Install(ctx context.Context, db *sql.DB) error
	// Statements installing the propagation trigger with the given delay
	TriggerUp(delay time.Duration) []string
	// Statements removing the propagation trigger
	TriggerDown() []string
	// Statements creating the logistics tables if missing
	Schema() []string
	// Select modifier bypassing the query cache, if any
	NoCacheHint() string
	// Statements refreshing statistics and flushing dirty pages
	Maintenance() []string
	// Query returning the size in bytes of the logistics tables
	SizeQuery() string
	// Inserts rows into table inside tx
	BulkInsert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error
	// Inserts one row into table inside tx and returns its generated idColumn
	InsertID(ctx context.Context, tx *sql.Tx, table string, columns []string, idColumn string, row []any) (int64, error)
}

// Returns the dialect for name. driver optionally selects an alternative
// driver (only "pgx" for postgres).
func New(name string, driver string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql", "":
		return &MySQL{}, nil
	case "postgres", "postgresql", "pg":
		switch driver {
		case "", "pq", "postgres":
			return &Postgres{driver: "postgres"}, nil
		case "pgx":
			return &Postgres{driver: "pgx"}, nil
		default:
			return nil, errors.Newf("unknown postgres driver %q", driver)
		}
	case "sqlite", "sqlite3":
		return &SQLite{}, nil
	default:
		return nil, errors.Newf("unknown dialect %q", name)
	}
}

// Formats a duration as a SQL decimal literal in seconds. Always carries a
// fractional part so SQLite types it REAL, never INTEGER.
func seconds(d time.Duration) string {
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Inserts one row and returns the generated value of idColumn. Used where the
// caller must know exactly which id its row got.
func insertReturning(ctx context.Context, tx *sql.Tx, d Dialect, table string, columns []string, idColumn string, row []any) (int64, error) {
	query := d.Rebind("INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ") RETURNING " + idColumn)

	var id int64
	if err := tx.QueryRowContext(ctx, query, row...).Scan(&id); err != nil {
		return 0, errors.Wrapf(err, "insert into %s", table)
	}
	return id, nil
}

// Multi-row INSERT in chunks; shared by every dialect without a faster path.
func insertValues(ctx context.Context, tx *sql.Tx, d Dialect, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	// stay well below the placeholder limits (65535 in MySQL and PostgreSQL)
	chunk := 500
	if len(columns)*chunk > 30000 {
		chunk = 30000 / len(columns)
	}

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	prefix := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES "

	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		tuples := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(columns))
		for _, row := range rows[start:end] {
			if len(row) != len(columns) {
				return errors.Newf("row has %d values, table %s expects %d", len(row), table, len(columns))
			}
			tuples = append(tuples, tuple)
			args = append(args, row...)
		}

		query := d.Rebind(prefix + strings.Join(tuples, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "insert into %s", table)
		}
	}

	return nil
}
