package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-sqlite3"
)

// SQLiteDriver is a go-sqlite3 driver with load_sleep(seconds) registered
// on every connection, so the load-injection SQL runs unchanged.
const SQLiteDriver = "sqlite3_logisflow"

func init() {
	sql.Register(SQLiteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("load_sleep", loadSleep, false)
		},
	})
}

// seconds arrives as INTEGER or REAL depending on how the caller wrote it
func loadSleep(seconds any) (int64, error) {
	var s float64
	switch v := seconds.(type) {
	case int64:
		s = float64(v)
	case float64:
		s = v
	case nil:
	default:
		return 0, errors.Newf("load_sleep: seconds must be numeric, got %T", seconds)
	}
	if s > 0 {
		time.Sleep(time.Duration(s * float64(time.Second)))
	}
	return 0, nil
}

type SQLite struct{}

func (*SQLite) Name() string { return "sqlite" }

func (*SQLite) DriverName() string { return SQLiteDriver }

// Database is the file path. Every handle opened on the same file shares the
// data; WAL and a busy timeout let the async worker write next to the
// foreground connection.
func (*SQLite) DSN(c Connection) string {
	if c.DSN != "" {
		return c.DSN
	}

	params := url.Values{}
	params.Set("_busy_timeout", "10000")
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")
	params.Set("_foreign_keys", "on")
	for k, v := range c.Params {
		params.Set(k, v)
	}
	return "file:" + c.Database + "?" + params.Encode()
}

func (*SQLite) Rebind(query string) string { return query }

func (*SQLite) SleepFunc() string { return "load_sleep" }

func (*SQLite) Install(context.Context, *sql.DB) error { return nil }

func (*SQLite) TriggerUp(delay time.Duration) []string {
	return []string{
		"DROP TRIGGER IF EXISTS " + TriggerName,
		fmt.Sprintf(`
		CREATE TRIGGER %s
		AFTER INSERT ON shipment_updates
		FOR EACH ROW
		BEGIN
			UPDATE shipments
			SET current_status = NEW.status_code, last_updated_at = NEW.timestamp
			WHERE shipment_id = NEW.shipment_id AND load_sleep(%s) = 0;
		END`, TriggerName, seconds(delay)),
	}
}

func (*SQLite) TriggerDown() []string {
	return []string{"DROP TRIGGER IF EXISTS " + TriggerName}
}

func (*SQLite) Schema() []string {
	return schemaStatements(columnTypes{
		serial:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		datetime: "DATETIME",
	})
}

func (*SQLite) NoCacheHint() string { return "" }

func (*SQLite) Maintenance() []string {
	return []string{"ANALYZE", "PRAGMA wal_checkpoint(TRUNCATE)"}
}

func (*SQLite) SizeQuery() string {
	return "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
}

func (s *SQLite) BulkInsert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	return insertValues(ctx, tx, s, table, columns, rows)
}

func (s *SQLite) InsertID(ctx context.Context, tx *sql.Tx, table string, columns []string, idColumn string, row []any) (int64, error) {
	return insertReturning(ctx, tx, s, table, columns, idColumn, row)
}
