package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// Postgres works with either lib/pq (driver "postgres") or pgx (driver "pgx").
type Postgres struct {
	driver string
}

func (*Postgres) Name() string { return "postgres" }

func (p *Postgres) DriverName() string {
	if p.driver == "" {
		return "postgres"
	}
	return p.driver
}

// quotes a key/value connection string value
func pgQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (*Postgres) DSN(c Connection) string {
	if c.DSN != "" {
		return c.DSN
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}

	params := map[string]string{
		"host":    host,
		"port":    strconv.Itoa(port),
		"user":    c.User,
		"dbname":  c.Database,
		"sslmode": "disable",
	}
	if pw := c.password(); pw != "" {
		params["password"] = pw
	}
	for k, v := range c.Params {
		params[k] = v
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if params[k] != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+pgQuote(params[k]))
	}
	return strings.Join(parts, " ")
}

// Rewrites '?' into $1, $2, ... skipping quoted literals.
func (*Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteString("$" + strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (*Postgres) SleepFunc() string { return "load_sleep" }

func (*Postgres) Install(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE OR REPLACE FUNCTION load_sleep(seconds double precision) RETURNS integer AS $$
		BEGIN
			PERFORM pg_sleep(seconds);
			RETURN 0;
		END;
		$$ LANGUAGE plpgsql
	`)
	return errors.Wrap(err, "install load_sleep")
}

func (*Postgres) TriggerUp(delay time.Duration) []string {
	return []string{
		fmt.Sprintf(`
		CREATE OR REPLACE FUNCTION %s_fn() RETURNS trigger AS $$
		BEGIN
			UPDATE shipments
			SET current_status = NEW.status_code, last_updated_at = NEW.timestamp
			WHERE shipment_id = NEW.shipment_id;

			PERFORM pg_sleep(%s);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`, TriggerName, seconds(delay)),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON shipment_updates", TriggerName),
		fmt.Sprintf(`
		CREATE TRIGGER %s
		AFTER INSERT ON shipment_updates
		FOR EACH ROW EXECUTE FUNCTION %s_fn()`, TriggerName, TriggerName),
	}
}

func (*Postgres) TriggerDown() []string {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON shipment_updates", TriggerName),
		fmt.Sprintf("DROP FUNCTION IF EXISTS %s_fn()", TriggerName),
	}
}

func (*Postgres) Schema() []string {
	return schemaStatements(columnTypes{
		serial:   "SERIAL PRIMARY KEY",
		datetime: "TIMESTAMP",
	})
}

func (*Postgres) NoCacheHint() string { return "" }

func (*Postgres) Maintenance() []string {
	return []string{"VACUUM ANALYZE", "CHECKPOINT"}
}

func (*Postgres) SizeQuery() string {
	return `
		SELECT pg_total_relation_size('shipments') +
			pg_total_relation_size('shipment_updates') +
			pg_total_relation_size('shipment_items')
	`
}

// COPY through lib/pq; pgx connections fall back to multi-row inserts.
func (p *Postgres) BulkInsert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if p.DriverName() != "postgres" {
		return insertValues(ctx, tx, p, table, columns, rows)
	}
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return errors.Wrapf(err, "copy into %s", table)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return errors.Wrapf(err, "copy into %s", table)
		}
	}
	// flush
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.Wrapf(err, "copy into %s", table)
	}
	return errors.Wrap(stmt.Close(), "close copy")
}

func (p *Postgres) InsertID(ctx context.Context, tx *sql.Tx, table string, columns []string, idColumn string, row []any) (int64, error) {
	return insertReturning(ctx, tx, p, table, columns, idColumn, row)
}
