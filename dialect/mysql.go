package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
)

type MySQL struct{}

func (*MySQL) Name() string { return "mysql" }

func (*MySQL) DriverName() string { return "mysql" }

func (*MySQL) DSN(c Connection) string {
	if c.DSN != "" {
		return c.DSN
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.password()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range c.Params {
		cfg.Params[k] = v
	}
	return cfg.FormatDSN()
}

func (*MySQL) Rebind(query string) string { return query }

func (*MySQL) SleepFunc() string { return "SLEEP" }

func (*MySQL) Install(context.Context, *sql.DB) error { return nil }

func (*MySQL) TriggerUp(delay time.Duration) []string {
	return []string{
		"DROP TRIGGER IF EXISTS " + TriggerName,
		fmt.Sprintf(`
		CREATE TRIGGER %s
		AFTER INSERT ON shipment_updates
		FOR EACH ROW
		BEGIN
			UPDATE shipments
			SET current_status = NEW.status_code, last_updated_at = NEW.timestamp
			WHERE shipment_id = NEW.shipment_id;

			DO SLEEP(%s);
		END`, TriggerName, seconds(delay)),
	}
}

func (*MySQL) TriggerDown() []string {
	return []string{"DROP TRIGGER IF EXISTS " + TriggerName}
}

func (*MySQL) Schema() []string {
	return schemaStatements(columnTypes{
		serial:      "INT NOT NULL AUTO_INCREMENT PRIMARY KEY",
		datetime:    "DATETIME",
		inlineIndex: true,
	})
}

func (*MySQL) NoCacheHint() string { return "SQL_NO_CACHE " }

func (*MySQL) Maintenance() []string {
	return []string{"ANALYZE TABLE shipments, shipment_updates, shipment_items"}
}

func (*MySQL) SizeQuery() string {
	return `
		SELECT COALESCE(SUM(data_length + index_length), 0)
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
			AND table_name IN ('shipments', 'shipment_updates', 'shipment_items')
	`
}

func (m *MySQL) BulkInsert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	return insertValues(ctx, tx, m, table, columns, rows)
}

// No RETURNING; LastInsertId is the id of the single row just inserted.
func (*MySQL) InsertID(ctx context.Context, tx *sql.Tx, table string, columns []string, _ string, row []any) (int64, error) {
	query := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	res, err := tx.ExecContext(ctx, query, row...)
	if err != nil {
		return 0, errors.Wrapf(err, "insert into %s", table)
	}
	id, err := res.LastInsertId()
	return id, errors.Wrapf(err, "insert into %s", table)
}
