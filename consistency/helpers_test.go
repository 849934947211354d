package consistency

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/stretchr/testify/require"
)

const initialStatus = "created"

type testDB struct {
	dialect  dialect.Dialect
	db       *sql.DB
	workerDB *sql.DB
}

// SQLite file with the logistics schema and n shipments in initialStatus
func newTestDB(t *testing.T, shipments int) *testDB {
	t.Helper()
	ctx := context.Background()
	d := &dialect.SQLite{}
	conn := dialect.Connection{Database: filepath.Join(t.TempDir(), "consistency.db")}

	db, err := dbutils.Open(ctx, d, conn, 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, dbutils.CreateSchema(ctx, db, d))

	workerDB, err := dbutils.Open(ctx, d, conn, 1)
	require.NoError(t, err)
	t.Cleanup(func() { workerDB.Close() })

	_, err = db.Exec("INSERT INTO companies (company_name) VALUES ('acme')")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO warehouses (warehouse_name, address) VALUES ('north', 'n'), ('south', 's')")
	require.NoError(t, err)
	for i := 0; i < shipments; i++ {
		_, err = db.Exec(`
			INSERT INTO shipments (company_id, origin_warehouse_id, destination_warehouse_id, created_at, current_status)
			VALUES (1, 1, 2, CURRENT_TIMESTAMP, ?)`, initialStatus)
		require.NoError(t, err)
	}

	return &testDB{dialect: d, db: db, workerDB: workerDB}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Iterations = 20
	cfg.PoolSize = 10
	cfg.Statuses = []string{"picked_up", "at_terminal", "out_for_delivery", "delivered", "confirmed"}
	cfg.Delay = 0
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Seed = 7
	return cfg
}

func newTestHarness(t *testing.T, tdb *testDB, cfg Config) *Harness {
	t.Helper()
	h, err := New(context.Background(), tdb.dialect, tdb.db, tdb.workerDB, cfg)
	require.NoError(t, err)
	h.SetOutput(io.Discard)
	t.Cleanup(h.Close)
	return h
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}
