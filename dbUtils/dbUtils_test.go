package dbutils

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) (dialect.Dialect, *sql.DB) {
	t.Helper()
	d := &dialect.SQLite{}
	db, err := Open(context.Background(), d, dialect.Connection{Database: filepath.Join(t.TempDir(), "utils.db")}, 2)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return d, db
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	d, db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, CreateSchema(ctx, db, d))
	require.NoError(t, CreateSchema(ctx, db, d))

	var tables int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'").Scan(&tables))
	assert.Equal(t, 6, tables)
}

func TestExecAll_StopsAtFirstFailure(t *testing.T) {
	_, db := openSQLite(t)
	err := ExecAll(context.Background(), db, []string{
		"CREATE TABLE a (x INT)",
		"CREATE TABLE a (x INT)",
		"CREATE TABLE b (x INT)",
	})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'b'").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestFetchIDs(t *testing.T) {
	d, db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, CreateSchema(ctx, db, d))
	require.NoError(t, ExecAll(ctx, db, []string{
		"INSERT INTO companies (company_name) VALUES ('a'), ('b'), ('c')",
	}))

	ids, err := FetchIDs(ctx, db, "SELECT company_id FROM companies WHERE company_id > ? ORDER BY company_id", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	ids, err = FetchIDs(ctx, tx, "SELECT company_id FROM companies WHERE company_id > 5")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = FetchIDs(ctx, db, "SELECT company_id FROM missing")
	assert.Error(t, err)
}

func TestMaintainAndSize(t *testing.T) {
	d, db := openSQLite(t)
	require.NoError(t, CreateSchema(context.Background(), db, d))

	MaintainAllDBs(d, []*sql.DB{db})
	assert.Positive(t, DbSize(d, db))
}

func TestOpen_Unreachable(t *testing.T) {
	d := &dialect.SQLite{}
	_, err := Open(context.Background(), d,
		dialect.Connection{Database: filepath.Join(t.TempDir(), "missing-dir", "x.db")}, 1)
	assert.Error(t, err)
}
