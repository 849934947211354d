package dbutils

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/util"
)

// Opens a connection pool for the dialect and checks that the database answers.
// maxConns bounds both open and idle connections, for the same reason the
// worker pool keeps them equal: otherwise idle connections get closed and
// reopened constantly under load.
func Open(ctx context.Context, d dialect.Dialect, c dialect.Connection, maxConns int) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), d.DSN(c))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", d.Name())
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect to %s", d.Name())
	}
	if err := d.Install(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Executes the statements in order, stopping at the first failure
func ExecAll(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "exec %.60q", stmt)
		}
	}
	return nil
}

// Creates the logistics tables if they do not exist yet
func CreateSchema(ctx context.Context, db *sql.DB, d dialect.Dialect) error {
	return errors.Wrap(ExecAll(ctx, db, d.Schema()), "create schema")
}

// Satisfied by *sql.DB and *sql.Tx
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Returns the int64 values of the first column of query
func FetchIDs(ctx context.Context, db Querier, query string, args ...any) ([]int64, error) {
	rs, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "fetch ids")
	}
	defer rs.Close()

	ids := []int64{}
	for rs.Next() {
		var id int64
		if err := rs.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rs.Err(), "fetch ids")
}

// Refreshes statistics and flushes dirty pages on all databases
func MaintainAllDBs(d dialect.Dialect, dbs []*sql.DB) {
	var wg sync.WaitGroup
	for _, db := range dbs {
		wg.Add(1)
		go func(db *sql.DB) {
			defer wg.Done()
			for _, stmt := range d.Maintenance() {
				util.Try(db.Exec(stmt))
			}
		}(db)
	}
	wg.Wait()
}

// Returns the size of the logistics tables, in bytes
func DbSize(d dialect.Dialect, db *sql.DB) int64 {
	var s int64
	util.CheckErr(db.QueryRow(d.SizeQuery()).Scan(&s))
	return s
}
