// Package consistency measures how three mechanisms propagate a new
// shipment_updates row into the denormalized shipments.current_status column:
// a synchronous transaction, a database trigger and an asynchronous queue.
//
// The workload (random targets, trial count, immediate re-read) is the same
// for all three; only the propagation mechanism changes.
package consistency

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

type statements struct {
	insertUpdate string
	updateStatus string
	selectStatus string
}

func newStatements(d dialect.Dialect) statements {
	return statements{
		insertUpdate: d.Rebind(`
			INSERT INTO shipment_updates (shipment_id, status_code, notes, timestamp)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)`),
		// the sleep stands in for lock waits or expensive work in the update path
		updateStatus: d.Rebind(fmt.Sprintf(`
			UPDATE shipments
			SET current_status = ?, last_updated_at = CURRENT_TIMESTAMP
			WHERE shipment_id = ? AND %s(?) = 0`, d.SleepFunc())),
		selectStatus: d.Rebind("SELECT current_status FROM shipments WHERE shipment_id = ?"),
	}
}

type Harness struct {
	cfg      Config
	dialect  dialect.Dialect
	db       *sql.DB // trial loop
	workerDB *sql.DB // async worker
	stmts    statements
	picker   *Picker
	queue    *Queue
	runID    string
	out      io.Writer
}

// Fetches the shipment pool from db and starts the async worker on workerDB.
// db and workerDB should be different pools so the worker never competes
// with the trial loop for a connection.
func New(ctx context.Context, d dialect.Dialect, db *sql.DB, workerDB *sql.DB, cfg Config) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ids, err := dbutils.FetchIDs(ctx, db,
		d.Rebind("SELECT shipment_id FROM shipments ORDER BY shipment_id LIMIT ?"), cfg.PoolSize)
	if err != nil {
		return nil, errors.Wrap(err, "fetch shipment pool")
	}
	picker, err := NewPicker(ids, cfg.Statuses, cfg.Seed)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		cfg:      cfg,
		dialect:  d,
		db:       db,
		workerDB: workerDB,
		stmts:    newStatements(d),
		picker:   picker,
		runID:    uuid.New().String(),
		out:      os.Stdout,
	}
	h.queue = NewQueue(ctx, cfg.QueueSize, cfg.PollInterval, h.applyMutation)

	zlog.Info().Str("run", h.runID).Str("dialect", d.Name()).Int("pool", len(ids)).
		Dur("delay", cfg.Delay).Msg("Harness ready")

	return h, nil
}

// Redirects the console report
func (h *Harness) SetOutput(w io.Writer) {
	h.out = w
}

func (h *Harness) RunID() string {
	return h.runID
}

// Selects a random shipment from the pool and a random status
func (h *Harness) PickTarget() Target {
	return h.picker.Pick()
}

// Re-reads the shipment status right away and compares it with expected.
func (h *Harness) CheckConsistency(ctx context.Context, shipmentID int64, expected string) (bool, error) {
	var actual sql.NullString
	err := h.db.QueryRowContext(ctx, h.stmts.selectStatus, shipmentID).Scan(&actual)
	if err != nil {
		return false, errors.Wrapf(err, "read status of shipment %d", shipmentID)
	}
	return actual.Valid && actual.String == expected, nil
}

// Mutations enqueued by the async strategy and not applied yet
func (h *Harness) Pending() int64 {
	return h.queue.Pending()
}

// Waits until the async worker has applied everything enqueued so far
func (h *Harness) Drain() {
	h.queue.Drain()
}

// Drains the queue and stops the async worker. The connections belong to the
// caller and stay open.
func (h *Harness) Close() {
	h.queue.Drain()
	h.queue.Stop()
	applied, failed := h.queue.Stats()
	zlog.Info().Str("run", h.runID).Int64("applied", applied).Int64("failed", failed).Msg("Async worker stopped")
}

type run struct {
	key      string
	name     string
	strategy Strategy
	setup    Hook
	teardown Hook
}

// Runs every enabled strategy in order, then waits for the async backlog.
func (h *Harness) Run(ctx context.Context) ([]*Result, error) {
	runs := []run{
		{StrategySync, "Strategy A: sync transaction", h.SyncTransaction, nil, nil},
		{StrategyTrigger, "Strategy B: db trigger", h.DBTrigger, h.SetupTrigger, h.TeardownTrigger},
		{StrategyAsync, "Strategy C: async queue", h.AsyncQueue, nil, nil},
	}

	results := []*Result{}
	for _, r := range runs {
		if !h.cfg.enabled(r.key) {
			continue
		}
		result, err := h.RunBenchmark(ctx, r.name, r.strategy, r.setup, r.teardown)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	fmt.Fprintln(h.out, "\nWaiting for the async backlog to drain...")
	h.queue.Drain()
	fmt.Fprintln(h.out, "All tests complete.")

	return results, nil
}
