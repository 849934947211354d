package consistency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	zlog "github.com/rs/zerolog/log"
)

// Outcome of one strategy call: what was written and how long the caller waited
type Trial struct {
	Target
	Latency time.Duration
}

// A propagation strategy performs one write and reports it
type Strategy func(ctx context.Context) (Trial, error)

// Installs or removes something a strategy depends on
type Hook func(ctx context.Context) error

func (h *Harness) note(kind string) string {
	return kind + " Update " + h.runID
}

func (h *Harness) delaySeconds() float64 {
	return h.cfg.Delay.Seconds()
}

// Log insert and status update in one transaction. A failure is rolled back
// and logged; the trial still counts with the time spent.
func (h *Harness) SyncTransaction(ctx context.Context) (Trial, error) {
	target := h.PickTarget()
	start := time.Now()

	if err := h.syncWrite(ctx, target); err != nil {
		zlog.Error().Err(err).Str("strategy", StrategySync).Int64("shipment", target.ShipmentID).
			Msg("Transaction rolled back")
	}

	return Trial{Target: target, Latency: time.Since(start)}, nil
}

func (h *Harness) syncWrite(ctx context.Context, t Target) (err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			err = errors.CombineErrors(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, h.stmts.insertUpdate, t.ShipmentID, t.Status, h.note("Sync")); err != nil {
		return errors.Wrap(err, "insert update")
	}
	if _, err = tx.ExecContext(ctx, h.stmts.updateStatus, t.Status, t.ShipmentID, h.delaySeconds()); err != nil {
		return errors.Wrap(err, "update status")
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Installs the trigger that copies each new update into shipments, with the
// configured delay inside the trigger body
func (h *Harness) SetupTrigger(ctx context.Context) error {
	if err := dbutils.ExecAll(ctx, h.db, h.dialect.TriggerUp(h.cfg.Delay)); err != nil {
		return errors.Wrap(err, "install trigger")
	}
	zlog.Info().Str("strategy", StrategyTrigger).Msg("Trigger installed")
	return nil
}

func (h *Harness) TeardownTrigger(ctx context.Context) error {
	if err := dbutils.ExecAll(ctx, h.db, h.dialect.TriggerDown()); err != nil {
		return errors.Wrap(err, "remove trigger")
	}
	zlog.Info().Str("strategy", StrategyTrigger).Msg("Trigger removed")
	return nil
}

// Only the log insert; the trigger does the rest
func (h *Harness) DBTrigger(ctx context.Context) (Trial, error) {
	target := h.PickTarget()
	start := time.Now()

	_, err := h.db.ExecContext(ctx, h.stmts.insertUpdate, target.ShipmentID, target.Status, h.note("Trigger"))
	if err != nil {
		return Trial{}, errors.Wrap(err, "insert update")
	}

	return Trial{Target: target, Latency: time.Since(start)}, nil
}

// Log insert, then hand the status update to the background worker and
// return without waiting for it
func (h *Harness) AsyncQueue(ctx context.Context) (Trial, error) {
	target := h.PickTarget()
	start := time.Now()

	_, err := h.db.ExecContext(ctx, h.stmts.insertUpdate, target.ShipmentID, target.Status, h.note("Async"))
	if err != nil {
		return Trial{}, errors.Wrap(err, "insert update")
	}
	if err := h.queue.Enqueue(target); err != nil {
		return Trial{}, err
	}

	return Trial{Target: target, Latency: time.Since(start)}, nil
}

// Worker side of AsyncQueue: one transaction per mutation
func (h *Harness) applyMutation(ctx context.Context, t Target) (err error) {
	tx, err := h.workerDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			err = errors.CombineErrors(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, h.stmts.updateStatus, t.Status, t.ShipmentID, h.delaySeconds()); err != nil {
		return errors.Wrap(err, "update status")
	}
	return errors.Wrap(tx.Commit(), "commit")
}
