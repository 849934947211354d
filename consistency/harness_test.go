package consistency

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyPool(t *testing.T) {
	tdb := newTestDB(t, 0)
	_, err := New(context.Background(), tdb.dialect, tdb.db, tdb.workerDB, testConfig())
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	tdb := newTestDB(t, 1)
	cfg := testConfig()
	cfg.Iterations = 0
	_, err := New(context.Background(), tdb.dialect, tdb.db, tdb.workerDB, cfg)
	assert.Error(t, err)
}

func TestPickTarget_StaysInPool(t *testing.T) {
	tdb := newTestDB(t, 5)
	cfg := testConfig()
	h := newTestHarness(t, tdb, cfg)

	for i := 0; i < 200; i++ {
		target := h.PickTarget()
		assert.GreaterOrEqual(t, target.ShipmentID, int64(1))
		assert.LessOrEqual(t, target.ShipmentID, int64(5))
		assert.Contains(t, cfg.Statuses, target.Status)
	}
}

func TestCheckConsistency(t *testing.T) {
	tdb := newTestDB(t, 1)
	h := newTestHarness(t, tdb, testConfig())
	ctx := context.Background()

	ok, err := h.CheckConsistency(ctx, 1, initialStatus)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.CheckConsistency(ctx, 1, "delivered")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.CheckConsistency(ctx, 999, "delivered")
	assert.Error(t, err)
}

func TestSyncTransaction_StrongConsistency(t *testing.T) {
	tdb := newTestDB(t, 10)
	cfg := testConfig()
	cfg.Delay = 5 * time.Millisecond
	h := newTestHarness(t, tdb, cfg)

	result, err := h.RunBenchmark(context.Background(), "sync", h.SyncTransaction, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Inconsistencies)
	assert.True(t, result.StrongConsistency())
	assert.Equal(t, cfg.Iterations, result.Iterations)
	require.Len(t, result.Latencies, cfg.Iterations)
	assert.InDelta(t, util.Mean(result.Latencies), result.AvgLatency, 1e-12)
	for _, l := range result.Latencies {
		assert.GreaterOrEqual(t, l, cfg.Delay.Seconds())
	}

	// warm-up + trials, each one log row
	assert.Equal(t, cfg.Iterations+1, countRows(t, tdb.db, "SELECT COUNT(*) FROM shipment_updates"))
}

func TestSyncTransaction_RollsBackAndContinues(t *testing.T) {
	tdb := newTestDB(t, 10)
	cfg := testConfig()
	h := newTestHarness(t, tdb, cfg)

	setups, teardowns := 0, 0
	setup := func(ctx context.Context) error {
		setups++
		_, err := tdb.db.ExecContext(ctx, `
			CREATE TRIGGER reject_updates BEFORE INSERT ON shipment_updates
			BEGIN
				SELECT RAISE(ABORT, 'rejected');
			END`)
		return err
	}
	teardown := func(ctx context.Context) error {
		teardowns++
		_, err := tdb.db.ExecContext(ctx, "DROP TRIGGER reject_updates")
		return err
	}

	result, err := h.RunBenchmark(context.Background(), "sync", h.SyncTransaction, setup, teardown)
	require.NoError(t, err)

	assert.Equal(t, 1, setups)
	assert.Equal(t, 1, teardowns)
	// nothing committed, so no read can see the new status
	assert.Equal(t, cfg.Iterations, result.Inconsistencies)
	assert.Equal(t, 0, countRows(t, tdb.db, "SELECT COUNT(*) FROM shipment_updates"))
	assert.Equal(t, 10, countRows(t, tdb.db,
		"SELECT COUNT(*) FROM shipments WHERE current_status = '"+initialStatus+"'"))
}

func TestDBTrigger_SetupAndTeardown(t *testing.T) {
	tdb := newTestDB(t, 10)
	cfg := testConfig()
	h := newTestHarness(t, tdb, cfg)

	result, err := h.RunBenchmark(context.Background(), "trigger", h.DBTrigger, h.SetupTrigger, h.TeardownTrigger)
	require.NoError(t, err)

	// the trigger fires inside the insert statement
	assert.Equal(t, 0, result.Inconsistencies)
	assert.Equal(t, 0, countRows(t, tdb.db,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger' AND name = 'after_shipment_update'"))
	assert.Equal(t, cfg.Iterations+1, countRows(t, tdb.db,
		"SELECT COUNT(*) FROM shipment_updates WHERE notes LIKE 'Trigger Update %'"))
}

func TestRunBenchmark_TeardownAfterFailedTrial(t *testing.T) {
	tdb := newTestDB(t, 3)
	h := newTestHarness(t, tdb, testConfig())

	calls, setups, teardowns := 0, 0, 0
	failing := func(ctx context.Context) (Trial, error) {
		calls++
		if calls == 3 {
			return Trial{}, errors.New("boom")
		}
		return Trial{Target: h.PickTarget()}, nil
	}

	_, err := h.RunBenchmark(context.Background(), "failing", failing,
		func(context.Context) error { setups++; return nil },
		func(context.Context) error {
			teardowns++
			assert.Equal(t, 1, setups)
			return nil
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, setups)
	assert.Equal(t, 1, teardowns)
}

func TestRunBenchmark_SetupFailureSkipsTrials(t *testing.T) {
	tdb := newTestDB(t, 3)
	h := newTestHarness(t, tdb, testConfig())

	calls, teardowns := 0, 0
	_, err := h.RunBenchmark(context.Background(), "broken",
		func(context.Context) (Trial, error) { calls++; return Trial{}, nil },
		func(context.Context) error { return errors.New("no trigger for you") },
		func(context.Context) error { teardowns++; return nil })
	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, teardowns)
}

func TestRunBenchmark_CountsEveryMismatch(t *testing.T) {
	tdb := newTestDB(t, 3)
	cfg := testConfig()
	h := newTestHarness(t, tdb, cfg)

	// never writes: every immediate read is stale
	stale := func(context.Context) (Trial, error) {
		return Trial{Target: Target{ShipmentID: 1, Status: "never-written"}, Latency: time.Millisecond}, nil
	}

	result, err := h.RunBenchmark(context.Background(), "stale", stale, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Iterations, result.Inconsistencies)
	assert.InDelta(t, 0.001, result.AvgLatency, 1e-9)
}

func TestAsyncQueue_LagThenConverges(t *testing.T) {
	tdb := newTestDB(t, 10)
	cfg := testConfig()
	cfg.Delay = 20 * time.Millisecond
	h := newTestHarness(t, tdb, cfg)
	ctx := context.Background()

	last := map[int64]string{}
	for i := 0; i < 10; i++ {
		trial, err := h.AsyncQueue(ctx)
		require.NoError(t, err)
		// the worker needs at least the injected delay to apply it
		assert.GreaterOrEqual(t, h.Pending(), int64(1))
		assert.Less(t, trial.Latency, cfg.Delay*10)

		_, err = h.CheckConsistency(ctx, trial.ShipmentID, trial.Status)
		require.NoError(t, err)
		last[trial.ShipmentID] = trial.Status
	}

	h.Drain()
	assert.Equal(t, int64(0), h.Pending())

	for id, status := range last {
		ok, err := h.CheckConsistency(ctx, id, status)
		require.NoError(t, err)
		assert.True(t, ok, "shipment %d should be %s after drain", id, status)
	}

	// log rows are written before the hand-off
	assert.Equal(t, 10, countRows(t, tdb.db, "SELECT COUNT(*) FROM shipment_updates"))
}

func TestAsyncQueue_RunBenchmark(t *testing.T) {
	tdb := newTestDB(t, 10)
	cfg := testConfig()
	cfg.Delay = 5 * time.Millisecond
	h := newTestHarness(t, tdb, cfg)

	result, err := h.RunBenchmark(context.Background(), "async", h.AsyncQueue, nil, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Inconsistencies, 0)
	assert.LessOrEqual(t, result.Inconsistencies, cfg.Iterations)

	h.Drain()
	assert.Equal(t, cfg.Iterations+1, countRows(t, tdb.db,
		"SELECT COUNT(*) FROM shipment_updates WHERE notes = 'Async Update "+h.RunID()+"'"))
}

func TestRun_AllStrategies(t *testing.T) {
	tdb := newTestDB(t, 10)
	cfg := testConfig()
	cfg.Iterations = 5
	h := newTestHarness(t, tdb, cfg)
	var out bytes.Buffer
	h.SetOutput(&out)

	results, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Strategy A: sync transaction", results[0].Strategy)
	assert.Equal(t, "Strategy B: db trigger", results[1].Strategy)
	assert.Equal(t, "Strategy C: async queue", results[2].Strategy)
	assert.Equal(t, 0, results[0].Inconsistencies)
	assert.Equal(t, int64(0), h.Pending())

	assert.Contains(t, out.String(), "[Test: Strategy A: sync transaction] start (5 iterations)")
	assert.Contains(t, out.String(), "All tests complete.")
}

func TestRun_StrategySubset(t *testing.T) {
	tdb := newTestDB(t, 4)
	cfg := testConfig()
	cfg.Iterations = 3
	cfg.Strategies = []string{StrategyAsync}
	h := newTestHarness(t, tdb, cfg)

	results, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Strategy C: async queue", results[0].Strategy)
}
