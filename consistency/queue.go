package consistency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

var errQueueStopped = errors.New("queue stopped")

// Queue hands status mutations from the trial loop to a single background
// worker. Enqueue blocks when the channel is full; the worker waits at most
// the poll interval for an item before checking whether it was stopped.
type Queue struct {
	items   chan Target
	apply   func(context.Context, Target) error
	poll    time.Duration
	running atomic.Bool

	// enqueued but not yet applied, including the item in flight
	pending   atomic.Int64
	unapplied sync.WaitGroup

	applied atomic.Int64
	failed  atomic.Int64

	// held by Enqueue across check and send, and by Stop to flip running
	mu       sync.Mutex
	stopOnce sync.Once
	doneWg   sync.WaitGroup
}

// Creates the queue and starts its worker
func NewQueue(ctx context.Context, capacity int, poll time.Duration, apply func(context.Context, Target) error) *Queue {
	q := &Queue{
		items: make(chan Target, capacity),
		apply: apply,
		poll:  poll,
	}
	q.running.Store(true)
	q.doneWg.Add(1)
	go q.worker(ctx)
	return q
}

func (q *Queue) worker(ctx context.Context) {
	defer q.doneWg.Done()

	for q.running.Load() {
		select {
		case t := <-q.items:
			q.process(ctx, t)
		case <-time.After(q.poll):
		}
	}
}

// a failed item is logged and counted; the worker moves on
func (q *Queue) process(ctx context.Context, t Target) {
	defer func() {
		q.pending.Add(-1)
		q.unapplied.Done()
	}()

	if err := q.apply(ctx, t); err != nil {
		q.failed.Add(1)
		zlog.Error().Err(err).Str("strategy", StrategyAsync).Int64("shipment", t.ShipmentID).
			Str("status", t.Status).Msg("worker failed to apply mutation")
		return
	}
	q.applied.Add(1)
}

// Fire and forget: returns once the mutation is in the channel
func (q *Queue) Enqueue(t Target) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running.Load() {
		return errQueueStopped
	}
	q.unapplied.Add(1)
	q.pending.Add(1)
	q.items <- t
	return nil
}

// Number of mutations enqueued and not yet applied
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

// Number of mutations applied and failed so far
func (q *Queue) Stats() (applied int64, failed int64) {
	return q.applied.Load(), q.failed.Load()
}

// Blocks until every enqueued mutation has been processed
func (q *Queue) Drain() {
	q.unapplied.Wait()
}

// Stops the worker and waits for it to exit. Items still in the channel are
// abandoned and no longer count as pending, so Drain returns; call Drain
// first to apply them.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.running.Store(false)
		q.mu.Unlock()
		q.doneWg.Wait()

		for {
			select {
			case t := <-q.items:
				q.pending.Add(-1)
				q.unapplied.Done()
				zlog.Warn().Str("strategy", StrategyAsync).Int64("shipment", t.ShipmentID).
					Str("status", t.Status).Msg("mutation abandoned")
			default:
				return
			}
		}
	})
}
