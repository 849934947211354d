package consistency

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/util"
	zlog "github.com/rs/zerolog/log"
)

// Outcome of one strategy run
type Result struct {
	Strategy        string
	Iterations      int
	Latencies       []float64 // seconds, one per timed trial
	AvgLatency      float64   // seconds
	Inconsistencies int       // trials whose immediate re-read did not see the write
}

func newResult(strategy string, latencies []float64, inconsistencies int) *Result {
	return &Result{
		Strategy:        strategy,
		Iterations:      len(latencies),
		Latencies:       latencies,
		AvgLatency:      util.Mean(latencies),
		Inconsistencies: inconsistencies,
	}
}

func (r *Result) StrongConsistency() bool {
	return r.Inconsistencies == 0
}

func (r *Result) Report(w io.Writer) {
	fmt.Fprintf(w, "Report (%s)\n", r.Strategy)
	fmt.Fprintf(w, "   - average latency: %.5f s\n", r.AvgLatency)
	if r.Iterations > 1 {
		fmt.Fprintf(w, "   - p95 latency: %.5f s\n", util.Percentile(r.Latencies, 95))
	}
	fmt.Fprintf(w, "   - stale reads right after write: %d / %d\n", r.Inconsistencies, r.Iterations)
	if r.StrongConsistency() {
		fmt.Fprintln(w, "   -> strong consistency: every read right after the write saw it.")
	} else {
		fmt.Fprintln(w, "   -> eventual consistency: stale reads right after the write are expected.")
	}
}

// Runs setup, one discarded warm-up call, the timed trials and teardown.
// Every trial is followed by an immediate CheckConsistency and every mismatch
// is counted, whatever the strategy. teardown runs whenever setup succeeded,
// even if a trial fails.
func (h *Harness) RunBenchmark(ctx context.Context, name string, strategy Strategy, setup Hook, teardown Hook) (*Result, error) {
	fmt.Fprintf(h.out, "\n[Test: %s] start (%d iterations)\n", name, h.cfg.Iterations)

	if setup != nil {
		if err := setup(ctx); err != nil {
			return nil, errors.Wrapf(err, "%s: setup", name)
		}
	}

	result, err := func() (result *Result, err error) {
		if teardown != nil {
			defer func() {
				if tdErr := teardown(ctx); tdErr != nil {
					err = errors.CombineErrors(err, errors.Wrapf(tdErr, "%s: teardown", name))
				}
			}()
		}
		return h.trials(ctx, name, strategy)
	}()
	if err != nil {
		return nil, err
	}

	result.Report(h.out)
	zlog.Info().Str("run", h.runID).Str("strategy", name).Int("iterations", result.Iterations).
		Float64("avgLatency", result.AvgLatency).Int("inconsistencies", result.Inconsistencies).Msg("Run ended")

	return result, nil
}

func (h *Harness) trials(ctx context.Context, name string, strategy Strategy) (*Result, error) {
	// warm-up
	if _, err := strategy(ctx); err != nil {
		return nil, errors.Wrapf(err, "%s: warm-up", name)
	}

	latencies := make([]float64, 0, h.cfg.Iterations)
	inconsistencies := 0

	for i := 0; i < h.cfg.Iterations; i++ {
		trial, err := strategy(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: trial %d", name, i)
		}
		latencies = append(latencies, trial.Latency.Seconds())

		consistent, err := h.CheckConsistency(ctx, trial.ShipmentID, trial.Status)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: trial %d", name, i)
		}
		if !consistent {
			inconsistencies++
		}
	}

	return newResult(name, latencies, inconsistencies), nil
}
