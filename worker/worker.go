package worker

import (
	"context"
	"database/sql"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/benchmark"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/util"
	zlog "github.com/rs/zerolog/log"
)

// How long a worker runs. With Duration > 0 the worker runs for Duration
// seconds and only measures between Warmup and Duration-Cooldown; otherwise it
// runs until Transactions operations completed and measures all of them.
type Phases struct {
	Duration     int
	Transactions int
	Warmup       int
	Cooldown     int
}

func (p Phases) timed() bool {
	return p.Duration > 0
}

func (p Phases) measured(elapsed float64) bool {
	return !p.timed() || (elapsed > float64(p.Warmup) && elapsed < float64(p.Duration-p.Cooldown))
}

type Worker struct {
	id              int
	db              *sql.DB
	phases          Phases
	benchmark       benchmark.Benchmark
	operations      []Operation
	totalWeight     int
	rng             *rand.Rand
	operationsToLog chan *OperationLogEntry
	operationLogWg  *sync.WaitGroup
}

type Operation struct {
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight"`
}

type OperationLogEntry struct {
	op  string
	rt  float64
	err error
	t   time.Time
}

type Metric struct {
	Rts           []float64 // list of the response times (seconds) of completed operations
	TotalRt       float64   // sum of the response time of all completed operations
	CompleteCount int       // number of completed operations
	AbortCount    int       // number of failed operations
}

type BenchmarkResults struct {
	WorkerID     int
	RealDuration float64
	Operations   map[string]*Metric // operation name -> Metric
	Err          error              // set when the worker could not run
}

func NewWorker(id int, phases Phases, db *sql.DB, operations []Operation, benchmark benchmark.Benchmark) *Worker {
	worker := new(Worker)
	worker.id = id
	worker.phases = phases
	worker.db = db
	worker.benchmark = benchmark
	worker.operations = operations
	worker.rng = rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	worker.operationsToLog = make(chan *OperationLogEntry, 1024)
	worker.operationLogWg = &sync.WaitGroup{}

	for _, o := range worker.operations {
		worker.totalWeight += o.Weight
	}

	return worker
}

func (w *Worker) log(msg string) {
	zlog.Info().Int("worker", w.id).Msg(msg)
}

func (w *Worker) logOperationsWorker() {
	for operation := range w.operationsToLog {
		if operation == nil {
			break
		}

		if operation.err == nil {
			zlog.Debug().Int("worker", w.id).Str("operation", operation.op).
				Float64("rt", operation.rt).Time("real_time", operation.t).Msg("completed")
		} else {
			zlog.Debug().Int("worker", w.id).Str("operation", operation.op).Err(operation.err).
				Float64("rt", operation.rt).Time("real_time", operation.t).Msg("aborted")
		}
	}

	w.operationLogWg.Done()
}

func (w *Worker) getRandomOperation() string {
	r := w.rng.Intn(w.totalWeight)
	curr := 0

	for _, o := range w.operations {
		if r < o.Weight+curr {
			return o.Name
		}
		curr += o.Weight
	}

	panic("Random operation bigger than the cumulative sum.")
}

func (w *Worker) prepare() (functions map[string]func() error, err error) {
	defer util.Recover(&err)
	return w.benchmark.Prepare(w.db), nil
}

// every configured operation must exist in the benchmark and carry weight
func (w *Worker) check(functions map[string]func() error) error {
	if w.totalWeight <= 0 {
		return errors.New("operations have no weight")
	}
	for _, o := range w.operations {
		if o.Weight < 0 {
			return errors.Newf("operation %q has a negative weight", o.Name)
		}
		if _, ok := functions[o.Name]; !ok {
			return errors.Newf("operation %q not found", o.Name)
		}
	}
	return nil
}

// Runs operations until the phases are over or ctx is cancelled, then sends
// the results to c
func (w *Worker) Run(ctx context.Context, c chan<- *BenchmarkResults) {
	results := BenchmarkResults{WorkerID: w.id, Operations: map[string]*Metric{}}
	for _, o := range w.operations {
		results.Operations[o.Name] = &Metric{}
	}

	w.log("Preparing")
	functions, err := w.prepare()
	if err == nil {
		err = w.check(functions)
	}
	if err != nil {
		zlog.Error().Int("worker", w.id).Err(err).Msg("Cannot run")
		results.Err = err
		c <- &results
		return
	}

	w.operationLogWg.Add(1)
	go w.logOperationsWorker()

	w.log("Running")
	completedTransactions := 0
	start := util.EpochSeconds()
	elapsed := 0.

	for ctx.Err() == nil &&
		((w.phases.timed() && elapsed < float64(w.phases.Duration)) ||
			(!w.phases.timed() && completedTransactions < w.phases.Transactions)) {
		op := w.getRandomOperation()

		txStart := util.EpochSeconds()
		err := functions[op]()
		rt := util.EpochSeconds() - txStart
		w.operationsToLog <- &OperationLogEntry{op, rt, err, time.Now()}

		if w.phases.measured(elapsed) {
			metric := results.Operations[op]

			if err == nil {
				metric.CompleteCount++
				metric.Rts = append(metric.Rts, rt)
				metric.TotalRt += rt
				completedTransactions++
			} else {
				metric.AbortCount++
			}
		}

		elapsed = util.EpochSeconds() - start
	}

	results.RealDuration = util.EpochSeconds() - start
	if w.phases.timed() {
		results.RealDuration -= float64(w.phases.Warmup) + float64(w.phases.Cooldown)
	}

	w.operationsToLog <- nil
	w.operationLogWg.Wait()
	w.log("Done")

	c <- &results
}

// Returns the benchmark-specific configurations
func (w *Worker) GetConfigs() map[string]string {
	return w.benchmark.GetConfigs()
}

// Returns the benchmark-specific metrics
func (w *Worker) GetMetrics() map[string]string {
	return w.benchmark.GetMetrics(w.db)
}
