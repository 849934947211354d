package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/benchmark"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/benchmark/denorm"
	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/monitor"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/util"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/worker"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type ProcessedResult struct {
	name  string
	rt    float64
	ct    float64
	tps   float64
	ar    float64
	rtP95 float64
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a query benchmark with a pool of workers",
		Long: `Runs the benchmark named in the config file once per entry of "workers",
"runs" times each, while sampling the database server process, and prints the
averaged results as Csv:/CsvOps: lines followed by key-value pairs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := buildArgs(rootOpts.ConfigFile)
			if err != nil {
				return err
			}
			return runBenchmark(cmd.Context(), args, cmd.OutOrStdout())
		},
	}
}

// Returns a benchmark factory based on the benchmarkType. configData is a binary representation of
// the configuration file, so each benchmark can deserialize its respective parameters.
func getBenchmarkFactory(benchmarkType string, configData []byte) (func(int) benchmark.Benchmark, error) {
	switch benchmarkType {
	case "denorm":
		return func(id int) benchmark.Benchmark { return denorm.New(id, configData) }, nil
	default:
		return nil, errors.Newf("benchmark %q not found", benchmarkType)
	}
}

// One pool per site
func createConnections(ctx context.Context, args *BenchmarkArgs, d dialect.Dialect) []*sql.DB {
	dbs := []*sql.DB{}
	for _, c := range args.Connection {
		dbs = append(dbs, util.Try(dbutils.Open(ctx, d, c, args.MaxConns)))
	}
	return dbs
}

func closeConnections(dbs []*sql.DB) {
	for _, db := range dbs {
		db.Close()
	}
}

// Create nWorkers with the respective arguments, connections, and benchmark.
func createWorkers(nWorkers int, args *BenchmarkArgs, dbs []*sql.DB, benchmarkFactory func(int) benchmark.Benchmark) []*worker.Worker {
	workers := []*worker.Worker{}
	phases := worker.Phases{
		Duration:     args.Time,
		Transactions: args.Transactions / nWorkers,
		Warmup:       args.Warmup,
		Cooldown:     args.Cooldown,
	}

	for i := 0; i < nWorkers; i++ {
		w := worker.NewWorker(i, phases, dbs[i%len(dbs)], args.Operations, benchmarkFactory(i))
		workers = append(workers, w)
	}

	return workers
}

func runBenchmark(ctx context.Context, args *BenchmarkArgs, out io.Writer) (err error) {
	defer util.Recover(&err)

	if ctx == nil {
		ctx = context.Background()
	}
	d, err := args.dialect()
	if err != nil {
		return err
	}
	benchmarkFactory, err := getBenchmarkFactory(args.Benchmark, args.FileData)
	if err != nil {
		return err
	}
	c := make(chan *worker.BenchmarkResults)

	for i, nWorkers := range args.Workers {
		if nWorkers <= 0 {
			return errors.Newf("invalid number of workers %d", nWorkers)
		}

		allResults := [][]*worker.BenchmarkResults{}
		usages := []monitor.Usage{}
		configs := map[string]string{}
		metrics := map[string]string{}

		zlog.Info().Int("workers", nWorkers).Str("dialect", d.Name()).Msg("Run started")

		for j := 0; j < args.Runs; j++ {
			startTime := util.EpochSeconds()
			dbs := createConnections(ctx, args, d)
			workers := createWorkers(nWorkers, args, dbs, benchmarkFactory)
			benchmark := benchmarkFactory(-1)
			benchmark.Setup(dbs)

			if j == 0 || !args.NoReload {
				fmt.Fprintln(out, "Populating")
				benchmark.Populate(dbs)
			}

			mon := monitor.New(ctx, args.Monitor, args.MonitorInterval)
			mon.Start(ctx)

			fmt.Fprintln(out, "Running")
			for _, w := range workers {
				go w.Run(ctx, c)
			}

			results := []*worker.BenchmarkResults{}
			for k := 0; k < nWorkers; k++ {
				results = append(results, <-c)
			}
			usage := mon.Stop()
			zlog.Info().Str("target", mon.Target()).Float64("cpuAvg", usage.AvgCPU).
				Float64("memAvgMB", usage.AvgMemMB).Msg("Resource usage")

			for _, r := range results {
				if r.Err != nil {
					benchmark.Finalize(dbs)
					closeConnections(dbs)
					return errors.Wrapf(r.Err, "worker %d", r.WorkerID)
				}
			}

			allResults = append(allResults, results)
			usages = append(usages, usage)
			if len(configs) == 0 {
				configs = workers[0].GetConfigs()
				metrics = workers[0].GetMetrics()
			}

			fmt.Fprintf(out, "setupTime=%v\n", (util.EpochSeconds() - startTime - results[0].RealDuration))

			benchmark.Finalize(dbs)
			closeConnections(dbs)
		}

		for k, v := range usageMetrics(usages) {
			metrics[k] = v
		}
		aggregated := aggregateResults(allResults)
		printSummary(out, aggregated, args, d.Name(), nWorkers, configs, metrics, i == 0)

		zlog.Info().Int("workers", nWorkers).Msg("Run ended")
	}

	return nil
}

// Averages the resource usage of all runs
func usageMetrics(usages []monitor.Usage) map[string]string {
	cpuAvg, cpuMax, memAvg := []float64{}, []float64{}, []float64{}
	for _, u := range usages {
		cpuAvg = append(cpuAvg, u.AvgCPU)
		cpuMax = append(cpuMax, u.MaxCPU)
		memAvg = append(memAvg, u.AvgMemMB)
	}
	return map[string]string{
		"cpuAvg":   fmt.Sprintf("%.1f", util.Mean(cpuAvg)),
		"cpuMax":   fmt.Sprintf("%.1f", util.Mean(cpuMax)),
		"memAvgMB": fmt.Sprintf("%.1f", util.Mean(memAvg)),
	}
}

// Computes the average value of a list of results
func avgMetric(results []ProcessedResult, metric string) float64 {
	var total float64

	for _, r := range results {
		switch metric {
		case "rt":
			total += r.rt
		case "ct":
			total += r.ct
		case "tps":
			total += r.tps
		case "ar":
			total += r.ar
		case "rtP95":
			total += r.rtP95
		}
	}

	return total / float64(len(results))
}

// Averages the results of all runs, per operation and in total.
// Both the throughput (tps) and response time (rt) consider only the completed operations
func aggregateResults(allResults [][]*worker.BenchmarkResults) map[string]ProcessedResult {
	// metric -> values of each run
	processedResults := map[string][]ProcessedResult{}

	// process the results of all runs
	for _, results := range allResults {
		rts := map[string][]float64{}
		totalRts := map[string]float64{}
		completeCounts := map[string]int{}
		abortCounts := map[string]int{}
		tps := map[string]float64{}
		totalCompleted := 0
		totalAborted := 0
		totalRt := 0.
		totalTps := 0.
		allRts := []float64{}

		// combine the results of all workers
		for _, result := range results {
			for operation, value := range result.Operations {
				rts[operation] = append(rts[operation], value.Rts...)
				totalRts[operation] += value.TotalRt
				completeCounts[operation] += value.CompleteCount
				abortCounts[operation] += value.AbortCount
				tps[operation] += float64(value.CompleteCount) / result.RealDuration
				totalCompleted += value.CompleteCount
				totalAborted += value.AbortCount
				totalRt += value.TotalRt
				totalTps += float64(value.CompleteCount) / result.RealDuration
				allRts = append(allRts, value.Rts...)
			}
		}

		// add the run averages to all averages
		for k := range rts {
			processedResults[k] = append(processedResults[k], ProcessedResult{
				name:  k,
				rt:    totalRts[k] / float64(completeCounts[k]),
				ct:    float64(completeCounts[k]),
				tps:   tps[k],
				ar:    float64(abortCounts[k]) / float64(abortCounts[k]+completeCounts[k]),
				rtP95: util.Percentile(rts[k], 95),
			})
		}

		// average of all operations
		processedResults["total"] = append(processedResults["total"], ProcessedResult{
			name:  "total",
			rt:    totalRt / float64(totalCompleted),
			ct:    float64(totalCompleted),
			tps:   totalTps,
			ar:    float64(totalAborted) / (float64(totalAborted + totalCompleted)),
			rtP95: util.Percentile(allRts, 95),
		})
	}

	aggregated := map[string]ProcessedResult{}
	for k, v := range processedResults {
		aggregated[k] = ProcessedResult{
			name:  k,
			rt:    avgMetric(v, "rt"),
			tps:   avgMetric(v, "tps"),
			ar:    avgMetric(v, "ar"),
			ct:    avgMetric(v, "ct"),
			rtP95: avgMetric(v, "rtP95"),
		}
	}

	return aggregated
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prints the summary: a "Csv:" header
// and value line for the run totals, one "CsvOps:" line per operation, then
// "key: value" lines. Columns are those of the crdv benchmark summaries, with the
// dialect in place of the isolation level.
func printSummary(out io.Writer,
	aggregated map[string]ProcessedResult,
	args *BenchmarkArgs,
	dialectName string,
	nWorkers int,
	benchmarkConfigs map[string]string,
	benchmarkMetrics map[string]string,
	firstLine bool,
) {
	sortedConfigs := sortedKeys(benchmarkConfigs)
	sortedMetrics := sortedKeys(benchmarkMetrics)

	// CSV header
	if firstLine {
		header := "Csv:benchmark,time,runs,noReload,workers,dialect,sites"
		if len(sortedConfigs) > 0 {
			header += "," + strings.Join(sortedConfigs, ",")
		}
		if len(sortedMetrics) > 0 {
			header += "," + strings.Join(sortedMetrics, ",")
		}
		fmt.Fprintln(out, header+",rt,tps,ct,ar,rtP95")

		opsHeader := "CsvOps:benchmark,time,runs,noReload,workers,dialect,sites"
		if len(sortedConfigs) > 0 {
			opsHeader += "," + strings.Join(sortedConfigs, ",")
		}
		fmt.Fprintln(out, opsHeader+",operation,rt,tps,ct,ar,rtP95")
	}

	// string for the benchmark specific metrics ("Csv:" prefix)
	csv := fmt.Sprintf("Csv:%s,%d,%d,%t,%d,%s,%d",
		args.Benchmark, args.Time, args.Runs, args.NoReload, nWorkers, dialectName, len(args.Connection))
	// string for the operations ("CsvOps:" prefix)
	csvOps := fmt.Sprintf("CsvOps:%s,%d,%d,%t,%d,%s,%d",
		args.Benchmark, args.Time, args.Runs, args.NoReload, nWorkers, dialectName, len(args.Connection))
	// string with metrics in a key-value format to ease reading
	kv := fmt.Sprintf("benchmark: %s\ntime: %d\nruns: %d\nnoReload: %t\nworkers: %d\ndialect: %s\nsites: %d",
		args.Benchmark, args.Time, args.Runs, args.NoReload, nWorkers, dialectName, len(args.Connection))

	// write benchmark-specific configs
	for _, config := range sortedConfigs {
		csv += fmt.Sprintf(",%s", benchmarkConfigs[config])
		csvOps += fmt.Sprintf(",%s", benchmarkConfigs[config])
		kv += fmt.Sprintf("\n%s: %s", config, benchmarkConfigs[config])
	}

	// write benchmark-specific metrics
	for _, metric := range sortedMetrics {
		csv += fmt.Sprintf(",%s", benchmarkMetrics[metric])
		kv += fmt.Sprintf("\n%s: %s", metric, benchmarkMetrics[metric])
	}

	// write the results of each operation
	for _, operation := range sortedKeys(aggregated) {
		result := aggregated[operation]
		if operation == "total" {
			kv += fmt.Sprintf("\nrt: %.6f", result.rt)
			kv += fmt.Sprintf("\ntps: %.6f", result.tps)
			kv += fmt.Sprintf("\nct: %.6f", result.ct)
			kv += fmt.Sprintf("\nar: %.6f", result.ar)
			kv += fmt.Sprintf("\nrtP95: %.6f", result.rtP95)
			csv += fmt.Sprintf(",%.6f,%.3f,%.0f,%.6f,%.6f", result.rt, result.tps, result.ct, result.ar, result.rtP95)
		}
		fmt.Fprintln(out, csvOps+fmt.Sprintf(",%s,%.6f,%.3f,%.0f,%.6f,%.6f", operation, result.rt, result.tps, result.ct, result.ar, result.rtP95))
	}

	fmt.Fprintln(out, csv)
	fmt.Fprintln(out, kv)
}
