package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "conf.yaml")
	config := "dialect: sqlite\nconnection:\n  - database: " + filepath.Join(dir, "logisflow.db") + "\n" + body
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--no-log"))
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildArgs(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
benchmark: denorm
workers: [1, 4]
transactions: 100
monitor: postgres
operations:
  - name: normalized
    weight: 1
  - name: denormalized
    weight: 3
`)

	args, err := buildArgs(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", args.Dialect)
	assert.Equal(t, []int{1, 4}, args.Workers)
	assert.Equal(t, 100, args.Transactions)
	assert.Equal(t, 1, args.Runs)
	assert.Equal(t, 100, args.MaxConns)
	assert.Equal(t, "postgres", args.Monitor)
	assert.Equal(t, []worker.Operation{{Name: "normalized", Weight: 1}, {Name: "denormalized", Weight: 3}}, args.Operations)
	require.Len(t, args.Connection, 1)
	assert.Equal(t, filepath.Join(dir, "logisflow.db"), args.Connection[0].Database)
	assert.NotEmpty(t, args.FileData)

	_, err = buildArgs("")
	assert.Error(t, err)
	_, err = buildArgs(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("dialect: sqlite\n"), 0o644))
	_, err = buildArgs(empty)
	assert.Error(t, err)
}

func TestAggregateResults(t *testing.T) {
	run1 := []*worker.BenchmarkResults{
		{RealDuration: 2, Operations: map[string]*worker.Metric{
			"read": {Rts: []float64{0.1, 0.3}, TotalRt: 0.4, CompleteCount: 2, AbortCount: 2},
		}},
		{RealDuration: 2, Operations: map[string]*worker.Metric{
			"read": {Rts: []float64{0.2, 0.2}, TotalRt: 0.4, CompleteCount: 2},
		}},
	}
	run2 := []*worker.BenchmarkResults{
		{RealDuration: 1, Operations: map[string]*worker.Metric{
			"read": {Rts: []float64{0.4, 0.4}, TotalRt: 0.8, CompleteCount: 2},
		}},
	}

	aggregated := aggregateResults([][]*worker.BenchmarkResults{run1, run2})
	read := aggregated["read"]
	// run1: rt 0.2, tps 2, ct 4, ar 1/3; run2: rt 0.4, tps 2, ct 2, ar 0
	assert.InDelta(t, 0.3, read.rt, 1e-9)
	assert.InDelta(t, 2.0, read.tps, 1e-9)
	assert.InDelta(t, 3.0, read.ct, 1e-9)
	assert.InDelta(t, 1.0/6, read.ar, 1e-9)
	assert.Equal(t, read.rt, aggregated["total"].rt)
}

func TestPrintSummary(t *testing.T) {
	aggregated := map[string]ProcessedResult{
		"read":  {name: "read", rt: 0.5, tps: 10, ct: 20, ar: 0, rtP95: 0.9},
		"total": {name: "total", rt: 0.5, tps: 10, ct: 20, ar: 0, rtP95: 0.9},
	}
	args := &BenchmarkArgs{Benchmark: "denorm", Runs: 2, Connection: make([]dialect.Connection, 1)}

	var out bytes.Buffer
	printSummary(&out, aggregated, args, "sqlite", 4,
		map[string]string{"limit": "1000"}, map[string]string{"cpuAvg": "12.5"}, true)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "Csv:benchmark,time,runs,noReload,workers,dialect,sites,limit,cpuAvg,rt,tps,ct,ar,rtP95", lines[0])
	assert.Equal(t, "CsvOps:benchmark,time,runs,noReload,workers,dialect,sites,limit,operation,rt,tps,ct,ar,rtP95", lines[1])
	assert.Equal(t, "CsvOps:denorm,0,2,false,4,sqlite,1,1000,read,0.500000,10.000,20,0.000000,0.900000", lines[2])
	assert.Equal(t, "CsvOps:denorm,0,2,false,4,sqlite,1,1000,total,0.500000,10.000,20,0.000000,0.900000", lines[3])
	assert.Equal(t, "Csv:denorm,0,2,false,4,sqlite,1,1000,12.5,0.500000,10.000,20,0.000000,0.900000", lines[4])
	assert.Contains(t, out.String(), "\ndialect: sqlite\n")
	assert.Contains(t, out.String(), "\ncpuAvg: 12.5\n")
}

func TestGetBenchmarkFactory(t *testing.T) {
	_, err := getBenchmarkFactory("denorm", []byte("dialect: sqlite\n"))
	assert.NoError(t, err)
	_, err = getBenchmarkFactory("tpcc", nil)
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
benchmark: denorm
workers: [2]
transactions: 20
maxConns: 4
limit: 10
populate: true
shipments: 30
batchSize: 10
companies: 2
warehouses: 3
products: 3
operations:
  - name: normalized
    weight: 1
  - name: normalizedNoIndex
    weight: 1
  - name: denormalized
    weight: 1
`)

	out, err := execute(t, "run", "--conf", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Populating")
	assert.Contains(t, out, "Csv:denorm,0,1,false,2,sqlite,1")
	assert.Contains(t, out, "cpuAvg: ")
	assert.Contains(t, out, "memAvgMB: ")
	assert.Contains(t, out, "\nct: 20.000000")
}

func TestRunCommand_UnknownOperation(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
benchmark: denorm
transactions: 5
operations:
  - name: write
    weight: 1
`)

	_, err := execute(t, "run", "--conf", path)
	assert.ErrorContains(t, err, "write")
}

func TestSeedConsistencyClean(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
shipments: 12
batchSize: 5
companies: 2
warehouses: 2
products: 2
iterations: 3
poolSize: 5
delay: 0s
pollInterval: 10ms
startShipmentId: 1
keepCompanies: 0
keepWarehouses: 0
keepProducts: 0
`)

	out, err := execute(t, "seed", "--conf", path)
	require.NoError(t, err)
	assert.Contains(t, out, "- shipments: 12")

	out, err = execute(t, "consistency", "--conf", path, "--strategy", "sync,trigger")
	require.NoError(t, err)
	assert.Contains(t, out, "Strategy A: sync transaction")
	assert.Contains(t, out, "Strategy B: db trigger")
	assert.NotContains(t, out, "Strategy C")
	assert.Contains(t, out, "All tests complete.")

	out, err = execute(t, "clean", "--conf", path)
	require.NoError(t, err)
	assert.Contains(t, out, "- shipments: 12")
	assert.Contains(t, out, "- reference rows: 6")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "dump.sql")
	outFile := filepath.Join(dir, "dump_pg.sql")
	require.NoError(t, os.WriteFile(in, []byte("DROP TABLE IF EXISTS `t`;\n"), 0o644))

	out, err := execute(t, "convert", in, outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CASCADE")

	_, err = execute(t, "convert", in)
	assert.Error(t, err)
}
