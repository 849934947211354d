package benchmark

import "database/sql"

type Benchmark interface {
	// Called once at the start of the run, to setup any resources required
	Setup(dbs []*sql.DB)
	// Populates (and cleans if needed) the databases (receives the list of different connections)
	Populate(dbs []*sql.DB)
	// Prepares the statements and returns the list of operations (called for each worker)
	Prepare(db *sql.DB) map[string]func() error
	// Returns the benchmark-specific configurations
	GetConfigs() map[string]string
	// Returns the benchmark-specific metrics
	GetMetrics(db *sql.DB) map[string]string
	// Called once at the end of the run, to close any resources required
	Finalize(dbs []*sql.DB)
}
