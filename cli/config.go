package cli

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/worker"
	"gopkg.in/yaml.v3"
)

// Shared keys of a config file. Each benchmark and tool decodes FileData again
// for its own keys.
type BenchmarkArgs struct {
	Dialect         string
	Driver          string
	Connection      []dialect.Connection // one per site; tools use the first
	MaxConns        int                  `yaml:"maxConns"`
	Time            int
	Transactions    int
	Warmup          int
	Cooldown        int
	Runs            int
	NoReload        bool `yaml:"noReload"`
	Workers         []int
	Benchmark       string
	Monitor         string        // name of the database server process to sample
	MonitorInterval time.Duration `yaml:"monitorInterval"`
	FileData        []byte        `yaml:"-"` // config file contents
	Operations      []worker.Operation
}

// Returns a BenchmarkArgs struct with the information in the configFile.
func buildArgs(configFile string) (*BenchmarkArgs, error) {
	if configFile == "" {
		return nil, errors.New("missing config file (--conf)")
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	args := BenchmarkArgs{
		MaxConns:        100,
		Runs:            1,
		Workers:         []int{1},
		MonitorInterval: 100 * time.Millisecond,
	}
	if err := yaml.Unmarshal(data, &args); err != nil {
		return nil, errors.Wrapf(err, "parse %s", configFile)
	}
	if len(args.Connection) == 0 {
		return nil, errors.New("config has no connection")
	}
	args.FileData = data

	return &args, nil
}

func (a *BenchmarkArgs) dialect() (dialect.Dialect, error) {
	return dialect.New(a.Dialect, a.Driver)
}

// Opens the first connection; tools other than run work on a single site
func (a *BenchmarkArgs) open(ctx context.Context, d dialect.Dialect) (*sql.DB, error) {
	return dbutils.Open(ctx, d, a.Connection[0], a.MaxConns)
}
