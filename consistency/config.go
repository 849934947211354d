package consistency

import (
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Strategy keys accepted in Config.Strategies
const (
	StrategySync    = "sync"
	StrategyTrigger = "trigger"
	StrategyAsync   = "async"
)

// Harness configuration. Read from the same YAML file as the connection.
type Config struct {
	Iterations   int           `yaml:"iterations"`   // timed trials per strategy
	PoolSize     int           `yaml:"poolSize"`     // shipment ids fetched at startup
	Statuses     []string      `yaml:"statuses"`     // candidate statuses
	Delay        time.Duration `yaml:"delay"`        // load injected into every status mutation
	QueueSize    int           `yaml:"queueSize"`    // capacity of the async hand-off queue
	PollInterval time.Duration `yaml:"pollInterval"` // idle wake-up of the async worker
	Seed         int64         `yaml:"seed"`         // 0 picks a time-based seed
	Strategies   []string      `yaml:"strategies"`   // subset of sync|trigger|async, all when empty
}

func DefaultConfig() Config {
	return Config{
		Iterations:   100,
		PoolSize:     100,
		Statuses:     []string{"집화완료", "터미널입고", "배송출발", "배송완료", "수취확인"},
		Delay:        50 * time.Millisecond,
		QueueSize:    1024,
		PollInterval: time.Second,
	}
}

// Decodes the harness keys of a config file on top of DefaultConfig
func ParseConfig(configData []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse consistency config")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Iterations <= 0:
		return errors.Newf("iterations must be positive, got %d", c.Iterations)
	case c.PoolSize <= 0:
		return errors.Newf("poolSize must be positive, got %d", c.PoolSize)
	case len(c.Statuses) == 0:
		return errors.New("statuses must not be empty")
	case c.Delay < 0:
		return errors.Newf("delay must not be negative, got %s", c.Delay)
	case c.QueueSize <= 0:
		return errors.Newf("queueSize must be positive, got %d", c.QueueSize)
	case c.PollInterval <= 0:
		return errors.Newf("pollInterval must be positive, got %s", c.PollInterval)
	}
	for _, s := range c.Strategies {
		if s != StrategySync && s != StrategyTrigger && s != StrategyAsync {
			return errors.Newf("unknown strategy %q", s)
		}
	}
	return nil
}

func (c Config) enabled(strategy string) bool {
	if len(c.Strategies) == 0 {
		return true
	}
	for _, s := range c.Strategies {
		if s == strategy {
			return true
		}
	}
	return false
}
