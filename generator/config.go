package generator

import (
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Keys of the seed section of a config file
type Config struct {
	Shipments       int           `yaml:"shipments"`       // target shipments
	BatchSize       int           `yaml:"batchSize"`       // shipments per transaction
	Companies       int           `yaml:"companies"`       // reference rows added before the shipments
	Warehouses      int           `yaml:"warehouses"`      //
	Products        int           `yaml:"products"`        //
	MaxItems        int           `yaml:"maxItems"`        // distinct products per shipment, at least 1
	MinHistory      int           `yaml:"minHistory"`      // updates per shipment
	MaxHistory      int           `yaml:"maxHistory"`      //
	HistoryStatuses []string      `yaml:"historyStatuses"` // status codes used for the generated history
	Window          time.Duration `yaml:"window"`          // created_at lies within [now-window, now]
	Seed            int64         `yaml:"seed"`            // 0 picks a random seed
}

func DefaultConfig() Config {
	return Config{
		Shipments:  50000,
		BatchSize:  5000,
		Companies:  50,
		Warehouses: 50,
		Products:   100,
		MaxItems:   5,
		MinHistory: 3,
		MaxHistory: 15,
		HistoryStatuses: []string{
			"주문접수", "집화처리", "간선상차", "간선하차", "터미널입고", "터미널출고", "배송출발", "배송완료",
		},
		Window: 2 * 365 * 24 * time.Hour,
	}
}

func ParseConfig(configData []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse seed config")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Shipments < 0:
		return errors.Newf("shipments must not be negative, got %d", c.Shipments)
	case c.BatchSize <= 0:
		return errors.Newf("batchSize must be positive, got %d", c.BatchSize)
	case c.Companies < 0 || c.Warehouses < 0 || c.Products < 0:
		return errors.New("reference row counts must not be negative")
	case c.MaxItems < 1:
		return errors.Newf("maxItems must be at least 1, got %d", c.MaxItems)
	case c.MinHistory < 1 || c.MaxHistory < c.MinHistory:
		return errors.Newf("invalid history range [%d, %d]", c.MinHistory, c.MaxHistory)
	case len(c.HistoryStatuses) == 0:
		return errors.New("historyStatuses must not be empty")
	case c.Window <= 0:
		return errors.Newf("window must be positive, got %s", c.Window)
	}
	return nil
}

// Keys of the clean section of a config file. Rows with ids above the keep
// thresholds are considered generated.
type CleanConfig struct {
	StartShipmentID int64 `yaml:"startShipmentId"`
	KeepCompanies   int64 `yaml:"keepCompanies"`
	KeepWarehouses  int64 `yaml:"keepWarehouses"`
	KeepProducts    int64 `yaml:"keepProducts"`
}

func DefaultCleanConfig() CleanConfig {
	return CleanConfig{
		StartShipmentID: 1003,
		KeepCompanies:   2,
		KeepWarehouses:  30,
		KeepProducts:    103,
	}
}

func ParseCleanConfig(configData []byte) (CleanConfig, error) {
	cfg := DefaultCleanConfig()
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse clean config")
	}
	if cfg.StartShipmentID < 1 {
		return cfg, errors.Newf("startShipmentId must be positive, got %d", cfg.StartShipmentID)
	}
	return cfg, nil
}
