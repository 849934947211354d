package generator

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	zlog "github.com/rs/zerolog/log"
)

// Rows removed by Clean, per table
type CleanCounts struct {
	Updates    int64
	Items      int64
	Shipments  int64
	Companies  int64
	Warehouses int64
	Products   int64
}

func (c CleanCounts) Reference() int64 {
	return c.Companies + c.Warehouses + c.Products
}

// Deletes generated rows child-first in one transaction: the update log,
// items and shipments from cfg.StartShipmentID on, then the reference rows
// above the keep thresholds.
func Clean(ctx context.Context, d dialect.Dialect, db *sql.DB, cfg CleanConfig) (counts CleanCounts, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return counts, errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			err = errors.CombineErrors(err, tx.Rollback())
		}
	}()

	steps := []struct {
		query string
		arg   int64
		n     *int64
	}{
		{"DELETE FROM shipment_updates WHERE shipment_id >= ?", cfg.StartShipmentID, &counts.Updates},
		{"DELETE FROM shipment_items WHERE shipment_id >= ?", cfg.StartShipmentID, &counts.Items},
		{"DELETE FROM shipments WHERE shipment_id >= ?", cfg.StartShipmentID, &counts.Shipments},
		{"DELETE FROM companies WHERE company_id > ?", cfg.KeepCompanies, &counts.Companies},
		{"DELETE FROM warehouses WHERE warehouse_id > ?", cfg.KeepWarehouses, &counts.Warehouses},
		{"DELETE FROM products WHERE product_id > ?", cfg.KeepProducts, &counts.Products},
	}
	for _, step := range steps {
		res, err := tx.ExecContext(ctx, d.Rebind(step.query), step.arg)
		if err != nil {
			return counts, errors.Wrapf(err, "exec %q", step.query)
		}
		if *step.n, err = res.RowsAffected(); err != nil {
			return counts, errors.Wrap(err, "rows affected")
		}
	}

	if err = tx.Commit(); err != nil {
		return counts, errors.Wrap(err, "commit")
	}

	zlog.Info().Int64("shipments", counts.Shipments).Int64("updates", counts.Updates).
		Int64("items", counts.Items).Int64("reference", counts.Reference()).Msg("Generated data removed")
	return counts, nil
}
