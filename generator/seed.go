// Package generator fills the logistics schema with synthetic data and
// removes it again.
package generator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cockroachdb/errors"
	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	shipmentColumns = []string{
		"company_id", "origin_warehouse_id", "destination_warehouse_id",
		"created_at", "current_status", "last_updated_at",
	}
	itemColumns   = []string{"shipment_id", "product_id", "quantity"}
	updateColumns = []string{"shipment_id", "status_code", "notes", "timestamp"}
)

// Rows written by Seed
type Counts struct {
	SeedID     string // tag in the notes of every generated update
	Companies  int
	Warehouses int
	Products   int
	Shipments  int
	Items      int
	Updates    int
}

type update struct {
	status string
	at     time.Time
}

type shipment struct {
	companyID   int64
	origin      int64
	destination int64
	createdAt   time.Time
	products    []int64
	quantities  []int
	history     []update
}

type seeder struct {
	cfg   Config
	d     dialect.Dialect
	db    *sql.DB
	faker *gofakeit.Faker
	note  string
	now   time.Time

	companyIDs   []int64
	warehouseIDs []int64
	productIDs   []int64
}

// Adds reference rows, then cfg.Shipments shipments with their items and
// update history, one transaction per batch. current_status and
// last_updated_at of every shipment match its last generated update.
func Seed(ctx context.Context, d dialect.Dialect, db *sql.DB, cfg Config) (Counts, error) {
	if err := cfg.Validate(); err != nil {
		return Counts{}, err
	}

	s := &seeder{
		cfg:   cfg,
		d:     d,
		db:    db,
		faker: gofakeit.New(cfg.Seed),
		now:   time.Now().UTC().Truncate(time.Second),
	}
	counts := Counts{SeedID: uuid.New().String()}
	s.note = "system auto update " + counts.SeedID

	zlog.Info().Str("seed", counts.SeedID).Int("shipments", cfg.Shipments).Msg("Seeding")

	if err := s.referenceData(ctx); err != nil {
		return counts, err
	}
	counts.Companies, counts.Warehouses, counts.Products = cfg.Companies, cfg.Warehouses, cfg.Products

	if err := s.fetchReferenceIDs(ctx); err != nil {
		return counts, err
	}

	for done := 0; done < cfg.Shipments; {
		n := min(cfg.BatchSize, cfg.Shipments-done)
		items, updates, err := s.batch(ctx, n)
		if err != nil {
			return counts, errors.Wrapf(err, "batch at shipment %d", done)
		}
		done += n
		counts.Shipments += n
		counts.Items += items
		counts.Updates += updates
		zlog.Info().Str("seed", counts.SeedID).Int("shipments", done).Int("target", cfg.Shipments).Msg("Batch committed")
	}

	return counts, nil
}

// companies, warehouses and products go in concurrently, one transaction each
func (s *seeder) referenceData(ctx context.Context) error {
	companies := make([][]any, s.cfg.Companies)
	for i := range companies {
		companies[i] = []any{s.faker.Company()}
	}
	warehouses := make([][]any, s.cfg.Warehouses)
	for i := range warehouses {
		warehouses[i] = []any{fmt.Sprintf("%s center %d", s.faker.City(), i), s.faker.Address().Address}
	}
	products := make([][]any, s.cfg.Products)
	for i := range products {
		products[i] = []any{fmt.Sprintf("Logis product %d", i)}
	}

	g, gctx := errgroup.WithContext(ctx)
	insert := func(table string, columns []string, rows [][]any) {
		g.Go(func() error {
			return s.inTx(gctx, func(tx *sql.Tx) error {
				return s.d.BulkInsert(gctx, tx, table, columns, rows)
			})
		})
	}
	insert("companies", []string{"company_name"}, companies)
	insert("warehouses", []string{"warehouse_name", "address"}, warehouses)
	insert("products", []string{"product_name"}, products)

	return errors.Wrap(g.Wait(), "reference data")
}

func (s *seeder) fetchReferenceIDs(ctx context.Context) (err error) {
	if s.companyIDs, err = dbutils.FetchIDs(ctx, s.db, "SELECT company_id FROM companies"); err != nil {
		return err
	}
	if s.warehouseIDs, err = dbutils.FetchIDs(ctx, s.db, "SELECT warehouse_id FROM warehouses"); err != nil {
		return err
	}
	if s.productIDs, err = dbutils.FetchIDs(ctx, s.db, "SELECT product_id FROM products"); err != nil {
		return err
	}

	switch {
	case s.cfg.Shipments == 0:
		return nil
	case len(s.companyIDs) == 0:
		return errors.New("no companies to assign shipments to")
	case len(s.warehouseIDs) < 2:
		return errors.Newf("need two warehouses per shipment, found %d", len(s.warehouseIDs))
	case len(s.productIDs) == 0:
		return errors.New("no products to ship")
	}
	return nil
}

func (s *seeder) pick(ids []int64) int64 {
	return ids[s.faker.Rand.Intn(len(ids))]
}

func (s *seeder) newShipment() shipment {
	sh := shipment{companyID: s.pick(s.companyIDs)}

	w := s.faker.Rand.Perm(len(s.warehouseIDs))
	sh.origin, sh.destination = s.warehouseIDs[w[0]], s.warehouseIDs[w[1]]
	sh.createdAt = s.faker.DateRange(s.now.Add(-s.cfg.Window), s.now).UTC().Truncate(time.Second)

	nItems := s.faker.Number(1, min(s.cfg.MaxItems, len(s.productIDs)))
	for _, p := range s.faker.Rand.Perm(len(s.productIDs))[:nItems] {
		sh.products = append(sh.products, s.productIDs[p])
		sh.quantities = append(sh.quantities, s.faker.Number(1, 100))
	}

	at := sh.createdAt
	for i, n := 0, s.faker.Number(s.cfg.MinHistory, s.cfg.MaxHistory); i < n; i++ {
		at = at.Add(time.Duration(s.faker.Number(1, 48)) * time.Hour)
		status := s.cfg.HistoryStatuses[s.faker.Rand.Intn(len(s.cfg.HistoryStatuses))]
		sh.history = append(sh.history, update{status: status, at: at})
	}
	return sh
}

// Inserts n shipments, each returning its own id, then their items and
// updates, all in one transaction.
func (s *seeder) batch(ctx context.Context, n int) (items int, updates int, err error) {
	shipments := make([]shipment, n)
	for i := range shipments {
		shipments[i] = s.newShipment()
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		itemRows, updateRows := [][]any{}, [][]any{}
		for _, sh := range shipments {
			last := sh.history[len(sh.history)-1]
			id, err := s.d.InsertID(ctx, tx, "shipments", shipmentColumns, "shipment_id",
				[]any{sh.companyID, sh.origin, sh.destination, sh.createdAt, last.status, last.at})
			if err != nil {
				return err
			}
			for j, p := range sh.products {
				itemRows = append(itemRows, []any{id, p, sh.quantities[j]})
			}
			for _, u := range sh.history {
				updateRows = append(updateRows, []any{id, u.status, s.note, u.at})
			}
		}

		if err := s.d.BulkInsert(ctx, tx, "shipment_items", itemColumns, itemRows); err != nil {
			return err
		}
		if err := s.d.BulkInsert(ctx, tx, "shipment_updates", updateColumns, updateRows); err != nil {
			return err
		}
		items, updates = len(itemRows), len(updateRows)
		return nil
	})
	return items, updates, err
}

func (s *seeder) inTx(ctx context.Context, f func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			err = errors.CombineErrors(err, tx.Rollback())
		}
	}()

	if err = f(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}
