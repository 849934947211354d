package denorm

import (
	"context"
	"database/sql"
	"strconv"

	dbutils "github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dbUtils"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/dialect"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/generator"
	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/util"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Compares reading the latest status of shipments from the update log against
// reading the denormalized shipments.current_status column.
type Denorm struct {
	id           int
	DialectName  string `yaml:"dialect"`
	Driver       string `yaml:"driver"`
	Limit        int    `yaml:"limit"`
	PopulateData bool   `yaml:"populate"`
	NoCache      bool   `yaml:"noCache"`
	dialect      dialect.Dialect
	seed         generator.Config
}

var initialDbSize int64

func New(id int, configData []byte) *Denorm {
	denorm := Denorm{Limit: 1000}
	util.CheckErr(yaml.Unmarshal(configData, &denorm))
	denorm.id = id
	denorm.dialect = util.Try(dialect.New(denorm.DialectName, denorm.Driver))
	if denorm.PopulateData {
		denorm.seed = util.Try(generator.ParseConfig(configData))
	}
	return &denorm
}

func (d *Denorm) log(msg string) {
	zlog.Info().Str("benchmark", "denorm").Int("id", d.id).Msg(msg)
}

func (d *Denorm) Setup(dbs []*sql.DB) {
	util.CheckErr(dbutils.CreateSchema(context.Background(), dbs[0], d.dialect))
}

// Seeds the first database when populate is set; the statistics are refreshed
// either way so all operations start from the same plan
func (d *Denorm) Populate(dbs []*sql.DB) {
	if d.PopulateData {
		d.log("Populating")
		counts := util.Try(generator.Seed(context.Background(), d.dialect, dbs[0], d.seed))
		zlog.Info().Str("benchmark", "denorm").Int("shipments", counts.Shipments).
			Int("updates", counts.Updates).Msg("Populate done")
	}

	dbutils.MaintainAllDBs(d.dialect, dbs)
	initialDbSize = dbutils.DbSize(d.dialect, dbs[0])
}

func (d *Denorm) queries() map[string]string {
	hint := ""
	if d.NoCache {
		hint = d.dialect.NoCacheHint()
	}

	return map[string]string{
		// latest update per shipment, through the (shipment_id, timestamp) index
		"normalized": `
			SELECT ` + hint + `s.shipment_id,
				(SELECT u.status_code FROM shipment_updates u
				 WHERE u.shipment_id = s.shipment_id
				 ORDER BY u.timestamp DESC LIMIT 1)
			FROM shipments s LIMIT ?`,
		// same, with the index made unusable
		"normalizedNoIndex": `
			SELECT ` + hint + `s.shipment_id,
				(SELECT u.status_code FROM shipment_updates u
				 WHERE (u.shipment_id + 0) = s.shipment_id
				 ORDER BY u.timestamp DESC LIMIT 1)
			FROM shipments s LIMIT ?`,
		"denormalized": `
			SELECT ` + hint + `s.shipment_id, s.current_status
			FROM shipments s LIMIT ?`,
	}
}

func (d *Denorm) Prepare(db *sql.DB) map[string]func() error {
	operations := map[string]func() error{}

	for name, query := range d.queries() {
		stmt := util.Try(db.Prepare(d.dialect.Rebind(query)))
		operations[name] = func() error { return d.readAll(stmt) }
	}

	return operations
}

// reads every row, as a client rendering the list would
func (d *Denorm) readAll(stmt *sql.Stmt) error {
	rows, err := stmt.Query(d.Limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	var id int64
	var status sql.NullString
	for rows.Next() {
		if err := rows.Scan(&id, &status); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (d *Denorm) GetConfigs() map[string]string {
	return map[string]string{
		"dialect":  d.dialect.Name(),
		"limit":    strconv.Itoa(d.Limit),
		"noCache":  strconv.FormatBool(d.NoCache),
		"populate": strconv.FormatBool(d.PopulateData),
	}
}

func (d *Denorm) GetMetrics(db *sql.DB) map[string]string {
	return map[string]string{
		"startSize": strconv.FormatInt(initialDbSize, 10),
		"endSize":   strconv.FormatInt(dbutils.DbSize(d.dialect, db), 10),
	}
}

func (d *Denorm) Finalize(dbs []*sql.DB) {}
