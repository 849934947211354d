package dialect

import "fmt"

// column types that differ between dialects
type columnTypes struct {
	serial      string // auto-increment primary key
	datetime    string
	inlineIndex bool // mysql has no CREATE INDEX IF NOT EXISTS
}

const updatesIndex = "idx_updates_shipment_ts"

func schemaStatements(t columnTypes) []string {
	updatesIndexInline := ""
	if t.inlineIndex {
		updatesIndexInline = fmt.Sprintf(",\n\t\t\tKEY %s (shipment_id, timestamp)", updatesIndex)
	}

	stmts := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS companies (
			company_id %s,
			company_name VARCHAR(100) NOT NULL
		)`, t.serial),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS warehouses (
			warehouse_id %s,
			warehouse_name VARCHAR(100) NOT NULL,
			address VARCHAR(255)
		)`, t.serial),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS products (
			product_id %s,
			product_name VARCHAR(100) NOT NULL
		)`, t.serial),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS shipments (
			shipment_id %s,
			company_id INT NOT NULL,
			origin_warehouse_id INT NOT NULL,
			destination_warehouse_id INT NOT NULL,
			created_at %s NOT NULL,
			current_status VARCHAR(50),
			last_updated_at %s,
			FOREIGN KEY (company_id) REFERENCES companies (company_id),
			FOREIGN KEY (origin_warehouse_id) REFERENCES warehouses (warehouse_id),
			FOREIGN KEY (destination_warehouse_id) REFERENCES warehouses (warehouse_id)
		)`, t.serial, t.datetime, t.datetime),
		`
		CREATE TABLE IF NOT EXISTS shipment_items (
			shipment_id INT NOT NULL,
			product_id INT NOT NULL,
			quantity INT NOT NULL,
			PRIMARY KEY (shipment_id, product_id),
			FOREIGN KEY (shipment_id) REFERENCES shipments (shipment_id),
			FOREIGN KEY (product_id) REFERENCES products (product_id)
		)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS shipment_updates (
			update_id %s,
			shipment_id INT NOT NULL,
			status_code VARCHAR(50) NOT NULL,
			notes VARCHAR(255),
			timestamp %s NOT NULL,
			FOREIGN KEY (shipment_id) REFERENCES shipments (shipment_id)%s
		)`, t.serial, t.datetime, updatesIndexInline),
	}

	if !t.inlineIndex {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON shipment_updates (shipment_id, timestamp)", updatesIndex))
	}

	return stmts
}
