package sqlstore

// Decimal quantities are stored as TEXT so both backends round-trip them
// exactly; timestamps are RFC 3339 text for the same reason.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS varieties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL REFERENCES vendors(id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_lines (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL REFERENCES purchases(id),
		variety_id TEXT NOT NULL REFERENCES varieties(id),
		lot_code TEXT,
		input_weight TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		measured_sugar_percent TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS press_runs (
		id TEXT PRIMARY KEY,
		total_juice_volume TEXT NOT NULL,
		pressed_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS press_lines (
		press_run_id TEXT NOT NULL REFERENCES press_runs(id),
		purchase_line_id TEXT NOT NULL REFERENCES purchase_lines(id),
		ordinal INTEGER NOT NULL,
		PRIMARY KEY (press_run_id, purchase_line_id)
	)`,
	`CREATE TABLE IF NOT EXISTS vessels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		capacity TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS press_run_allocations (
		press_run_id TEXT PRIMARY KEY REFERENCES press_runs(id),
		allocated_at TEXT NOT NULL,
		batch_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		vessel_id TEXT NOT NULL REFERENCES vessels(id),
		name TEXT NOT NULL,
		batch_number TEXT NOT NULL,
		initial_volume TEXT NOT NULL,
		current_volume TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		origin_press_run_id TEXT NOT NULL REFERENCES press_runs(id),
		ordinal INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS batches_origin_press_run_idx ON batches (origin_press_run_id)`,
	`CREATE TABLE IF NOT EXISTS batch_compositions (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL REFERENCES batches(id),
		purchase_line_id TEXT NOT NULL REFERENCES purchase_lines(id),
		vendor_id TEXT NOT NULL,
		variety_id TEXT NOT NULL,
		lot_code TEXT,
		input_weight TEXT NOT NULL,
		juice_volume TEXT NOT NULL,
		fraction_of_batch TEXT NOT NULL,
		material_cost TEXT NOT NULL,
		avg_sugar_percent TEXT,
		estimated_sugar_mass TEXT,
		ordinal INTEGER NOT NULL,
		UNIQUE (batch_id, purchase_line_id)
	)`,
}
