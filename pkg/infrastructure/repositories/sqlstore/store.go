// Package sqlstore persists press runs, batches and compositions through
// database/sql. The same queries serve SQLite (modernc.org/sqlite) and
// Postgres (pgx); the dialect decides placeholders and row locking.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
)

const timeLayout = time.RFC3339Nano

var sqlOpen = sql.Open

// Store is a database/sql backed allocation store
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Verify interface compliance
var (
	_ repositories.AllocationStore = (*Store)(nil)
	_ repositories.BatchReader     = (*Store)(nil)
	_ repositories.Seeder          = (*Store)(nil)
)

// Open connects to the database and ensures the schema exists
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn cannot be empty", dialect.Name)
	}
	db, err := sqlOpen(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dialect.MaxOpenConns)
	}
	s, err := New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool and ensures the schema exists
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("execute ddl: %w", err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close releases the connection pool
func (s *Store) Close() error { return s.db.Close() }

// RunInTransaction runs fn inside a database transaction, committing only if
// fn succeeds. Cancelling ctx rolls the transaction back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.AllocationTx) error) (retErr error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(ctx, &transaction{tx: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Seed upserts upstream records in one transaction
func (s *Store) Seed(ctx context.Context, data repositories.SeedData) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	exec := func(query string, args ...any) error {
		_, err := tx.ExecContext(ctx, s.dialect.Rebind(query), args...)
		return err
	}

	for _, pr := range data.PressRuns {
		if err := exec(`INSERT INTO press_runs (id, total_juice_volume, pressed_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET total_juice_volume = excluded.total_juice_volume, pressed_at = excluded.pressed_at`,
			pr.ID, pr.TotalJuiceVolume.String(), pr.PressedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("seed press run %s: %w", pr.ID, err)
		}
	}
	for _, v := range data.Vessels {
		if err := exec(`INSERT INTO vessels (id, name, capacity) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, capacity = excluded.capacity`,
			v.ID, v.Name, v.Capacity.String()); err != nil {
			return fmt.Errorf("seed vessel %s: %w", v.ID, err)
		}
	}
	for _, line := range data.PurchaseLines {
		purchaseID := line.PurchaseID
		if purchaseID == "" {
			purchaseID = line.ID
		}
		if err := exec(`INSERT INTO vendors (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`, line.VendorID, line.VendorName); err != nil {
			return fmt.Errorf("seed vendor %s: %w", line.VendorID, err)
		}
		if err := exec(`INSERT INTO varieties (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`, line.VarietyID, line.VarietyName); err != nil {
			return fmt.Errorf("seed variety %s: %w", line.VarietyID, err)
		}
		if err := exec(`INSERT INTO purchases (id, vendor_id) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET vendor_id = excluded.vendor_id`, purchaseID, line.VendorID); err != nil {
			return fmt.Errorf("seed purchase %s: %w", purchaseID, err)
		}
		if err := exec(`INSERT INTO purchase_lines (id, purchase_id, variety_id, lot_code, input_weight, unit_cost, total_cost, measured_sugar_percent)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET purchase_id = excluded.purchase_id, variety_id = excluded.variety_id,
				lot_code = excluded.lot_code, input_weight = excluded.input_weight, unit_cost = excluded.unit_cost,
				total_cost = excluded.total_cost, measured_sugar_percent = excluded.measured_sugar_percent`,
			line.ID, purchaseID, line.VarietyID, nullString(line.LotCode), line.InputWeight.String(),
			line.UnitCost.String(), line.TotalCost.String(), nullDecimal(line.MeasuredSugarPercent)); err != nil {
			return fmt.Errorf("seed purchase line %s: %w", line.ID, err)
		}
	}
	for _, pl := range data.PressLines {
		if err := exec(`INSERT INTO press_lines (press_run_id, purchase_line_id, ordinal) VALUES (?, ?, ?)
			ON CONFLICT (press_run_id, purchase_line_id) DO UPDATE SET ordinal = excluded.ordinal`,
			pl.PressRunID, pl.PurchaseLineID, pl.Position); err != nil {
			return fmt.Errorf("seed press line %s/%s: %w", pl.PressRunID, pl.PurchaseLineID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// BatchesForPressRun returns committed batches created from a press run, in creation order
func (s *Store) BatchesForPressRun(ctx context.Context, pressRunID string) ([]*entities.Batch, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`SELECT id, vessel_id, name, batch_number, initial_volume,
		current_volume, status, start_date, origin_press_run_id
		FROM batches WHERE origin_press_run_id = ? ORDER BY ordinal`), pressRunID)
	if err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []*entities.Batch
	for rows.Next() {
		var (
			b                   entities.Batch
			status, startedText string
		)
		if err := rows.Scan(&b.ID, &b.VesselID, &b.Name, &b.BatchNumber, &b.InitialVolume,
			&b.CurrentVolume, &status, &startedText, &b.OriginPressRunID); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if b.Status, err = entities.ParseBatchStatus(status); err != nil {
			return nil, err
		}
		if b.StartDate, err = time.Parse(timeLayout, startedText); err != nil {
			return nil, fmt.Errorf("parse start_date of batch %s: %w", b.ID, err)
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

// CompositionsForBatch returns the committed composition rows of a batch
func (s *Store) CompositionsForBatch(ctx context.Context, batchID string) ([]*entities.BatchComposition, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`SELECT c.id, c.batch_id, c.purchase_line_id, c.vendor_id,
		c.variety_id, COALESCE(v.name, ''), c.lot_code, c.input_weight, c.juice_volume, c.fraction_of_batch,
		c.material_cost, c.avg_sugar_percent, c.estimated_sugar_mass
		FROM batch_compositions c
		LEFT JOIN varieties v ON v.id = c.variety_id
		WHERE c.batch_id = ? ORDER BY c.ordinal`), batchID)
	if err != nil {
		return nil, fmt.Errorf("select compositions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entities.BatchComposition
	for rows.Next() {
		var (
			c          entities.BatchComposition
			lot        sql.NullString
			sugar, est decimal.NullDecimal
		)
		if err := rows.Scan(&c.ID, &c.BatchID, &c.PurchaseLineID, &c.VendorID, &c.VarietyID, &c.VarietyName,
			&lot, &c.InputWeight, &c.JuiceVolume, &c.FractionOfBatch, &c.MaterialCost, &sugar, &est); err != nil {
			return nil, fmt.Errorf("scan composition: %w", err)
		}
		c.LotCode = stringPtr(lot)
		c.AvgSugarPercent = decimalPtr(sugar)
		c.EstimatedSugarMass = decimalPtr(est)
		out = append(out, &c)
	}
	return out, rows.Err()
}

type transaction struct {
	tx      *sql.Tx
	dialect Dialect
	batches int
}

func (t *transaction) GetPressRun(ctx context.Context, id string) (*entities.PressRun, error) {
	var (
		pr         entities.PressRun
		pressedRaw string
	)
	query := `SELECT id, total_juice_volume, pressed_at FROM press_runs WHERE id = ?` + t.dialect.LockClause
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), id).Scan(&pr.ID, &pr.TotalJuiceVolume, &pressedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("press run %s: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select press run %s: %w", id, err)
	}
	if pr.PressedAt, err = time.Parse(timeLayout, pressedRaw); err != nil {
		return nil, fmt.Errorf("parse pressed_at of press run %s: %w", id, err)
	}
	return &pr, nil
}

func (t *transaction) CountBatchesForPressRun(ctx context.Context, pressRunID string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(`SELECT COUNT(*) FROM batches WHERE origin_press_run_id = ?`),
		pressRunID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count batches for press run %s: %w", pressRunID, err)
	}
	return count, nil
}

func (t *transaction) GetVessel(ctx context.Context, id string) (*entities.Vessel, error) {
	var v entities.Vessel
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(`SELECT id, name, capacity FROM vessels WHERE id = ?`), id).
		Scan(&v.ID, &v.Name, &v.Capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vessel %s: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select vessel %s: %w", id, err)
	}
	return &v, nil
}

func (t *transaction) ListPurchaseLines(ctx context.Context, pressRunID string) ([]*entities.PurchaseLine, error) {
	rows, err := t.tx.QueryContext(ctx, t.dialect.Rebind(`SELECT pl.id, p.id, vd.id, vd.name, vr.id, vr.name,
		pl.lot_code, pl.input_weight, pl.unit_cost, pl.total_cost, pl.measured_sugar_percent
		FROM press_lines pr
		JOIN purchase_lines pl ON pl.id = pr.purchase_line_id
		JOIN purchases p ON p.id = pl.purchase_id
		JOIN vendors vd ON vd.id = p.vendor_id
		JOIN varieties vr ON vr.id = pl.variety_id
		WHERE pr.press_run_id = ?
		ORDER BY pr.ordinal, pl.id`), pressRunID)
	if err != nil {
		return nil, fmt.Errorf("select purchase lines for press run %s: %w", pressRunID, err)
	}
	defer func() { _ = rows.Close() }()

	var lines []*entities.PurchaseLine
	for rows.Next() {
		var (
			l     entities.PurchaseLine
			lot   sql.NullString
			sugar decimal.NullDecimal
		)
		if err := rows.Scan(&l.ID, &l.PurchaseID, &l.VendorID, &l.VendorName, &l.VarietyID, &l.VarietyName,
			&lot, &l.InputWeight, &l.UnitCost, &l.TotalCost, &sugar); err != nil {
			return nil, fmt.Errorf("scan purchase line: %w", err)
		}
		l.LotCode = stringPtr(lot)
		l.MeasuredSugarPercent = decimalPtr(sugar)
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

func (t *transaction) ClaimPressRun(ctx context.Context, claim entities.PressRunAllocation) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.Rebind(`INSERT INTO press_run_allocations (press_run_id, allocated_at, batch_count)
		VALUES (?, ?, ?)`), claim.PressRunID, claim.AllocatedAt.UTC().Format(timeLayout), claim.BatchCount)
	if isUniqueViolation(err) {
		return fmt.Errorf("press run %s: %w", claim.PressRunID, repositories.ErrAlreadyAllocated)
	}
	if err != nil {
		return fmt.Errorf("insert press run allocation %s: %w", claim.PressRunID, err)
	}
	return nil
}

func (t *transaction) InsertBatch(ctx context.Context, b *entities.Batch) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.Rebind(`INSERT INTO batches (id, vessel_id, name, batch_number,
		initial_volume, current_volume, status, start_date, origin_press_run_id, ordinal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		b.ID, b.VesselID, b.Name, b.BatchNumber, b.InitialVolume.String(), b.CurrentVolume.String(),
		b.Status.String(), b.StartDate.UTC().Format(timeLayout), b.OriginPressRunID, t.batches)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", b.ID, err)
	}
	t.batches++
	return nil
}

func (t *transaction) InsertCompositions(ctx context.Context, rows []*entities.BatchComposition) error {
	stmt, err := t.tx.PrepareContext(ctx, t.dialect.Rebind(`INSERT INTO batch_compositions (id, batch_id,
		purchase_line_id, vendor_id, variety_id, lot_code, input_weight, juice_volume, fraction_of_batch,
		material_cost, avg_sugar_percent, estimated_sugar_mass, ordinal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare composition insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range rows {
		if _, err := stmt.ExecContext(ctx, c.ID, c.BatchID, c.PurchaseLineID, c.VendorID, c.VarietyID,
			nullString(c.LotCode), c.InputWeight.String(), c.JuiceVolume.String(), c.FractionOfBatch.String(),
			c.MaterialCost.String(), nullDecimal(c.AvgSugarPercent), nullDecimal(c.EstimatedSugarMass), i); err != nil {
			return fmt.Errorf("insert composition %s: %w", c.ID, err)
		}
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
