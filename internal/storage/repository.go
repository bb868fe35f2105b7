package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"escola/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps sqlite from returning SQLITE_BUSY under concurrent renewals.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const installmentColumns = `id, record_id, item_type, due_date, amount_cents, status, paid_at, description`

const (
	insertInstallment = `
INSERT INTO installments (record_id, item_type, due_date, amount_cents, status, paid_at, description)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + installmentColumns

	appendInstallment = `
INSERT INTO installments (record_id, item_type, due_date, amount_cents, status, paid_at, description)
SELECT ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (
    SELECT 1 FROM installments WHERE record_id = ? AND item_type = ? AND due_date >= ?
)
RETURNING ` + installmentColumns

	getInstallment = `SELECT ` + installmentColumns + ` FROM installments WHERE id = ?`

	listByRecord = `SELECT ` + installmentColumns + ` FROM installments
WHERE record_id = ? ORDER BY item_type, due_date, id`

	listGroup = `SELECT ` + installmentColumns + ` FROM installments
WHERE record_id = ? AND item_type = ? ORDER BY due_date, id`

	listGroups = `SELECT DISTINCT record_id, item_type FROM installments ORDER BY record_id, item_type`

	markPaid = `
UPDATE installments SET status = 'pago', paid_at = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = 'pendente'
RETURNING ` + installmentColumns
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstallment(row rowScanner) (core.Installment, error) {
	var (
		inst     core.Installment
		id       int64
		itemType string
		status   string
		paidAt   core.Date
	)
	if err := row.Scan(&id, &inst.RecordID, &itemType, &inst.DueDate, &inst.Amount.Cents, &status, &paidAt, &inst.Description); err != nil {
		return core.Installment{}, err
	}
	inst.ID = core.InstallmentID(id)
	inst.ItemType = core.ItemType(itemType)
	inst.Status = core.PaymentStatus(status)
	if !paidAt.IsZero() {
		inst.PaidAt = &paidAt
	}
	return inst, nil
}

func insertArgs(inst core.Installment) []any {
	status := inst.Status
	if status == "" {
		status = core.StatusPending
	}
	var paidAt any
	if inst.PaidAt != nil {
		paidAt = inst.PaidAt.String()
	}
	return []any{inst.RecordID, string(inst.ItemType), inst.DueDate.String(), inst.Amount.Cents, string(status), paidAt, inst.Description}
}

// Create inserts a new installment and returns it with its assigned id.
func (r *SQLiteRepository) Create(ctx context.Context, inst core.Installment) (core.Installment, error) {
	created, err := scanInstallment(r.db.QueryRowContext(ctx, insertInstallment, insertArgs(inst)...))
	if err != nil {
		return core.Installment{}, fmt.Errorf("create installment: %w", err)
	}

	slog.InfoContext(ctx, "Installment saved to SQLite",
		"id", created.ID,
		"record_id", created.RecordID,
		"item_type", created.ItemType,
		"due_date", created.DueDate.String(),
		"amount_cents", created.Amount.Cents)

	return created, nil
}

// CreateMany inserts the batch in one transaction.
func (r *SQLiteRepository) CreateMany(ctx context.Context, insts []core.Installment) ([]core.Installment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertInstallment)
	if err != nil {
		return nil, fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	created := make([]core.Installment, 0, len(insts))
	for i, inst := range insts {
		saved, err := scanInstallment(stmt.QueryRowContext(ctx, insertArgs(inst)...))
		if err != nil {
			return nil, fmt.Errorf("create installment %d of %d: %w", i+1, len(insts), err)
		}
		created = append(created, saved)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Installment batch saved to SQLite", "count", len(created))
	return created, nil
}

func (r *SQLiteRepository) AppendToGroup(ctx context.Context, inst core.Installment) (core.Installment, bool, error) {
	args := append(insertArgs(inst), inst.RecordID, string(inst.ItemType), inst.DueDate.String())
	created, err := scanInstallment(r.db.QueryRowContext(ctx, appendInstallment, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Installment{}, false, nil
	}
	if err != nil {
		return core.Installment{}, false, fmt.Errorf("append installment to %s: %w", core.KeyOf(inst), err)
	}
	return created, true, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id core.InstallmentID) (core.Installment, error) {
	inst, err := scanInstallment(r.db.QueryRowContext(ctx, getInstallment, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Installment{}, fmt.Errorf("get installment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Installment{}, fmt.Errorf("get installment %d: %w", id, err)
	}
	return inst, nil
}

func (r *SQLiteRepository) ListByRecord(ctx context.Context, recordID string) ([]core.Installment, error) {
	list, err := r.query(ctx, listByRecord, recordID)
	if err != nil {
		return nil, fmt.Errorf("list installments of record %s: %w", recordID, err)
	}
	return list, nil
}

func (r *SQLiteRepository) ListGroup(ctx context.Context, key core.GroupKey) ([]core.Installment, error) {
	list, err := r.query(ctx, listGroup, key.RecordID, string(key.ItemType))
	if err != nil {
		return nil, fmt.Errorf("list group %s: %w", key, err)
	}
	return list, nil
}

func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]core.GroupKey, error) {
	rows, err := r.db.QueryContext(ctx, listGroups)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var keys []core.GroupKey
	for rows.Next() {
		var (
			key      core.GroupKey
			itemType string
		)
		if err := rows.Scan(&key.RecordID, &itemType); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		key.ItemType = core.ItemType(itemType)
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *SQLiteRepository) MarkPaid(ctx context.Context, id core.InstallmentID, on core.Date) (core.Installment, error) {
	inst, err := scanInstallment(r.db.QueryRowContext(ctx, markPaid, on.String(), int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		// Either missing or already paid; Get tells which.
		existing, getErr := r.Get(ctx, id)
		if getErr != nil {
			return core.Installment{}, getErr
		}
		return existing, fmt.Errorf("mark installment %d paid: %w", id, core.ErrAlreadyPaid)
	}
	if err != nil {
		return core.Installment{}, fmt.Errorf("mark installment %d paid: %w", id, err)
	}

	slog.InfoContext(ctx, "Installment marked as paid", "id", id, "paid_at", on.String())
	return inst, nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]core.Installment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []core.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		list = append(list, inst)
	}
	return list, rows.Err()
}
