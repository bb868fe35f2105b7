package storage

import (
	"context"
	"errors"

	"escola/internal/core"
)

var ErrNotFound = errors.New("installment not found")

// Store is the persistence port for installments. Both the sqlite repository
// and the in-memory store implement it.
type Store interface {
	Create(ctx context.Context, inst core.Installment) (core.Installment, error)
	// CreateMany inserts every installment or none of them.
	CreateMany(ctx context.Context, insts []core.Installment) ([]core.Installment, error)
	Get(ctx context.Context, id core.InstallmentID) (core.Installment, error)
	ListByRecord(ctx context.Context, recordID string) ([]core.Installment, error)
	ListGroup(ctx context.Context, key core.GroupKey) ([]core.Installment, error)
	ListGroups(ctx context.Context) ([]core.GroupKey, error)

	// MarkPaid settles a pending installment. It fails with
	// core.ErrAlreadyPaid when the row is already paid.
	MarkPaid(ctx context.Context, id core.InstallmentID, on core.Date) (core.Installment, error)

	// AppendToGroup inserts inst unless its group already has an installment
	// due on or after inst.DueDate. The bool reports whether a row was created.
	AppendToGroup(ctx context.Context, inst core.Installment) (core.Installment, bool, error)

	Close() error
}
