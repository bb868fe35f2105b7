package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"escola/internal/amqp"
	"escola/internal/core"
	"escola/internal/storage"
)

// RecordInvalidator drops cached views after the processor writes.
type RecordInvalidator interface {
	InvalidateRecord(recordID string)
}

// RenewalProcessor appends the next installment to a type-group once its
// last installment is paid.
type RenewalProcessor struct {
	store       storage.Store
	invalidator RecordInvalidator
	concurrency int
}

func NewRenewalProcessor(store storage.Store, invalidator RecordInvalidator, concurrency int) *RenewalProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RenewalProcessor{
		store:       store,
		invalidator: invalidator,
		concurrency: concurrency,
	}
}

// HandlePaid renews the group of a paid installment when that installment is
// the last one of its group.
func (p *RenewalProcessor) HandlePaid(ctx context.Context, msg *amqp.InstallmentPaidMessage) error {
	group, err := p.store.ListGroup(ctx, msg.Key())
	if err != nil {
		return fmt.Errorf("load group %s: %w", msg.Key(), err)
	}
	if len(group) == 0 || group[len(group)-1].ID != core.InstallmentID(msg.ID) {
		slog.DebugContext(ctx, "Paid installment is not the last of its group, nothing to renew",
			"installment_id", msg.ID,
			"record_id", msg.RecordID,
			"item_type", msg.ItemType)
		return nil
	}
	_, err = p.renew(ctx, group)
	return err
}

// RenewGroup renews one group if its last installment is paid. It reports
// whether a new installment was created.
func (p *RenewalProcessor) RenewGroup(ctx context.Context, key core.GroupKey) (bool, error) {
	group, err := p.store.ListGroup(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load group %s: %w", key, err)
	}
	return p.renew(ctx, group)
}

// renew expects group ordered by due date then id.
func (p *RenewalProcessor) renew(ctx context.Context, group []core.Installment) (bool, error) {
	if len(group) == 0 {
		return false, nil
	}
	last := group[len(group)-1]
	if !core.AwaitingRenewal(last) {
		return false, nil
	}

	anchor, _ := core.Anchor(group)
	due, err := core.NextDueDateChecked(anchor, last.DueDate)
	if err != nil {
		return false, fmt.Errorf("renew group %s: %w", core.KeyOf(last), err)
	}
	next := core.Installment{
		RecordID:    last.RecordID,
		ItemType:    last.ItemType,
		DueDate:     due,
		Amount:      last.Amount,
		Status:      core.StatusPending,
		Description: last.Description,
	}

	created, ok, err := p.store.AppendToGroup(ctx, next)
	if err != nil {
		return false, fmt.Errorf("renew group %s: %w", core.KeyOf(last), err)
	}
	if !ok {
		slog.InfoContext(ctx, "Group already renewed, skipping",
			"record_id", last.RecordID,
			"item_type", last.ItemType,
			"due_date", next.DueDate.String())
		return false, nil
	}

	if p.invalidator != nil {
		p.invalidator.InvalidateRecord(created.RecordID)
	}
	slog.InfoContext(ctx, "Installment renewed",
		"installment_id", created.ID,
		"record_id", created.RecordID,
		"item_type", created.ItemType,
		"anchor", anchor.String(),
		"due_date", created.DueDate.String(),
		"amount_cents", created.Amount.Cents)
	return true, nil
}

// Sweep renews every group whose last installment is paid. Groups are
// processed concurrently; a failing group does not stop the others.
func (p *RenewalProcessor) Sweep(ctx context.Context) (int, error) {
	keys, err := p.store.ListGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}

	slog.InfoContext(ctx, "Starting renewal sweep", "groups", len(keys), "concurrency", p.concurrency)

	var (
		renewed int64
		mu      sync.Mutex
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, key := range keys {
		if !key.ItemType.Renewable() {
			continue
		}
		key := key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := p.RenewGroup(gctx, key)
			if err != nil {
				slog.ErrorContext(gctx, "Failed to renew group", "group", key.String(), "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			if ok {
				atomic.AddInt64(&renewed, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(renewed), err
	}

	slog.InfoContext(ctx, "Renewal sweep completed", "renewed", renewed, "failed", len(errs))
	return int(renewed), errors.Join(errs...)
}

// InlineRenewal satisfies EventPublisher by renewing in-process. Used when
// no AMQP broker is configured.
type InlineRenewal struct {
	Processor *RenewalProcessor
}

func (r InlineRenewal) PublishInstallmentPaid(ctx context.Context, msg *amqp.InstallmentPaidMessage) error {
	return r.Processor.HandlePaid(ctx, msg)
}
