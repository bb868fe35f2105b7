// Package services orchestrates installment operations across storage,
// messaging and the schedule view cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"escola/internal/amqp"
	"escola/internal/cache"
	"escola/internal/core"
	"escola/internal/storage"
)

// MaxPlanInstallments bounds a single PlanSchedule call.
const MaxPlanInstallments = 60

var ErrInvalidPlan = errors.New("invalid plan request")

// EventPublisher announces paid installments. The AMQP client implements it;
// InlineRenewal runs the renewal in-process when no broker is configured.
type EventPublisher interface {
	PublishInstallmentPaid(ctx context.Context, msg *amqp.InstallmentPaidMessage) error
}

// ScheduleRow is one installment of a record with its position in its
// type-group.
type ScheduleRow struct {
	core.Installment
	Sequence  int  `json:"sequence"`
	GroupSize int  `json:"group_size"`
	Last      bool `json:"last"`
}

// RecordSchedule is the full view of a financial record.
type RecordSchedule struct {
	RecordID string             `json:"record_id"`
	Rows     []ScheduleRow      `json:"installments"`
	Summary  core.RecordSummary `json:"summary"`
}

// PlanRequest describes count monthly installments anchored at FirstDueDate.
type PlanRequest struct {
	RecordID     string        `json:"record_id"`
	ItemType     core.ItemType `json:"item_type"`
	FirstDueDate core.Date     `json:"first_due_date"`
	Count        int           `json:"count"`
	Amount       core.Money    `json:"amount"`
	Description  string        `json:"description"`
}

// InstallmentService owns installment writes and the cached record views.
type InstallmentService struct {
	store     storage.Store
	publisher EventPublisher
	views     *cache.LRUCache[string, RecordSchedule]
	today     func() core.Date
}

// NewInstallmentService wires the service. publisher and views may be nil.
func NewInstallmentService(store storage.Store, publisher EventPublisher, views *cache.LRUCache[string, RecordSchedule]) *InstallmentService {
	return &InstallmentService{
		store:     store,
		publisher: publisher,
		views:     views,
		today:     core.Today,
	}
}

// SetPublisher replaces the event publisher. Used to break the construction
// cycle with InlineRenewal.
func (s *InstallmentService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// Create validates and stores a new pending installment.
func (s *InstallmentService) Create(ctx context.Context, inst core.Installment) (core.Installment, error) {
	inst.ID = 0
	inst.Status = core.StatusPending
	inst.PaidAt = nil
	if err := inst.Validate(); err != nil {
		return core.Installment{}, err
	}

	created, err := s.store.Create(ctx, inst)
	if err != nil {
		return core.Installment{}, fmt.Errorf("save installment: %w", err)
	}
	s.InvalidateRecord(created.RecordID)
	return created, nil
}

func (s *InstallmentService) Get(ctx context.Context, id core.InstallmentID) (core.Installment, error) {
	return s.store.Get(ctx, id)
}

// Pay marks an installment paid on the given date (today when zero) and
// publishes the paid event. A publish failure does not undo the payment;
// the renewal sweep picks the group up later.
func (s *InstallmentService) Pay(ctx context.Context, id core.InstallmentID, on core.Date) (core.Installment, error) {
	if on.IsZero() {
		on = s.today()
	} else if err := on.Validate(); err != nil {
		return core.Installment{}, fmt.Errorf("paid on: %w", err)
	}

	paid, err := s.store.MarkPaid(ctx, id, on)
	if err != nil {
		return core.Installment{}, err
	}
	s.InvalidateRecord(paid.RecordID)

	slog.InfoContext(ctx, "Installment paid",
		"installment_id", paid.ID,
		"record_id", paid.RecordID,
		"item_type", paid.ItemType,
		"due_date", paid.DueDate.String(),
		"paid_at", on.String())

	if err := s.publishPaid(ctx, paid); err != nil {
		slog.ErrorContext(ctx, "Failed to publish installment paid message",
			"installment_id", paid.ID, "error", err)
	}
	return paid, nil
}

func (s *InstallmentService) publishPaid(ctx context.Context, inst core.Installment) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "No event publisher configured, skipping paid message")
		return nil
	}
	return s.publisher.PublishInstallmentPaid(ctx, amqp.NewInstallmentPaidMessage(inst))
}

// RecordSchedule returns every installment of a record numbered within its
// type-group. A view with a group awaiting renewal is not cached: the
// renewal may be written by another process that cannot invalidate it.
func (s *InstallmentService) RecordSchedule(ctx context.Context, recordID string) (RecordSchedule, error) {
	if s.views == nil {
		view, _, err := s.buildSchedule(ctx, recordID)
		return view, err
	}
	return s.views.Load(recordID, func() (RecordSchedule, bool, error) {
		return s.buildSchedule(ctx, recordID)
	})
}

// buildSchedule reads the record from the store and reports whether the
// view is stable enough to cache.
func (s *InstallmentService) buildSchedule(ctx context.Context, recordID string) (RecordSchedule, bool, error) {
	list, err := s.store.ListByRecord(ctx, recordID)
	if err != nil {
		return RecordSchedule{}, false, err
	}

	seq := core.SequenceNumbers(list)
	sizes := make(map[core.GroupKey]int)
	for _, inst := range list {
		sizes[core.KeyOf(inst)]++
	}

	view := RecordSchedule{
		RecordID: recordID,
		Rows:     make([]ScheduleRow, 0, len(list)),
		Summary:  core.Summarize(recordID, list),
	}
	stable := true
	for _, inst := range list {
		size := sizes[core.KeyOf(inst)]
		last := seq[inst.ID] == size
		if last && core.AwaitingRenewal(inst) {
			stable = false
		}
		view.Rows = append(view.Rows, ScheduleRow{
			Installment: inst,
			Sequence:    seq[inst.ID],
			GroupSize:   size,
			Last:        last,
		})
	}
	if !stable {
		slog.DebugContext(ctx, "Record awaits renewal, view not cached", "record_id", recordID)
	}
	return view, stable, nil
}

// PlanSchedule creates Count installments on consecutive months, all
// anchored on the day of FirstDueDate.
func (s *InstallmentService) PlanSchedule(ctx context.Context, req PlanRequest) ([]core.Installment, error) {
	if req.Count < 1 || req.Count > MaxPlanInstallments {
		return nil, fmt.Errorf("count %d must be between 1 and %d: %w", req.Count, MaxPlanInstallments, ErrInvalidPlan)
	}

	template := core.Installment{
		RecordID:    req.RecordID,
		ItemType:    req.ItemType,
		DueDate:     req.FirstDueDate,
		Amount:      req.Amount,
		Status:      core.StatusPending,
		Description: req.Description,
	}
	if err := template.Validate(); err != nil {
		return nil, err
	}
	if _, err := core.AddMonthsChecked(req.FirstDueDate, req.Count-1); err != nil {
		return nil, fmt.Errorf("last installment: %w", err)
	}

	dues := core.Schedule(req.FirstDueDate, req.Count)
	batch := make([]core.Installment, len(dues))
	for i, due := range dues {
		batch[i] = template
		batch[i].DueDate = due
	}
	created, err := s.store.CreateMany(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("plan %d installments from %s: %w", req.Count, req.FirstDueDate, err)
	}
	s.InvalidateRecord(req.RecordID)

	slog.InfoContext(ctx, "Installment plan created",
		"record_id", req.RecordID,
		"item_type", req.ItemType,
		"first_due_date", req.FirstDueDate.String(),
		"count", len(created))

	return created, nil
}

// InvalidateRecord drops the cached view of a record.
func (s *InstallmentService) InvalidateRecord(recordID string) {
	if s.views != nil {
		s.views.Delete(recordID)
	}
}

func (s *InstallmentService) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close installment service: %w", err)
		}
	}
	return nil
}
