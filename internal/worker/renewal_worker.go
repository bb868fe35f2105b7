// Package worker runs renewals in the background: it consumes installment
// paid events and sweeps every group on a cron schedule to recover events
// that were lost while the worker was down.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"escola/internal/amqp"
	"escola/internal/services"
)

// Consumer delivers installment paid events until ctx is cancelled.
type Consumer interface {
	ConsumeInstallmentPaid(ctx context.Context, handler func(context.Context, *amqp.InstallmentPaidMessage) error) error
}

type RenewalWorker struct {
	processor *services.RenewalProcessor
	consumer  Consumer
	schedule  string
	logger    *slog.Logger
}

// NewRenewalWorker builds a worker. consumer may be nil, in which case only
// the scheduled sweep runs.
func NewRenewalWorker(processor *services.RenewalProcessor, consumer Consumer, schedule string, logger *slog.Logger) *RenewalWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenewalWorker{
		processor: processor,
		consumer:  consumer,
		schedule:  schedule,
		logger:    logger,
	}
}

// HandlePaid processes one event from the queue.
func (w *RenewalWorker) HandlePaid(ctx context.Context, msg *amqp.InstallmentPaidMessage) error {
	w.logger.InfoContext(ctx, "Processing installment paid message",
		"installment_id", msg.ID,
		"record_id", msg.RecordID,
		"item_type", msg.ItemType,
		"paid_at", msg.PaidAt)
	return w.processor.HandlePaid(ctx, msg)
}

// SweepNow renews every group that is due and logs the outcome.
func (w *RenewalWorker) SweepNow(ctx context.Context) (int, error) {
	start := time.Now()
	renewed, err := w.processor.Sweep(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Renewal sweep finished with errors",
			"renewed", renewed, "error", err, "duration", time.Since(start))
		return renewed, err
	}
	w.logger.InfoContext(ctx, "Renewal sweep finished",
		"renewed", renewed, "duration", time.Since(start))
	return renewed, nil
}

// Run sweeps once at startup, then consumes events and sweeps on schedule
// until ctx is cancelled.
func (w *RenewalWorker) Run(ctx context.Context) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(w.schedule, func() { w.SweepNow(ctx) }); err != nil {
		return fmt.Errorf("schedule renewal sweep %q: %w", w.schedule, err)
	}

	w.logger.InfoContext(ctx, "Running startup renewal sweep")
	w.SweepNow(ctx)

	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
		w.logger.Info("Renewal scheduler stopped")
	}()

	if w.consumer == nil {
		w.logger.InfoContext(ctx, "No consumer configured, relying on scheduled sweeps", "schedule", w.schedule)
		<-ctx.Done()
		return nil
	}

	err := w.consumer.ConsumeInstallmentPaid(ctx, w.HandlePaid)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
