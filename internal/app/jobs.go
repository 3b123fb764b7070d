/**
 * @description
 * Scheduled job implementations for the billing scheduler. Each job wraps
 * one engine sweep, captures the reference time once, and logs a summary.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

// Jobs contains the logic for all scheduled billing tasks.
type Jobs struct {
	service Service
	logger  *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(service Service, logger *slog.Logger) *Jobs {
	return &Jobs{service: service, logger: logger}
}

// RunGenerateInvoices runs one invoice generation sweep.
func (j *Jobs) RunGenerateInvoices() {
	j.logger.Info("starting invoice generation job")
	ctx := context.Background()

	result, err := j.service.GenerateInvoices(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Error("failed to generate invoices", "error", err)
		return
	}

	j.logger.Info("invoice generation job finished",
		"evaluated", result.Evaluated,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}

// RunMarkOverdue runs one overdue sweep.
func (j *Jobs) RunMarkOverdue() {
	j.logger.Info("starting overdue sweep job")
	ctx := context.Background()

	result, err := j.service.MarkOverdueInvoices(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Error("failed to sweep overdue invoices", "error", err)
		return
	}

	j.logger.Info("overdue sweep job finished",
		"evaluated", result.Evaluated,
		"marked_overdue", result.MarkedOverdue,
		"subscriptions_cancelled", result.SubscriptionsCancelled,
		"failed", result.Failed,
	)
}

// RunSendReminders runs one reminder dispatch sweep.
func (j *Jobs) RunSendReminders() {
	j.logger.Info("starting reminder dispatch job")
	ctx := context.Background()

	result, err := j.service.SendReminders(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Error("failed to dispatch reminders", "error", err)
		return
	}

	j.logger.Info("reminder dispatch job finished",
		"evaluated", result.Evaluated,
		"dispatched", result.Dispatched,
		"rate_limited", result.RateLimited,
		"failed", result.Failed,
	)
}
