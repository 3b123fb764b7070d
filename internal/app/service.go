/**
 * @description
 * Core business logic for the billing service: invoice generation, overdue
 * sweeping, reminder dispatch, settlement recording and subscription
 * lifecycle. Every sweep takes its reference time as a parameter so the
 * engine stays deterministic under test.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karan-ksrk/billing-service/internal/domain"
	"github.com/karan-ksrk/billing-service/internal/store"
)

const (
	// invoiceDueAfter is how long after issue an invoice stays payable
	// before the overdue sweep picks it up.
	invoiceDueAfter = 5 * 24 * time.Hour

	// overdueGracePeriod is how long past the due date a subscription
	// survives before cascading cancellation.
	overdueGracePeriod = 7 * 24 * time.Hour

	// eventsExchange is the topic exchange all billing events go to.
	eventsExchange = "billing.events"

	reminderRateScope = "invoice_reminder"
)

var (
	ErrActiveSubscriptionExists = errors.New("user already has an active subscription")
	ErrInvoiceNotPayable        = errors.New("invoice is not payable")
	ErrOrderMismatch            = errors.New("payment order does not match invoice")
)

// Repository defines the database operations the service needs.
type Repository interface {
	ListActivePlans(ctx context.Context) ([]domain.Plan, error)
	GetPlanByID(ctx context.Context, planID string) (*domain.Plan, error)
	GetActivePlanByID(ctx context.Context, planID string) (*domain.Plan, error)

	CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	GetActiveSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
	ListSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (bool, error)

	InsertInvoice(ctx context.Context, inv *domain.Invoice) (bool, error)
	GetInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	ListInvoicesByUserID(ctx context.Context, userID string) ([]domain.Invoice, error)
	GetLatestInvoiceByUserID(ctx context.Context, userID string) (*domain.Invoice, error)
	ListUnpaidInvoicesDueBefore(ctx context.Context, now time.Time) ([]domain.Invoice, error)
	MarkInvoiceOverdue(ctx context.Context, invoiceID string) (bool, error)
	MarkInvoicePaid(ctx context.Context, invoiceID string, paidAt time.Time) (bool, error)
	SetInvoiceGatewayOrder(ctx context.Context, invoiceID, orderID string) error
	ListReminderTargets(ctx context.Context) ([]domain.ReminderTarget, error)
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// GatewayClient defines the operations against the external payment gateway.
type GatewayClient interface {
	CreateOrder(ctx context.Context, invoiceID string, amount decimal.Decimal) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// RateLimiter bounds how often a reminder fires per invoice. A nil limiter
// (or a limit of zero) disables the bound.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the billing engine's business logic.
type Service struct {
	repo           Repository
	publisher      EventPublisher
	gateway        GatewayClient
	limiter        RateLimiter
	reminderLimit  int
	reminderWindow time.Duration
}

// NewService creates a new billing service. publisher, gateway and limiter
// may be nil; the corresponding side effects are then skipped.
func NewService(repo Repository, publisher EventPublisher, gateway GatewayClient, limiter RateLimiter, reminderLimit int, reminderWindow time.Duration) Service {
	return Service{
		repo:           repo,
		publisher:      publisher,
		gateway:        gateway,
		limiter:        limiter,
		reminderLimit:  reminderLimit,
		reminderWindow: reminderWindow,
	}
}

// GenerationResult summarizes an invoice generation sweep.
type GenerationResult struct {
	Evaluated int `json:"evaluated"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// SweepResult summarizes an overdue sweep.
type SweepResult struct {
	Evaluated              int `json:"evaluated"`
	MarkedOverdue          int `json:"marked_overdue"`
	SubscriptionsCancelled int `json:"subscriptions_cancelled"`
	Failed                 int `json:"failed"`
}

// ReminderResult summarizes a reminder dispatch sweep.
type ReminderResult struct {
	Evaluated   int `json:"evaluated"`
	Dispatched  int `json:"dispatched"`
	RateLimited int `json:"rate_limited"`
	Failed      int `json:"failed"`
}

// SettlementOutcome is the result of applying a payment confirmation.
type SettlementOutcome string

const (
	OutcomePaid        SettlementOutcome = "paid"
	OutcomeAlreadyPaid SettlementOutcome = "already_paid"
	OutcomeRejected    SettlementOutcome = "rejected"
)

// GenerateInvoices runs one invoice generation sweep over all active
// subscriptions. Safe to invoke on any cadence: the per-cycle unique
// constraint turns repeated runs into no-ops.
func (s Service) GenerateInvoices(ctx context.Context, now time.Time) (*GenerationResult, error) {
	subs, err := s.repo.ListActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}

	result := &GenerationResult{Evaluated: len(subs)}
	plans := make(map[string]*domain.Plan)

	for _, sub := range subs {
		plan, ok := plans[sub.PlanID]
		if !ok {
			plan, err = s.repo.GetPlanByID(ctx, sub.PlanID)
			if err != nil {
				log.Printf("WARN: skipping subscription %s, plan %s lookup failed: %v", sub.ID, sub.PlanID, err)
				result.Failed++
				continue
			}
			plans[sub.PlanID] = plan
		}

		cycle, inWindow := CurrentCycle(sub.StartDate, sub.EndDate, plan.DurationMonths, now)
		if !inWindow || !cycle.AtBoundary {
			result.Skipped++
			continue
		}

		inv := &domain.Invoice{
			ID:                 uuid.New().String(),
			UserID:             sub.UserID,
			SubscriptionID:     sub.ID,
			PlanID:             plan.ID,
			Amount:             plan.Price,
			IssueDate:          now,
			DueDate:            now.Add(invoiceDueAfter),
			Status:             domain.InvoiceUnpaid,
			BillingPeriodStart: cycle.Start,
			BillingPeriodEnd:   cycle.End,
		}

		created, err := s.repo.InsertInvoice(ctx, inv)
		if err != nil {
			log.Printf("WARN: failed to create invoice for subscription %s cycle %s: %v", sub.ID, cycle.Start.Format("2006-01-02"), err)
			result.Failed++
			continue
		}
		if !created {
			// Invoice for this cycle already exists; the existing row wins.
			result.Skipped++
			continue
		}

		result.Created++
		s.publishInvoiceEvent(ctx, "invoice.created", inv)
	}

	return result, nil
}

// MarkOverdueInvoices runs one overdue sweep: unpaid invoices past their due
// date become overdue, and subscriptions whose invoice is more than the
// grace period past due are cancelled. Each record is processed
// independently; one failure never aborts the batch.
func (s Service) MarkOverdueInvoices(ctx context.Context, now time.Time) (*SweepResult, error) {
	invoices, err := s.repo.ListUnpaidInvoicesDueBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}

	result := &SweepResult{Evaluated: len(invoices)}
	for _, inv := range invoices {
		transitioned, err := s.repo.MarkInvoiceOverdue(ctx, inv.ID)
		if err != nil {
			log.Printf("WARN: failed to mark invoice %s overdue: %v", inv.ID, err)
			result.Failed++
			continue
		}
		if transitioned {
			result.MarkedOverdue++
			inv.Status = domain.InvoiceOverdue
			s.publishInvoiceEvent(ctx, "invoice.overdue", &inv)
		}

		if now.Sub(inv.DueDate) <= overdueGracePeriod {
			continue
		}

		cancelled, err := s.repo.CancelSubscription(ctx, inv.SubscriptionID)
		if err != nil {
			log.Printf("WARN: failed to cancel subscription %s for overdue invoice %s: %v", inv.SubscriptionID, inv.ID, err)
			result.Failed++
			continue
		}
		if cancelled {
			result.SubscriptionsCancelled++
			s.publishEvent(ctx, "subscription.cancelled", map[string]interface{}{
				"subscription_id": inv.SubscriptionID,
				"user_id":         inv.UserID,
				"invoice_id":      inv.ID,
				"timestamp":       now,
			})
		}
	}

	return result, nil
}

// SendReminders dispatches one notification per overdue invoice on an
// active subscription. Delivery is at-least-once per sweep; an optional
// rate limiter bounds repeats and fails open so a limiter outage can only
// produce extra reminders, never missed ones.
func (s Service) SendReminders(ctx context.Context, now time.Time) (*ReminderResult, error) {
	targets, err := s.repo.ListReminderTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminder targets: %w", err)
	}

	result := &ReminderResult{Evaluated: len(targets)}
	for _, target := range targets {
		if s.limiter != nil && s.reminderLimit > 0 {
			count, _, err := s.limiter.ConsumeRateLimit(ctx, reminderRateScope, target.InvoiceID, s.reminderLimit, s.reminderWindow)
			if err != nil {
				log.Printf("WARN: reminder rate limiter unavailable for invoice %s, sending anyway: %v", target.InvoiceID, err)
			} else if count > s.reminderLimit {
				result.RateLimited++
				continue
			}
		}

		reminder := domain.OverdueReminder{
			UserEmail:      target.UserEmail,
			SubscriptionID: target.SubscriptionID,
			InvoiceID:      target.InvoiceID,
			DueDate:        target.DueDate,
			Timestamp:      now,
		}
		if err := s.publish(ctx, "invoice.reminder", reminder); err != nil {
			log.Printf("WARN: failed to publish reminder for invoice %s: %v", target.InvoiceID, err)
			result.Failed++
			continue
		}
		result.Dispatched++
	}

	return result, nil
}

// ConfirmPayment applies an external settlement confirmation to an invoice.
// Safe to invoke more than once for the same confirmation: an already-paid
// invoice returns OutcomeAlreadyPaid with paid_at untouched.
func (s Service) ConfirmPayment(ctx context.Context, userID, invoiceID, orderID string, success bool, now time.Time) (SettlementOutcome, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return OutcomeRejected, err
	}
	if inv.UserID != userID {
		// Foreign invoices look like missing ones to the caller.
		return OutcomeRejected, store.ErrInvoiceNotFound
	}
	if orderID != "" && (inv.GatewayOrderID == nil || *inv.GatewayOrderID != orderID) {
		return OutcomeRejected, ErrOrderMismatch
	}
	if inv.Status == domain.InvoicePaid {
		return OutcomeAlreadyPaid, nil
	}
	if !success {
		return OutcomeRejected, nil
	}

	paid, err := s.repo.MarkInvoicePaid(ctx, inv.ID, now)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("mark invoice paid: %w", err)
	}
	if !paid {
		// Lost a race with another delivery of the same confirmation.
		return OutcomeAlreadyPaid, nil
	}

	inv.Status = domain.InvoicePaid
	inv.PaidAt = &now
	s.publishInvoiceEvent(ctx, "invoice.paid", inv)
	return OutcomePaid, nil
}

// CreatePaymentOrder creates an external gateway order for an unpaid or
// overdue invoice and records the order reference.
func (s Service) CreatePaymentOrder(ctx context.Context, userID, invoiceID string) (string, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	if inv.UserID != userID {
		return "", store.ErrInvoiceNotFound
	}
	if inv.Status == domain.InvoicePaid {
		return "", ErrInvoiceNotPayable
	}
	if s.gateway == nil {
		return "", errors.New("payment gateway not configured")
	}

	orderID, err := s.gateway.CreateOrder(ctx, inv.ID, inv.Amount)
	if err != nil {
		return "", fmt.Errorf("create gateway order: %w", err)
	}
	if err := s.repo.SetInvoiceGatewayOrder(ctx, inv.ID, orderID); err != nil {
		return "", fmt.Errorf("store gateway order: %w", err)
	}
	return orderID, nil
}

// VerifyPaymentRequest carries the gateway callback parameters.
type VerifyPaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// VerifyPayment checks the gateway signature for a payment and records the
// settlement. An invalid signature is a rejection, not an error.
func (s Service) VerifyPayment(ctx context.Context, userID string, req VerifyPaymentRequest, now time.Time) (SettlementOutcome, error) {
	if s.gateway == nil {
		return OutcomeRejected, errors.New("payment gateway not configured")
	}
	success := s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature)
	return s.ConfirmPayment(ctx, userID, req.InvoiceID, req.OrderID, success, now)
}

// Subscribe creates an active subscription to a purchasable plan together
// with its first invoice. A user may hold at most one active subscription.
func (s Service) Subscribe(ctx context.Context, userID, planID string, now time.Time) (*domain.Subscription, error) {
	plan, err := s.repo.GetActivePlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetActiveSubscriptionByUserID(ctx, userID); err == nil {
		return nil, ErrActiveSubscriptionExists
	} else if !errors.Is(err, store.ErrSubscriptionNotFound) {
		return nil, err
	}

	startDate := now
	endDate := addMonths(dateOf(now), plan.DurationMonths)

	sub, err := s.repo.CreateSubscription(ctx, &domain.Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		PlanID:    plan.ID,
		StartDate: startDate,
		EndDate:   endDate,
		Status:    domain.SubscriptionActive,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	inv := &domain.Invoice{
		ID:                 uuid.New().String(),
		UserID:             userID,
		SubscriptionID:     sub.ID,
		PlanID:             plan.ID,
		Amount:             plan.Price,
		IssueDate:          now,
		DueDate:            now.Add(invoiceDueAfter),
		Status:             domain.InvoiceUnpaid,
		BillingPeriodStart: dateOf(startDate),
		BillingPeriodEnd:   endDate,
	}
	if _, err := s.repo.InsertInvoice(ctx, inv); err != nil {
		log.Printf("WARN: failed to create first invoice for subscription %s: %v", sub.ID, err)
	} else {
		s.publishInvoiceEvent(ctx, "invoice.created", inv)
	}

	return sub, nil
}

// Unsubscribe cancels a user's active subscription. Cancelling an
// already-cancelled subscription is a no-op.
func (s Service) Unsubscribe(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, store.ErrSubscriptionNotFound
	}

	if _, err := s.repo.CancelSubscription(ctx, sub.ID); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	sub.Status = domain.SubscriptionCancelled
	return sub, nil
}

// ListPlans returns the purchasable plan catalog.
func (s Service) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.repo.ListActivePlans(ctx)
}

// ListSubscriptions returns the user's subscriptions.
func (s Service) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.repo.ListSubscriptionsByUserID(ctx, userID)
}

// ListInvoices returns the user's invoices.
func (s Service) ListInvoices(ctx context.Context, userID string) ([]domain.Invoice, error) {
	return s.repo.ListInvoicesByUserID(ctx, userID)
}

// LatestInvoice returns the user's most recently issued invoice.
func (s Service) LatestInvoice(ctx context.Context, userID string) (*domain.Invoice, error) {
	return s.repo.GetLatestInvoiceByUserID(ctx, userID)
}

type invoiceEvent struct {
	InvoiceID      string          `json:"invoice_id"`
	UserID         string          `json:"user_id"`
	SubscriptionID string          `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	DueDate        time.Time       `json:"due_date"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (s Service) publishInvoiceEvent(ctx context.Context, routingKey string, inv *domain.Invoice) {
	s.publishEvent(ctx, routingKey, invoiceEvent{
		InvoiceID:      inv.ID,
		UserID:         inv.UserID,
		SubscriptionID: inv.SubscriptionID,
		Amount:         inv.Amount,
		Status:         string(inv.Status),
		DueDate:        inv.DueDate,
		Timestamp:      time.Now().UTC(),
	})
}

func (s Service) publishEvent(ctx context.Context, routingKey string, body interface{}) {
	if err := s.publish(ctx, routingKey, body); err != nil {
		log.Printf("WARN: failed to publish billing event %s: %v", routingKey, err)
	}
}

func (s Service) publish(ctx context.Context, routingKey string, body interface{}) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Publish(ctx, eventsExchange, routingKey, body)
}
