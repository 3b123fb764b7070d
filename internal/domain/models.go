/**
 * @description
 * Domain models for subscription billing: plans, subscriptions and invoices.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus enumerates the lifecycle states of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// InvoiceStatus enumerates the lifecycle states of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoicePaid    InvoiceStatus = "paid"
)

// Plan is an immutable catalog entry. The billing engine reads plans but
// never writes them.
type Plan struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Description    string          `json:"description,omitempty"`
	DurationMonths int             `json:"duration_months"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Subscription ties a user to a plan for a date window. EndDate is always
// StartDate plus the plan duration.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	PlanID    string             `json:"plan_id"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	Status    SubscriptionStatus `json:"status"`
}

// Invoice is one billing cycle's charge. Amount is copied from the plan
// price at issue time, so later price changes only apply at renewal.
type Invoice struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	SubscriptionID     string          `json:"subscription_id"`
	PlanID             string          `json:"plan_id"`
	Amount             decimal.Decimal `json:"amount"`
	IssueDate          time.Time       `json:"issue_date"`
	DueDate            time.Time       `json:"due_date"`
	Status             InvoiceStatus   `json:"status"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	BillingPeriodStart time.Time       `json:"billing_period_start"`
	BillingPeriodEnd   time.Time       `json:"billing_period_end"`
	GatewayOrderID     *string         `json:"gateway_order_id,omitempty"`
}

// OverdueReminder is the payload published for each overdue invoice on an
// active subscription during a reminder sweep.
type OverdueReminder struct {
	UserEmail      string    `json:"user_email"`
	SubscriptionID string    `json:"subscription_id"`
	InvoiceID      string    `json:"invoice_id"`
	DueDate        time.Time `json:"due_date"`
	Timestamp      time.Time `json:"timestamp"`
}

// ReminderTarget is an overdue invoice on a still-active subscription,
// joined with the owning user's email for notification delivery.
type ReminderTarget struct {
	InvoiceID      string
	SubscriptionID string
	UserID         string
	UserEmail      string
	DueDate        time.Time
}
