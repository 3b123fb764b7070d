/**
 * @description
 * Data access layer for the billing service. All SQL lives here; the
 * application layer only sees domain types and sentinel errors.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/karan-ksrk/billing-service/internal/domain"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Repository handles database operations for plans, subscriptions and
// invoices.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListActivePlans returns the purchasable plan catalog.
func (r *Repository) ListActivePlans(ctx context.Context) ([]domain.Plan, error) {
	query := `
		SELECT id, name, price, COALESCE(description, ''), duration_months, is_active, created_at, updated_at
		FROM plans
		WHERE is_active = TRUE
		ORDER BY price ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// GetPlanByID retrieves a plan regardless of its active flag. Renewal
// invoicing still bills subscriptions whose plan was retired from the
// catalog.
func (r *Repository) GetPlanByID(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `
		SELECT id, name, price, COALESCE(description, ''), duration_months, is_active, created_at, updated_at
		FROM plans
		WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, planID)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// GetActivePlanByID retrieves a plan only if it is still purchasable.
func (r *Repository) GetActivePlanByID(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `
		SELECT id, name, price, COALESCE(description, ''), duration_months, is_active, created_at, updated_at
		FROM plans
		WHERE id = $1 AND is_active = TRUE
	`
	row := r.db.QueryRow(ctx, query, planID)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var plan domain.Plan
	var price string
	if err := row.Scan(
		&plan.ID,
		&plan.Name,
		&price,
		&plan.Description,
		&plan.DurationMonths,
		&plan.IsActive,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	plan.Price = parsed
	return &plan, nil
}

// CreateSubscription inserts a new subscription row.
func (r *Repository) CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, plan_id, start_date, end_date, status
	`
	var created domain.Subscription
	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		sub.StartDate,
		sub.EndDate,
		sub.Status,
	).Scan(
		&created.ID,
		&created.UserID,
		&created.PlanID,
		&created.StartDate,
		&created.EndDate,
		&created.Status,
	)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetSubscriptionByID retrieves a single subscription.
func (r *Repository) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, start_date, end_date, status
		FROM subscriptions
		WHERE id = $1
	`
	var sub domain.Subscription
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.StartDate,
		&sub.EndDate,
		&sub.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// GetActiveSubscriptionByUserID returns the user's active subscription, if any.
func (r *Repository) GetActiveSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, start_date, end_date, status
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY start_date DESC
		LIMIT 1
	`
	var sub domain.Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.StartDate,
		&sub.EndDate,
		&sub.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptionsByUserID returns all of a user's subscriptions, newest first.
func (r *Repository) ListSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, start_date, end_date, status
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY start_date DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.PlanID,
			&sub.StartDate,
			&sub.EndDate,
			&sub.Status,
		); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListActiveSubscriptions returns every active subscription for the
// invoice generation sweep.
func (r *Repository) ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	query := `
		SELECT id, user_id, plan_id, start_date, end_date, status
		FROM subscriptions
		WHERE status = 'active'
		ORDER BY start_date ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.PlanID,
			&sub.StartDate,
			&sub.EndDate,
			&sub.Status,
		); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CancelSubscription transitions an active subscription to cancelled.
// Returns false when the subscription was already cancelled or expired,
// which callers treat as a no-op rather than an error.
func (r *Repository) CancelSubscription(ctx context.Context, subscriptionID string) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled'
		WHERE id = $1 AND status = 'active'
	`
	tag, err := r.db.Exec(ctx, query, subscriptionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InsertInvoice inserts an invoice guarded by the
// (subscription_id, billing_period_start) unique constraint. Returns false
// when an invoice for that cycle already exists; the existing row is
// authoritative and the conflict is not an error.
func (r *Repository) InsertInvoice(ctx context.Context, inv *domain.Invoice) (bool, error) {
	query := `
		INSERT INTO invoices (
			id, user_id, subscription_id, plan_id, amount,
			issue_date, due_date, status, billing_period_start, billing_period_end
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (subscription_id, billing_period_start) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		inv.ID,
		inv.UserID,
		inv.SubscriptionID,
		inv.PlanID,
		inv.Amount.StringFixed(2),
		inv.IssueDate,
		inv.DueDate,
		inv.Status,
		inv.BillingPeriodStart,
		inv.BillingPeriodEnd,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetInvoiceByID retrieves a single invoice.
func (r *Repository) GetInvoiceByID(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	query := `
		SELECT id, user_id, subscription_id, plan_id, amount, issue_date, due_date,
		       status, paid_at, billing_period_start, billing_period_end, gateway_order_id
		FROM invoices
		WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, invoiceID)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

// ListInvoicesByUserID returns a user's invoices, newest first.
func (r *Repository) ListInvoicesByUserID(ctx context.Context, userID string) ([]domain.Invoice, error) {
	query := `
		SELECT id, user_id, subscription_id, plan_id, amount, issue_date, due_date,
		       status, paid_at, billing_period_start, billing_period_end, gateway_order_id
		FROM invoices
		WHERE user_id = $1
		ORDER BY issue_date DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// GetLatestInvoiceByUserID returns the user's most recently issued invoice.
func (r *Repository) GetLatestInvoiceByUserID(ctx context.Context, userID string) (*domain.Invoice, error) {
	query := `
		SELECT id, user_id, subscription_id, plan_id, amount, issue_date, due_date,
		       status, paid_at, billing_period_start, billing_period_end, gateway_order_id
		FROM invoices
		WHERE user_id = $1
		ORDER BY issue_date DESC
		LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, userID)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

// ListUnpaidInvoicesDueBefore selects not-yet-paid invoices whose due date
// has passed. Already-overdue invoices are included so the grace-period
// cancellation check re-runs on every sweep.
func (r *Repository) ListUnpaidInvoicesDueBefore(ctx context.Context, now time.Time) ([]domain.Invoice, error) {
	query := `
		SELECT id, user_id, subscription_id, plan_id, amount, issue_date, due_date,
		       status, paid_at, billing_period_start, billing_period_end, gateway_order_id
		FROM invoices
		WHERE status IN ('unpaid', 'overdue') AND due_date < $1
		ORDER BY due_date ASC
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// MarkInvoiceOverdue transitions an unpaid invoice to overdue. The status
// filter keeps a racing settlement from being clobbered; it also makes the
// call a no-op for invoices that are already overdue. Returns whether a
// transition happened.
func (r *Repository) MarkInvoiceOverdue(ctx context.Context, invoiceID string) (bool, error) {
	query := `
		UPDATE invoices
		SET status = 'overdue'
		WHERE id = $1 AND status = 'unpaid'
	`
	tag, err := r.db.Exec(ctx, query, invoiceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkInvoicePaid transitions an invoice to paid. Returns false when the
// invoice was already paid, leaving the original paid_at untouched.
func (r *Repository) MarkInvoicePaid(ctx context.Context, invoiceID string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE invoices
		SET status = 'paid',
		    paid_at = $2
		WHERE id = $1 AND status <> 'paid'
	`
	tag, err := r.db.Exec(ctx, query, invoiceID, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetInvoiceGatewayOrder records the external payment order created for an
// invoice.
func (r *Repository) SetInvoiceGatewayOrder(ctx context.Context, invoiceID, orderID string) error {
	query := `
		UPDATE invoices
		SET gateway_order_id = $2
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, invoiceID, orderID)
	return err
}

// ListReminderTargets selects overdue invoices whose subscription is still
// active, joined with the owning user's email.
func (r *Repository) ListReminderTargets(ctx context.Context) ([]domain.ReminderTarget, error) {
	query := `
		SELECT i.id, i.subscription_id, i.user_id, u.email, i.due_date
		FROM invoices i
		JOIN subscriptions s ON s.id = i.subscription_id
		JOIN users u ON u.id = i.user_id
		WHERE i.status = 'overdue' AND s.status = 'active'
		ORDER BY i.due_date ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []domain.ReminderTarget
	for rows.Next() {
		var t domain.ReminderTarget
		if err := rows.Scan(
			&t.InvoiceID,
			&t.SubscriptionID,
			&t.UserID,
			&t.UserEmail,
			&t.DueDate,
		); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var amount string
	if err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&inv.SubscriptionID,
		&inv.PlanID,
		&amount,
		&inv.IssueDate,
		&inv.DueDate,
		&inv.Status,
		&inv.PaidAt,
		&inv.BillingPeriodStart,
		&inv.BillingPeriodEnd,
		&inv.GatewayOrderID,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	inv.Amount = parsed
	return &inv, nil
}
