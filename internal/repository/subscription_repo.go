package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// SubscriptionRepository handles data access for subscriptions. Each tenant has
// exactly one row, enforced by the unique constraint on tenant_id.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, tenant_id, plan_id, status, start_date, current_period_end, is_manual, note, created_at, updated_at`

// ListAll returns every subscription row, newest first.
func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY created_at DESC`
	var subs []models.Subscription
	if err := r.db.SelectContext(ctx, &subs, q); err != nil {
		return nil, err
	}
	return subs, nil
}

// GetByTenant returns the subscription of a tenant or sql.ErrNoRows.
func (r *SubscriptionRepository) GetByTenant(ctx context.Context, tenantID string) (*models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE tenant_id = $1 LIMIT 1`
	var s models.Subscription
	if err := r.db.GetContext(ctx, &s, q, tenantID); err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert inserts or updates the tenant's subscription in one statement.
// start_date is only written on insert.
func (r *SubscriptionRepository) Upsert(ctx context.Context, q sqlx.ExtContext, sub *models.Subscription) error {
	const query = `
		INSERT INTO subscriptions (tenant_id, plan_id, status, start_date, current_period_end, is_manual, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			is_manual = EXCLUDED.is_manual,
			note = COALESCE(EXCLUDED.note, subscriptions.note),
			updated_at = NOW()
		RETURNING id, start_date, created_at, updated_at`

	row := q.QueryRowxContext(ctx, query,
		sub.TenantID,
		sub.PlanID,
		sub.Status,
		sub.StartDate,
		sub.CurrentPeriodEnd,
		sub.IsManual,
		sub.Note,
	)
	return row.Scan(&sub.ID, &sub.StartDate, &sub.CreatedAt, &sub.UpdatedAt)
}

// UpdateStatus sets the status of the tenant's subscription.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, tenantID string, status models.SubscriptionStatus) error {
	const q = `UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE tenant_id = $1`
	res, err := r.db.ExecContext(ctx, q, tenantID, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkLapsed moves active subscriptions whose period ended before now to
// past_due and returns the affected tenant ids.
func (r *SubscriptionRepository) MarkLapsed(ctx context.Context, now time.Time) ([]string, error) {
	const q = `
		UPDATE subscriptions SET status = 'past_due', updated_at = NOW()
		WHERE status = 'active'
		AND current_period_end IS NOT NULL
		AND current_period_end < $1
		RETURNING tenant_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q, now); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListExpiringBetween returns active subscriptions whose period ends in [from, to).
func (r *SubscriptionRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE status = 'active'
		AND current_period_end >= $1 AND current_period_end < $2
		ORDER BY current_period_end`
	var subs []models.Subscription
	if err := r.db.SelectContext(ctx, &subs, q, from, to); err != nil {
		return nil, err
	}
	return subs, nil
}

// StatusCount is one row of CountByStatus.
type StatusCount struct {
	Status models.SubscriptionStatus `db:"status"`
	Count  int                       `db:"count"`
}

// CountByStatus returns the number of subscriptions per status.
func (r *SubscriptionRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	const q = `SELECT status, COUNT(1) AS count FROM subscriptions GROUP BY status ORDER BY status`
	var rows []StatusCount
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// CountExpiring returns how many subscriptions end within the window
// [from, to]. A nil from means "already expired before to".
func (r *SubscriptionRepository) CountExpiring(ctx context.Context, from *time.Time, to time.Time) (int, error) {
	q := `SELECT COUNT(1) FROM subscriptions WHERE current_period_end IS NOT NULL AND current_period_end < $1`
	args := []interface{}{to}
	if from != nil {
		q = `SELECT COUNT(1) FROM subscriptions WHERE current_period_end IS NOT NULL AND current_period_end <= $1 AND current_period_end >= $2`
		args = append(args, *from)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
