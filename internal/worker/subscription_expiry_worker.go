package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/metrics"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/sse"
)

// expiryWarningWindows are the look-ahead windows logged on every run.
var expiryWarningWindows = []int{3, 7}

// ExpiryStore moves lapsed subscriptions and lists ones about to end.
type ExpiryStore interface {
	MarkLapsed(ctx context.Context, now time.Time) ([]string, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Subscription, error)
}

// CacheInvalidator drops cached answers that depend on subscription status.
type CacheInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// DirectoryRefresher drops the cached tenant directory.
type DirectoryRefresher interface {
	Invalidate(ctx context.Context) error
}

// LapseNotifier is told about every subscription moved to past_due.
type LapseNotifier interface {
	NotifySubscriptionLapsed(tenantID string)
}

// SubscriptionExpiryWorker moves active subscriptions past their period end
// to past_due.
type SubscriptionExpiryWorker struct {
	store        ExpiryStore
	entitlements CacheInvalidator
	directory    DirectoryRefresher
	schedule     string
	notifier     LapseNotifier
	now          func() time.Time
}

// NewSubscriptionExpiryWorker constructs a SubscriptionExpiryWorker that runs
// on a cron schedule. The invalidators may be nil.
func NewSubscriptionExpiryWorker(store ExpiryStore, entitlements CacheInvalidator, directory DirectoryRefresher, schedule string) *SubscriptionExpiryWorker {
	return &SubscriptionExpiryWorker{
		store:        store,
		entitlements: entitlements,
		directory:    directory,
		schedule:     schedule,
		notifier:     sse.NopNotifier{},
		now:          time.Now,
	}
}

// SetNotifier sets the listener for lapsed subscriptions.
func (w *SubscriptionExpiryWorker) SetNotifier(n LapseNotifier) {
	w.notifier = n
}

// Start runs once, then on every schedule tick until ctx is canceled.
func (w *SubscriptionExpiryWorker) Start(ctx context.Context) {
	log.Info().Str("schedule", w.schedule).Msg("Starting subscription expiry worker")

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(w.schedule, func() { w.run(ctx) }); err != nil {
		log.Error().Err(err).Str("schedule", w.schedule).Msg("Could not schedule subscription expiry worker")
		return
	}

	w.run(ctx)
	c.Start()

	<-ctx.Done()
	// Wait for a run in progress to finish.
	<-c.Stop().Done()
	log.Info().Msg("Subscription expiry worker stopped")
}

func (w *SubscriptionExpiryWorker) run(ctx context.Context) []string {
	now := w.now()

	lapsed, err := w.store.MarkLapsed(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark lapsed subscriptions")
		return nil
	}

	for _, tenantID := range lapsed {
		metrics.LapsedSubscriptions.Inc()
		log.Info().Str("tenant_id", tenantID).Msg("Subscription lapsed, moved to past_due")
		w.notifier.NotifySubscriptionLapsed(tenantID)
		if w.entitlements != nil {
			if err := w.entitlements.InvalidateTenant(ctx, tenantID); err != nil {
				log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to invalidate entitlement cache")
			}
		}
	}
	if len(lapsed) > 0 && w.directory != nil {
		if err := w.directory.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate tenant directory cache")
		}
	}

	from := now
	for _, days := range expiryWarningWindows {
		to := now.AddDate(0, 0, days)
		subs, err := w.store.ListExpiringBetween(ctx, from, to)
		if err != nil {
			log.Error().Err(err).Int("days", days).Msg("Failed to list expiring subscriptions")
			continue
		}
		for _, s := range subs {
			ev := log.Warn().
				Str("tenant_id", s.TenantID).
				Str("plan_id", s.PlanID).
				Int("within_days", days)
			if s.CurrentPeriodEnd != nil {
				ev = ev.Time("period_end", *s.CurrentPeriodEnd)
			}
			ev.Msg("Subscription expiring soon")
		}
		from = to
	}

	return lapsed
}
