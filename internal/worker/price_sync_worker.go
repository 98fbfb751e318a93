package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/gtd_backoffice/internal/metrics"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/sse"
	"github.com/GTDGit/gtd_backoffice/pkg/marketplace"
)

// PendingSyncStore reads mirror rows flagged for pushing and records results.
type PendingSyncStore interface {
	ListPendingSync(ctx context.Context, limit int) ([]models.ProductMarketplace, error)
	MarkSynced(ctx context.Context, tenantID string, id int, pushed decimal.Decimal) error
	MarkSyncError(ctx context.Context, tenantID string, id int, errMsg string) error
}

// PricePusher sends a listing price to the marketplace gateway.
type PricePusher interface {
	PushPrice(ctx context.Context, u marketplace.PriceUpdate) error
}

// PriceSyncNotifier is told about every push outcome.
type PriceSyncNotifier interface {
	NotifyPriceSynced(row models.ProductMarketplace, price decimal.Decimal)
	NotifyPriceSyncFailed(row models.ProductMarketplace, errMsg string)
}

// PriceSyncWorker pushes target prices of flagged mirror rows to their
// marketplaces.
type PriceSyncWorker struct {
	store       PendingSyncStore
	pusher      PricePusher
	interval    time.Duration
	batch       int
	concurrency int
	notifier    PriceSyncNotifier
}

// NewPriceSyncWorker constructs a PriceSyncWorker.
func NewPriceSyncWorker(store PendingSyncStore, pusher PricePusher, interval time.Duration, batch int) *PriceSyncWorker {
	return &PriceSyncWorker{
		store:       store,
		pusher:      pusher,
		interval:    interval,
		batch:       batch,
		concurrency: 4,
		notifier:    sse.NopNotifier{},
	}
}

// SetNotifier sets the listener for push outcomes.
func (w *PriceSyncWorker) SetNotifier(n PriceSyncNotifier) {
	w.notifier = n
}

// Start begins the periodic sync loop and listens for context cancellation.
func (w *PriceSyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("Starting price sync worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Price sync worker stopped")
			return
		}
	}
}

// run pushes one batch and returns how many rows were pushed successfully.
func (w *PriceSyncWorker) run(ctx context.Context) int {
	rows, err := w.store.ListPendingSync(ctx, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list pending price syncs")
		return 0
	}
	if len(rows) == 0 {
		return 0
	}

	results := make([]bool, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i := range rows {
		i := i
		g.Go(func() error {
			results[i] = w.push(gctx, rows[i])
			return nil
		})
	}
	_ = g.Wait()

	synced := 0
	for _, ok := range results {
		if ok {
			synced++
		}
	}
	log.Info().Int("rows", len(rows)).Int("synced", synced).Msg("Price sync batch completed")
	return synced
}

func (w *PriceSyncWorker) push(ctx context.Context, row models.ProductMarketplace) bool {
	price := row.RemotePrice
	if row.TargetPrice != nil {
		price = *row.TargetPrice
	}

	start := time.Now()
	err := w.pusher.PushPrice(ctx, marketplace.PriceUpdate{
		TenantID:      row.TenantID,
		MarketplaceID: row.MarketplaceID,
		Platform:      row.Platform,
		RemoteID:      row.RemoteID,
		Price:         price,
	})
	if err != nil {
		metrics.RecordPricePush(row.Platform, "error", start)
		log.Warn().
			Err(err).
			Str("tenant_id", row.TenantID).
			Int("mirror_id", row.ID).
			Str("platform", row.Platform).
			Msg("Price push failed")
		if mErr := w.store.MarkSyncError(ctx, row.TenantID, row.ID, err.Error()); mErr != nil {
			log.Error().Err(mErr).Int("mirror_id", row.ID).Msg("Failed to record price push error")
		}
		w.notifier.NotifyPriceSyncFailed(row, err.Error())
		return false
	}

	metrics.RecordPricePush(row.Platform, "success", start)
	if err := w.store.MarkSynced(ctx, row.TenantID, row.ID, price); err != nil {
		log.Error().Err(err).Int("mirror_id", row.ID).Msg("Failed to mark mirror synced")
		return false
	}
	w.notifier.NotifyPriceSynced(row, price)
	return true
}
