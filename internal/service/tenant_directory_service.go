package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/gtd_backoffice/internal/cache"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/repository"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// Expiration window filters accepted by the directory.
const (
	ExpiringExpired = "expired"
	Expiring10Days  = "10_days"
	Expiring30Days  = "30_days"

	statusFilterAll = "all"
)

// DirectorySubscriptionReader is the subscription data the directory needs.
type DirectorySubscriptionReader interface {
	ListAll(ctx context.Context) ([]models.Subscription, error)
	CountByStatus(ctx context.Context) ([]repository.StatusCount, error)
	CountExpiring(ctx context.Context, from *time.Time, to time.Time) (int, error)
}

// DirectoryTenantReader is the registry and enrichment data the directory needs.
type DirectoryTenantReader interface {
	ListDetectedTenantIDs(ctx context.Context) ([]string, error)
	ListCompanySettings(ctx context.Context) ([]models.CompanySettings, error)
	ListPrimaryProfiles(ctx context.Context) ([]models.Profile, error)
}

// DirectoryCacheStore caches directory listings.
type DirectoryCacheStore interface {
	Get(ctx context.Context, filterKey string) ([]models.TenantSummary, error)
	Set(ctx context.Context, filterKey string, rows []models.TenantSummary) error
	Invalidate(ctx context.Context) error
}

// TenantFilter narrows the tenant directory.
type TenantFilter struct {
	Search     string `form:"search"`
	Status     string `form:"status"`
	ExpiringIn string `form:"expiringIn"`
}

func (f TenantFilter) cacheKey() string {
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(strings.TrimSpace(f.Search)), f.Status, f.ExpiringIn)
}

// includesDetected reports whether the status filter can match detected tenants.
func (f TenantFilter) includesDetected() bool {
	return f.Status == "" || f.Status == statusFilterAll || f.Status == string(models.StatusDetected)
}

// DirectoryStats summarizes the tenant base for the admin dashboard.
type DirectoryStats struct {
	ByStatus       map[models.SubscriptionStatus]int `json:"byStatus"`
	Detected       int                               `json:"detected"`
	Subscribed     int                               `json:"subscribed"`
	Expired        int                               `json:"expired"`
	Expiring10Days int                               `json:"expiring10Days"`
	Expiring30Days int                               `json:"expiring30Days"`
}

// TenantDirectoryService lists tenants by merging subscription rows with
// tenants detected from their data.
type TenantDirectoryService struct {
	subs    DirectorySubscriptionReader
	tenants DirectoryTenantReader
	cache   DirectoryCacheStore
	now     func() time.Time
}

// NewTenantDirectoryService constructs a TenantDirectoryService. cache may be nil.
func NewTenantDirectoryService(subs DirectorySubscriptionReader, tenants DirectoryTenantReader, cache DirectoryCacheStore) *TenantDirectoryService {
	return &TenantDirectoryService{subs: subs, tenants: tenants, cache: cache, now: time.Now}
}

// ListTenants returns the enriched, filtered tenant directory.
func (s *TenantDirectoryService) ListTenants(ctx context.Context, filter TenantFilter) ([]models.TenantSummary, error) {
	switch filter.ExpiringIn {
	case "", ExpiringExpired, Expiring10Days, Expiring30Days:
	default:
		return nil, fmt.Errorf("%w: unknown expiration window %q", utils.ErrValidation, filter.ExpiringIn)
	}

	key := filter.cacheKey()
	if s.cache != nil {
		rows, err := s.cache.Get(ctx, key)
		if err == nil {
			return rows, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Msg("directory cache read failed")
		}
	}

	now := s.now()

	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	rows := make([]models.TenantSummary, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, models.TenantSummary{
			TenantID:         sub.TenantID,
			PlanID:           sub.PlanID,
			Status:           sub.Status,
			StartDate:        sub.StartDate,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
			IsManual:         sub.IsManual,
			CreatedAt:        sub.CreatedAt,
		})
	}

	if filter.includesDetected() {
		ids, err := s.tenants.ListDetectedTenantIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("detect tenants: %w", err)
		}
		subscribed := make(map[string]struct{}, len(subs))
		for _, sub := range subs {
			subscribed[sub.TenantID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := subscribed[id]; ok {
				continue
			}
			rows = append(rows, detectedSummary(id, now))
		}
	}

	s.enrich(ctx, rows)

	result := FilterTenants(rows, filter, now)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			log.Warn().Err(err).Msg("directory cache write failed")
		}
	}
	return result, nil
}

// Stats returns status counts and expiration totals. The reads are independent
// and run concurrently.
func (s *TenantDirectoryService) Stats(ctx context.Context) (*DirectoryStats, error) {
	now := s.now()
	stats := &DirectoryStats{ByStatus: make(map[models.SubscriptionStatus]int)}

	var counts []repository.StatusCount
	var detected []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.subs.CountByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		detected, err = s.tenants.ListDetectedTenantIDs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.Expired, err = s.subs.CountExpiring(gctx, nil, now)
		return err
	})
	g.Go(func() error {
		var err error
		stats.Expiring10Days, err = s.subs.CountExpiring(gctx, &now, now.AddDate(0, 0, 10))
		return err
	})
	g.Go(func() error {
		var err error
		stats.Expiring30Days, err = s.subs.CountExpiring(gctx, &now, now.AddDate(0, 0, 30))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("directory stats: %w", err)
	}

	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Subscribed += c.Count
	}
	stats.Detected = len(detected)
	stats.ByStatus[models.StatusDetected] = stats.Detected
	return stats, nil
}

// InvalidateCache drops cached listings after a subscription write.
func (s *TenantDirectoryService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// enrich fills company and contact data. Missing rows and read failures fall
// back to the placeholder; enrichment never fails the listing.
func (s *TenantDirectoryService) enrich(ctx context.Context, rows []models.TenantSummary) {
	var companies []models.CompanySettings
	var profiles []models.Profile

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if companies, err = s.tenants.ListCompanySettings(gctx); err != nil {
			log.Warn().Err(err).Msg("directory enrichment: company settings unavailable")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if profiles, err = s.tenants.ListPrimaryProfiles(gctx); err != nil {
			log.Warn().Err(err).Msg("directory enrichment: profiles unavailable")
		}
		return nil
	})
	_ = g.Wait()

	companyByTenant := make(map[string]models.CompanySettings, len(companies))
	for _, c := range companies {
		companyByTenant[c.TenantID] = c
	}
	profileByTenant := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		profileByTenant[p.TenantID] = p
	}

	for i := range rows {
		r := &rows[i]
		r.CompanyName = models.UnknownPlaceholder
		r.TaxNumber = ""
		r.ContactName = models.UnknownPlaceholder
		r.ContactEmail = models.UnknownPlaceholder
		r.ContactPhone = models.UnknownPlaceholder

		if c, ok := companyByTenant[r.TenantID]; ok {
			r.CompanyName = orUnknown(c.CompanyName)
			if c.TaxNumber != nil {
				r.TaxNumber = *c.TaxNumber
			}
		}
		if p, ok := profileByTenant[r.TenantID]; ok {
			r.ContactName = orUnknown(p.FullName)
			r.ContactEmail = orUnknown(p.Email)
			if p.Phone != nil {
				r.ContactPhone = orUnknown(*p.Phone)
			}
		}
	}
}

// FilterTenants applies status, then search, then expiration window.
func FilterTenants(rows []models.TenantSummary, filter TenantFilter, now time.Time) []models.TenantSummary {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.TenantSummary, 0, len(rows))
	for _, r := range rows {
		if filter.Status != "" && filter.Status != statusFilterAll && string(r.Status) != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		if filter.ExpiringIn != "" && !matchesExpiration(r.CurrentPeriodEnd, filter.ExpiringIn, now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesSearch(r models.TenantSummary, search string) bool {
	for _, field := range []string{r.TenantID, r.CompanyName, r.ContactName, r.TaxNumber} {
		if field != "" && strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// matchesExpiration never matches unlimited (nil period end) rows. Windows
// only match periods that have not ended yet.
func matchesExpiration(periodEnd *time.Time, window string, now time.Time) bool {
	if periodEnd == nil {
		return false
	}
	switch window {
	case ExpiringExpired:
		return periodEnd.Before(now)
	case Expiring10Days:
		return withinDays(*periodEnd, now, 10)
	case Expiring30Days:
		return withinDays(*periodEnd, now, 30)
	}
	return false
}

func withinDays(end, now time.Time, n int) bool {
	if end.Before(now) {
		return false
	}
	days := DaysUntil(end, now)
	return days >= 0 && days <= n
}

// DaysUntil returns the whole days left until end, rounded up.
func DaysUntil(end, now time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}

func detectedSummary(tenantID string, now time.Time) models.TenantSummary {
	return models.TenantSummary{
		TenantID:         tenantID,
		PlanID:           models.LegacyPlanID,
		Status:           models.StatusDetected,
		StartDate:        now,
		CurrentPeriodEnd: nil,
		IsManual:         false,
		CreatedAt:        now,
	}
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return models.UnknownPlaceholder
	}
	return v
}
