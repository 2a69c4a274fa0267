package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/polytrend/internal/logger"
	"github.com/rewired-gh/polytrend/internal/models"
)

// maxPeriodFallback is how many earlier periods are probed after the current one.
// The venue may publish a new period's market late, so recent history is searched too.
const maxPeriodFallback = 3

// MarketLookup resolves a market slug to a market handle.
type MarketLookup interface {
	GetMarketBySlug(ctx context.Context, slug string) (*models.Market, error)
}

// Slug builds the market identifier for prefix and period start.
func Slug(prefix string, period int64) string {
	return fmt.Sprintf("%s-updown-15m-%d", prefix, period)
}

// CandidateSlugs returns the slugs probed for prefix, current period first.
func CandidateSlugs(prefix string, now time.Time) []string {
	period := PeriodOf(now)
	slugs := make([]string, 0, maxPeriodFallback+1)
	for offset := int64(0); offset <= maxPeriodFallback; offset++ {
		slugs = append(slugs, Slug(prefix, period-offset*PeriodLength))
	}
	return slugs
}

// Discover finds the active market for asset by probing each prefix for the
// current period and up to three earlier periods. Lookup failures for a single
// candidate are skipped; the error is returned only when every candidate fails.
func Discover(ctx context.Context, lookup MarketLookup, asset string, prefixes []string, now time.Time) (*models.Market, error) {
	for _, prefix := range prefixes {
		for _, slug := range CandidateSlugs(prefix, now) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			m, err := lookup.GetMarketBySlug(ctx, slug)
			if err != nil {
				logger.Debug("Market candidate %s unavailable: %v", slug, err)
				continue
			}
			if m.Active && !m.Closed {
				return m, nil
			}
			logger.Debug("Market candidate %s is not open (active=%t closed=%t)", slug, m.Active, m.Closed)
		}
	}
	return nil, fmt.Errorf("%w: %s 15-minute up/down (tried: %s)",
		models.ErrMarketNotFound, asset, strings.Join(prefixes, ", "))
}

// DummyMarket synthesizes a closed handle for an asset without live integration.
func DummyMarket(name, slug string) *models.Market {
	return &models.Market{
		ConditionID: models.DummyConditionPrefix + strings.ToLower(name) + "_fallback",
		Question:    name + " Up/Down 15m (Dummy)",
		Slug:        slug,
		Active:      false,
		Closed:      true,
	}
}
