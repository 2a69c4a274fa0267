package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/polytrend/internal/logger"
	"github.com/rewired-gh/polytrend/internal/models"
)

// rediscoverBackoff throttles rediscovery attempts after a period rollover
// while the new period's market has not been published yet.
const rediscoverBackoff = 15 * time.Second

// MarketDetailer returns the outcome tokens of a market.
type MarketDetailer interface {
	GetMarketDetails(ctx context.Context, conditionID string) ([]models.Token, error)
}

// Pricer returns the best price on one side of a token's book.
type Pricer interface {
	GetSidePrice(ctx context.Context, tokenID string, side models.Side) (float64, error)
}

// Client is everything the snapshot builder needs from the venue.
type Client interface {
	MarketLookup
	MarketDetailer
	Pricer
}

// Asset describes one tracked market series.
// Disabled assets are represented by a dummy market and never priced.
type Asset struct {
	Name         string
	SlugPrefixes []string
	Enabled      bool
	DummySlug    string
}

type handle struct {
	market    *models.Market
	period    int64
	nextRetry time.Time
}

// DiscoveryHook is called whenever an asset's market handle is (re)discovered.
type DiscoveryHook func(asset string, m *models.Market, period int64)

// Snapshotter owns the market handle of every tracked asset and builds snapshots from them.
// Snapshot and DiscoverAll must not be called concurrently.
type Snapshotter struct {
	client  Client
	assets  []Asset
	handles map[string]*handle
	now     func() time.Time
	hook    DiscoveryHook
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshotter) { s.now = now }
}

// WithDiscoveryHook registers a callback for every discovered market.
func WithDiscoveryHook(hook DiscoveryHook) Option {
	return func(s *Snapshotter) { s.hook = hook }
}

func NewSnapshotter(client Client, assets []Asset, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		client:  client,
		assets:  assets,
		handles: make(map[string]*handle, len(assets)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverAll resolves the market of every enabled asset and synthesizes dummy
// markets for the rest. Any failure is returned; callers treat it as fatal.
func (s *Snapshotter) DiscoverAll(ctx context.Context) error {
	now := s.now()
	period := PeriodOf(now)
	for _, a := range s.assets {
		if !a.Enabled {
			slug := a.DummySlug
			if slug == "" {
				slug = strings.ToLower(a.Name) + "-updown-15m-dummy"
			}
			s.handles[a.Name] = &handle{market: DummyMarket(a.Name, slug), period: period}
			continue
		}

		m, err := Discover(ctx, s.client, a.Name, a.SlugPrefixes, now)
		if err != nil {
			return fmt.Errorf("failed to discover %s market: %w", a.Name, err)
		}
		s.setHandle(a, m, period, now)
	}
	return nil
}

// Market returns the current handle for asset, or nil if it was never discovered.
func (s *Snapshotter) Market(asset string) *models.Market {
	if h, ok := s.handles[asset]; ok {
		return h.market
	}
	return nil
}

func (s *Snapshotter) setHandle(a Asset, m *models.Market, period int64, now time.Time) {
	h := &handle{market: m, period: period}
	if !isCurrentSlug(m.Slug, a.SlugPrefixes, period) {
		// A fallback market from an earlier period; look again shortly.
		h.period = period - PeriodLength
		h.nextRetry = now.Add(rediscoverBackoff)
	}
	s.handles[a.Name] = h
	if s.hook != nil {
		s.hook(a.Name, m, period)
	}
}

func isCurrentSlug(slug string, prefixes []string, period int64) bool {
	for _, prefix := range prefixes {
		if slug == Slug(prefix, period) {
			return true
		}
	}
	return false
}

// refresh rediscovers markets whose period has rolled over. Failures keep the
// stale handle, which then degrades to no data instead of stopping the loop.
func (s *Snapshotter) refresh(ctx context.Context, now time.Time) {
	period := PeriodOf(now)
	for _, a := range s.assets {
		if !a.Enabled {
			continue
		}
		h, ok := s.handles[a.Name]
		if ok && h.period >= period {
			continue
		}
		if ok && now.Before(h.nextRetry) {
			continue
		}

		m, err := Discover(ctx, s.client, a.Name, a.SlugPrefixes, now)
		if err != nil {
			logger.Warn("Failed to rediscover %s market for period %d: %v", a.Name, period, err)
			if ok {
				h.nextRetry = now.Add(rediscoverBackoff)
			}
			continue
		}
		if ok && h.market.Slug == m.Slug && !isCurrentSlug(m.Slug, a.SlugPrefixes, period) {
			h.nextRetry = now.Add(rediscoverBackoff)
			continue
		}
		logger.Info("Switched %s to market %s (%s)", a.Name, m.Slug, m.ConditionID)
		s.setHandle(a, m, period, now)
	}
}

// Snapshot fetches market data for every tracked asset concurrently.
// Missing quotes degrade individual fields; the only error is context cancellation.
func (s *Snapshotter) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	now := s.now()
	s.refresh(ctx, now)

	results := make([]models.MarketData, len(s.assets))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.assets {
		m := s.Market(a.Name)
		if m == nil {
			results[i] = models.MarketData{MarketName: a.Name}
			continue
		}
		g.Go(func() error {
			results[i] = FetchMarketData(gctx, s.client, m, a.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	nowSec := now.Unix()
	snap := &models.MarketSnapshot{
		Markets:              make(map[string]models.MarketData, len(s.assets)),
		Assets:               make([]string, 0, len(s.assets)),
		Timestamp:            nowSec,
		PeriodTimestamp:      CurrentPeriod(nowSec),
		TimeRemainingSeconds: TimeRemaining(nowSec),
	}
	for i, a := range s.assets {
		snap.Markets[a.Name] = results[i]
		snap.Assets = append(snap.Assets, a.Name)
	}
	return snap, nil
}

// FetchMarketData builds the per-asset market data on a best-effort basis.
//
// A closed, inactive or dummy market yields only identifying fields. Otherwise
// the market's tokens are resolved and the four quotes (up bid/ask, down
// bid/ask) are fetched concurrently. Each failed fetch leaves its field nil and
// is listed in MissingQuotes; no failure aborts the result.
func FetchMarketData(ctx context.Context, client Client, m *models.Market, asset string) models.MarketData {
	data := models.MarketData{
		ConditionID: m.ConditionID,
		MarketName:  asset,
	}
	if !m.Tradable() {
		return data
	}

	tokens, err := client.GetMarketDetails(ctx, m.ConditionID)
	if err != nil {
		logger.Debug("Market details unavailable for %s (%s): %v", asset, m.ConditionID, err)
		data.MissingQuotes = []string{models.QuoteDetails}
		return data
	}

	up, down := findOutcomeTokens(tokens)

	type quote struct {
		name  string
		token *models.TokenPrice
		side  models.Side
		dst   **float64
		ok    bool
	}
	var quotes []*quote
	if up != nil {
		data.UpToken = &models.TokenPrice{TokenID: up.TokenID}
		quotes = append(quotes,
			&quote{name: models.QuoteUpBid, token: data.UpToken, side: models.SideBuy, dst: &data.UpToken.Bid},
			&quote{name: models.QuoteUpAsk, token: data.UpToken, side: models.SideSell, dst: &data.UpToken.Ask},
		)
	}
	if down != nil {
		data.DownToken = &models.TokenPrice{TokenID: down.TokenID}
		quotes = append(quotes,
			&quote{name: models.QuoteDownBid, token: data.DownToken, side: models.SideBuy, dst: &data.DownToken.Bid},
			&quote{name: models.QuoteDownAsk, token: data.DownToken, side: models.SideSell, dst: &data.DownToken.Ask},
		)
	}

	var g errgroup.Group
	for _, q := range quotes {
		g.Go(func() error {
			price, err := client.GetSidePrice(ctx, q.token.TokenID, q.side)
			if err != nil {
				logger.Debug("Quote %s unavailable for %s: %v", q.name, asset, err)
				return nil
			}
			*q.dst = &price
			q.ok = true
			return nil
		})
	}
	_ = g.Wait()

	for _, q := range quotes {
		if !q.ok {
			data.MissingQuotes = append(data.MissingQuotes, q.name)
		}
	}
	return data
}

// findOutcomeTokens locates the Up and Down tokens. "Yes"/"No" are accepted as aliases.
func findOutcomeTokens(tokens []models.Token) (up, down *models.Token) {
	for i := range tokens {
		t := &tokens[i]
		if t.TokenID == "" {
			continue
		}
		switch {
		case up == nil && (strings.EqualFold(t.Outcome, "up") || t.Outcome == "Yes"):
			up = t
		case down == nil && (strings.EqualFold(t.Outcome, "down") || t.Outcome == "No"):
			down = t
		}
	}
	return up, down
}
