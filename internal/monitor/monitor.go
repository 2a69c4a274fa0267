package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/polytrend/internal/indicator"
	"github.com/rewired-gh/polytrend/internal/logger"
	"github.com/rewired-gh/polytrend/internal/metrics"
	"github.com/rewired-gh/polytrend/internal/models"
	"github.com/rewired-gh/polytrend/internal/strategy"
)

// DefaultMaxHistory is the number of price points retained per asset.
const DefaultMaxHistory = 100

type Config struct {
	Assets     []string
	Strategy   strategy.Context
	Indicators indicator.Config
	MaxHistory int
}

type assetState struct {
	history []models.PricePoint
	up      *indicator.Set
	down    *indicator.Set

	upTokenLogged   bool
	downTokenLogged bool
}

// AssetStatus summarizes one asset for status reports.
type AssetStatus struct {
	Asset     string
	Points    int
	UpIndex   *float64
	DownIndex *float64
	UpdatedAt time.Time
}

// Monitor owns the price history and indicator state of every traded asset.
// ProcessSnapshot must be called from a single goroutine; Status is safe to
// call concurrently with it.
type Monitor struct {
	config Config
	states map[string]*assetState
	now    func() time.Time

	mu     sync.RWMutex
	status map[string]AssetStatus
}

func New(config Config) *Monitor {
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultMaxHistory
	}
	m := &Monitor{
		config: config,
		states: make(map[string]*assetState, len(config.Assets)),
		now:    time.Now,
		status: make(map[string]AssetStatus, len(config.Assets)),
	}
	for _, asset := range config.Assets {
		m.states[asset] = &assetState{
			up:   indicator.NewSet(config.Indicators),
			down: indicator.NewSet(config.Indicators),
		}
	}
	return m
}

// Assets returns the traded assets in processing order.
func (m *Monitor) Assets() []string {
	return m.config.Assets
}

// ProcessSnapshot folds one snapshot into every asset's state and returns the
// trade decisions taken this cycle. Assets without usable quotes are skipped.
func (m *Monitor) ProcessSnapshot(snap *models.MarketSnapshot) []models.Decision {
	var decisions []models.Decision

	for _, asset := range m.config.Assets {
		state := m.states[asset]
		data, ok := snap.Market(asset)
		if !ok {
			continue
		}
		m.logTokenIDs(asset, state, data)
		for _, field := range data.MissingQuotes {
			metrics.MissingQuotesTotal.WithLabelValues(asset, field).Inc()
		}

		point, ok := pricePoint(snap.Timestamp, asset, data)
		if !ok {
			logger.Debug("No usable quotes for %s, skipping", asset)
			continue
		}
		state.history = appendBounded(state.history, point, m.config.MaxHistory)
		state.up.Add(point.UpPrice)
		state.down.Add(point.DownPrice)

		upIndex := optional(strategy.IndexValue(state.history, m.config.Strategy, state.up, strategy.Up))
		downIndex := optional(strategy.IndexValue(state.history, m.config.Strategy, state.down, strategy.Down))
		m.logIndex(asset, state, upIndex, downIndex)
		m.setStatus(asset, len(state.history), upIndex, downIndex)

		action := strategy.Decide(state.history, m.config.Strategy, state.up, state.down)
		if action.Kind == models.NoAction {
			continue
		}

		tokenID := data.DownToken.TokenID
		if action.IsUpSide() {
			tokenID = data.UpToken.TokenID
		}
		decisions = append(decisions, models.Decision{
			ID:                   uuid.NewString(),
			Asset:                asset,
			Action:               action,
			TokenID:              tokenID,
			IndexType:            m.config.Strategy.IndexType,
			UpIndex:              upIndex,
			DownIndex:            downIndex,
			PeriodTimestamp:      snap.PeriodTimestamp,
			TimeRemainingSeconds: snap.TimeRemainingSeconds,
			CreatedAt:            m.now(),
		})
	}

	return decisions
}

// History returns a copy of the retained price points for asset.
func (m *Monitor) History(asset string) []models.PricePoint {
	state, ok := m.states[asset]
	if !ok {
		return nil
	}
	out := make([]models.PricePoint, len(state.history))
	copy(out, state.history)
	return out
}

// Status returns the latest summary of every asset that has been priced at least once.
func (m *Monitor) Status() []AssetStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AssetStatus, 0, len(m.status))
	for _, asset := range m.config.Assets {
		if s, ok := m.status[asset]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (m *Monitor) setStatus(asset string, points int, up, down *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[asset] = AssetStatus{
		Asset:     asset,
		Points:    points,
		UpIndex:   up,
		DownIndex: down,
		UpdatedAt: m.now(),
	}
}

func (m *Monitor) logTokenIDs(asset string, state *assetState, data models.MarketData) {
	if data.UpToken != nil && data.UpToken.TokenID != "" && !state.upTokenLogged {
		logger.Info("%s Up token_id: %s", asset, data.UpToken.TokenID)
		state.upTokenLogged = true
	}
	if data.DownToken != nil && data.DownToken.TokenID != "" && !state.downTokenLogged {
		logger.Info("%s Down token_id: %s", asset, data.DownToken.TokenID)
		state.downTokenLogged = true
	}
}

func (m *Monitor) logIndex(asset string, state *assetState, up, down *float64) {
	indexType := m.config.Strategy.IndexType
	label := indexType.Label()

	if up == nil || down == nil {
		logger.Info("📈 INDEX | asset=%s | %s=n/a", asset, label)
		return
	}
	metrics.IndexValue.WithLabelValues(asset, strategy.Up.String()).Set(*up)
	metrics.IndexValue.WithLabelValues(asset, strategy.Down.String()).Set(*down)

	if indexType != models.IndexMACDSignal {
		logger.Info("📈 INDEX | asset=%s | %s_up=%s | %s_down=%s",
			asset, label, formatIndex(indexType, *up), label, formatIndex(indexType, *down))
		return
	}

	// The decision compares the MACD line; the signal line is only reported.
	logger.Info("📈 INDEX | asset=%s | %s_up=%s | %s_down=%s | signal_up=%s | signal_down=%s",
		asset, label, formatIndex(indexType, *up), label, formatIndex(indexType, *down),
		formatSignal(state.up.MACD), formatSignal(state.down.MACD))
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
