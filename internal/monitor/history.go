package monitor

import (
	"fmt"

	"github.com/rewired-gh/polytrend/internal/indicator"
	"github.com/rewired-gh/polytrend/internal/models"
)

// pricePoint derives the observation for one asset. Each side is priced at its
// ask, falling back to its bid. No point is produced when either token is
// unresolved or neither token carries a single quote.
func pricePoint(timestamp int64, asset string, data models.MarketData) (models.PricePoint, bool) {
	if data.UpToken == nil || data.DownToken == nil {
		return models.PricePoint{}, false
	}
	if !data.UpToken.HasQuote() && !data.DownToken.HasQuote() {
		return models.PricePoint{}, false
	}

	up, _ := data.UpToken.Price()
	down, _ := data.DownToken.Price()
	return models.PricePoint{
		Timestamp: timestamp,
		UpPrice:   up,
		DownPrice: down,
		Asset:     asset,
	}, true
}

// appendBounded appends p and evicts the oldest points beyond limit.
func appendBounded(history []models.PricePoint, p models.PricePoint, limit int) []models.PricePoint {
	history = append(history, p)
	if excess := len(history) - limit; excess > 0 {
		n := copy(history, history[excess:])
		history = history[:n]
	}
	return history
}

func formatIndex(t models.IndexType, v float64) string {
	if t == models.IndexMACD || t == models.IndexMACDSignal {
		return fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func formatSignal(m *indicator.MACD) string {
	if v, ok := m.Signal(); ok {
		return fmt.Sprintf("%.4f", v)
	}
	return "n/a"
}

// formatTokenPrice renders "$bid/$ask", substituting 0 for a single missing side.
func formatTokenPrice(t *models.TokenPrice) string {
	if !t.HasQuote() {
		return "$--/--"
	}
	var bid, ask float64
	if t.Bid != nil {
		bid = *t.Bid
	}
	if t.Ask != nil {
		ask = *t.Ask
	}
	return fmt.Sprintf("$%.2f/$%.2f", bid, ask)
}

func formatRemaining(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
}

// PriceLine renders the per-asset quote summary logged every cycle.
func PriceLine(snap *models.MarketSnapshot, asset string) string {
	data, _ := snap.Market(asset)
	return fmt.Sprintf("📊 %s: U%s D%s | ⏱️ %s",
		asset, formatTokenPrice(data.UpToken), formatTokenPrice(data.DownToken),
		formatRemaining(snap.TimeRemainingSeconds))
}
