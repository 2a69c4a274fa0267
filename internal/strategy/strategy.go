// Package strategy turns the price history and indicator state of one asset into a trade action.
package strategy

import (
	"github.com/rewired-gh/polytrend/internal/indicator"
	"github.com/rewired-gh/polytrend/internal/models"
)

// DefaultMomentumThresholdPct is the fixed momentum trigger in percent.
const DefaultMomentumThresholdPct = 2.0

// Context holds the decision parameters.
type Context struct {
	Lookback             int
	TrendThreshold       float64
	MomentumThresholdPct float64
	PositionSize         float64
	IndexType            models.IndexType
}

// Side selects the up or down price series of an asset.
type Side int

const (
	Up Side = iota
	Down
)

func (s Side) String() string {
	if s == Down {
		return "down"
	}
	return "up"
}

// Decide returns the action for the latest observation. The up side wins when
// both sides are trending in the same cycle.
func Decide(history []models.PricePoint, ctx Context, up, down *indicator.Set) models.TradeAction {
	if len(history) == 0 || len(history) < ctx.Lookback {
		return models.NewNoAction()
	}

	upIndex, upOK := IndexValue(history, ctx, up, Up)
	downIndex, downOK := IndexValue(history, ctx, down, Down)

	last := history[len(history)-1]
	switch {
	case upOK && trending(upIndex, ctx):
		return models.TradeAction{Kind: models.BuyUp, Price: last.UpPrice, Shares: ctx.PositionSize}
	case downOK && trending(downIndex, ctx):
		return models.TradeAction{Kind: models.BuyDown, Price: last.DownPrice, Shares: ctx.PositionSize}
	default:
		return models.NewNoAction()
	}
}

func trending(index float64, ctx Context) bool {
	switch ctx.IndexType {
	case models.IndexRSI, models.IndexMACD, models.IndexMACDSignal:
		return index > ctx.TrendThreshold
	case models.IndexMomentum:
		return index > ctx.MomentumThresholdPct
	default:
		return false
	}
}

// IndexValue computes the configured index for one side.
//
// In macd_signal mode this is the MACD line, not the signal line; the signal
// line is available through the set's MACD indicator.
func IndexValue(history []models.PricePoint, ctx Context, set *indicator.Set, side Side) (float64, bool) {
	if set == nil {
		return 0, false
	}
	switch ctx.IndexType {
	case models.IndexRSI:
		if set.RSI.Ready() {
			return set.RSI.Value()
		}
		if len(history) >= ctx.Lookback+1 {
			return indicator.CalculateRSI(series(history[len(history)-(ctx.Lookback+1):], side), ctx.Lookback)
		}
		return 0, false
	case models.IndexMACD, models.IndexMACDSignal:
		if set.MACD.Ready() {
			return set.MACD.Value()
		}
		return 0, false
	case models.IndexMomentum:
		if set.Momentum.Ready() {
			return set.Momentum.Value()
		}
		return 0, false
	default:
		return 0, false
	}
}

func series(history []models.PricePoint, side Side) []float64 {
	out := make([]float64, len(history))
	for i, p := range history {
		if side == Down {
			out[i] = p.DownPrice
		} else {
			out[i] = p.UpPrice
		}
	}
	return out
}
