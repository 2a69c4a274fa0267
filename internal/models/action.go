package models

import (
	"fmt"
	"strings"
	"time"
)

// PricePoint is one Up/Down observation for an asset.
type PricePoint struct {
	Timestamp int64
	UpPrice   float64
	DownPrice float64
	Asset     string
}

// IndexType selects which indicator drives the trend decision.
type IndexType int

const (
	IndexRSI IndexType = iota
	IndexMACD
	IndexMACDSignal
	IndexMomentum
)

// ParseIndexType parses a configured index mode.
func ParseIndexType(s string) (IndexType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rsi":
		return IndexRSI, nil
	case "macd":
		return IndexMACD, nil
	case "macd_signal", "macdsignal":
		return IndexMACDSignal, nil
	case "momentum":
		return IndexMomentum, nil
	default:
		return IndexRSI, fmt.Errorf("unknown index type %q", s)
	}
}

func (t IndexType) String() string {
	switch t {
	case IndexRSI:
		return "rsi"
	case IndexMACD:
		return "macd"
	case IndexMACDSignal:
		return "macd_signal"
	case IndexMomentum:
		return "momentum"
	default:
		return fmt.Sprintf("IndexType(%d)", int(t))
	}
}

// Label is the short name used in index log lines.
func (t IndexType) Label() string {
	switch t {
	case IndexMACD, IndexMACDSignal:
		return "MACD"
	case IndexMomentum:
		return "Momentum"
	default:
		return "RSI"
	}
}

// ActionKind enumerates the trade actions the strategy can emit.
type ActionKind int

const (
	NoAction ActionKind = iota
	BuyUp
	BuyDown
	SellUp
	SellDown
)

func (k ActionKind) String() string {
	switch k {
	case NoAction:
		return "no_action"
	case BuyUp:
		return "buy_up"
	case BuyDown:
		return "buy_down"
	case SellUp:
		return "sell_up"
	case SellDown:
		return "sell_down"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// TradeAction is the strategy output for one asset and cycle.
// Shares is only meaningful for buys.
type TradeAction struct {
	Kind   ActionKind
	Price  float64
	Shares float64
}

// NewNoAction returns the empty action.
func NewNoAction() TradeAction {
	return TradeAction{Kind: NoAction}
}

// IsUpSide reports whether the action targets the Up token.
func (a TradeAction) IsUpSide() bool {
	return a.Kind == BuyUp || a.Kind == SellUp
}

// Decision is a non-empty trade action together with the context it was taken in.
type Decision struct {
	ID                   string
	Asset                string
	Action               TradeAction
	TokenID              string
	IndexType            IndexType
	UpIndex              *float64
	DownIndex            *float64
	PeriodTimestamp      int64
	TimeRemainingSeconds int64
	CreatedAt            time.Time
}
