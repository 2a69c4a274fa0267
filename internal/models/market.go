// Package models defines the core domain entities: markets, quotes, snapshots, and trade decisions.
package models

import (
	"errors"
	"strings"
)

// DummyConditionPrefix marks a synthesized market handle that is never priced.
const DummyConditionPrefix = "dummy_"

// Market represents a discovered (or synthesized) 15-minute Up/Down market.
type Market struct {
	ConditionID string `json:"condition_id"`
	ID          string `json:"id,omitempty"`
	Question    string `json:"question"`
	Slug        string `json:"slug"`
	Active      bool   `json:"active"`
	Closed      bool   `json:"closed"`
	UpTokenID   string `json:"up_token_id,omitempty"`
	DownTokenID string `json:"down_token_id,omitempty"`
}

// IsDummy reports whether the market is a synthesized stand-in for an asset without live integration.
func (m *Market) IsDummy() bool {
	return strings.HasPrefix(m.ConditionID, DummyConditionPrefix)
}

// Tradable reports whether the market should be priced.
func (m *Market) Tradable() bool {
	return m.Active && !m.Closed && !m.IsDummy()
}

// Validate checks market field constraints.
func (m *Market) Validate() error {
	if m.ConditionID == "" {
		return errors.New("condition ID must not be empty")
	}
	if m.Slug == "" {
		return errors.New("market slug must not be empty")
	}
	if m.IsDummy() && !m.Closed {
		return errors.New("dummy market must be closed")
	}
	return nil
}

// Token is one outcome token of a CLOB market.
type Token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// Side is the CLOB book side used when quoting a token.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TokenPrice holds the best bid/ask for one token. A nil field means the quote was unavailable.
type TokenPrice struct {
	TokenID string   `json:"token_id"`
	Bid     *float64 `json:"bid,omitempty"`
	Ask     *float64 `json:"ask,omitempty"`
}

// HasQuote reports whether at least one side of the book was quoted.
func (t *TokenPrice) HasQuote() bool {
	return t != nil && (t.Bid != nil || t.Ask != nil)
}

// Price returns the ask, falling back to the bid, or false if neither is present.
func (t *TokenPrice) Price() (float64, bool) {
	if t == nil {
		return 0, false
	}
	if t.Ask != nil {
		return *t.Ask, true
	}
	if t.Bid != nil {
		return *t.Bid, true
	}
	return 0, false
}

// Quote fields reported in MarketData.MissingQuotes.
const (
	QuoteDetails = "details"
	QuoteUpBid   = "up_bid"
	QuoteUpAsk   = "up_ask"
	QuoteDownBid = "down_bid"
	QuoteDownAsk = "down_ask"
)

// MarketData is the per-asset part of a snapshot.
// Up/Down tokens are nil when the market is not tradable or its tokens could not be resolved.
type MarketData struct {
	ConditionID   string      `json:"condition_id"`
	MarketName    string      `json:"market_name"`
	UpToken       *TokenPrice `json:"up_token,omitempty"`
	DownToken     *TokenPrice `json:"down_token,omitempty"`
	MissingQuotes []string    `json:"missing_quotes,omitempty"`
}

// MarketSnapshot is a point-in-time view across all tracked assets.
type MarketSnapshot struct {
	Markets              map[string]MarketData `json:"markets"`
	Assets               []string              `json:"assets"`
	Timestamp            int64                 `json:"timestamp"`
	PeriodTimestamp      int64                 `json:"period_timestamp"`
	TimeRemainingSeconds int64                 `json:"time_remaining_seconds"`
}

// Market returns the data for the named asset.
func (s *MarketSnapshot) Market(asset string) (MarketData, bool) {
	data, ok := s.Markets[asset]
	return data, ok
}
