package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rewired-gh/polytrend/internal/models"
)

func newTestStorage(t *testing.T, maxDecisions int) *Storage {
	t.Helper()
	s, err := New(maxDecisions, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testMarket(slug, conditionID string) *models.Market {
	return &models.Market{
		ConditionID: conditionID,
		ID:          "501",
		Question:    "Ethereum Up or Down?",
		Slug:        slug,
		Active:      true,
		UpTokenID:   "111",
		DownTokenID: "222",
	}
}

func testDecision(id string, createdAt time.Time) *models.Decision {
	up, down := 75.0, 10.0
	return &models.Decision{
		ID:                   id,
		Asset:                "ETH",
		Action:               models.TradeAction{Kind: models.BuyUp, Price: 0.53, Shares: 6},
		TokenID:              "111",
		IndexType:            models.IndexRSI,
		UpIndex:              &up,
		DownIndex:            &down,
		PeriodTimestamp:      1700000100,
		TimeRemainingSeconds: 857,
		CreatedAt:            createdAt,
	}
}

func TestStorage_RecordAndGetMarket(t *testing.T) {
	s := newTestStorage(t, 10)
	now := time.Unix(1700000143, 0)

	if err := s.RecordMarket("ETH", testMarket("eth-updown-15m-1700000100", "0xabc"), 1700000100, now); err != nil {
		t.Fatalf("RecordMarket: %v", err)
	}
	got, err := s.GetMarket("eth-updown-15m-1700000100")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if got.Asset != "ETH" || got.Market.ConditionID != "0xabc" || got.Market.UpTokenID != "111" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Market.Active || got.Market.Closed {
		t.Errorf("flags not round-tripped: %+v", got.Market)
	}
	if got.PeriodTimestamp != 1700000100 || !got.DiscoveredAt.Equal(now) {
		t.Errorf("period=%d discovered=%v", got.PeriodTimestamp, got.DiscoveredAt)
	}
}

func TestStorage_RecordMarket_Upserts(t *testing.T) {
	s := newTestStorage(t, 10)
	slug := "eth-updown-15m-1700000100"

	m := testMarket(slug, "0xabc")
	if err := s.RecordMarket("ETH", m, 1700000100, time.Unix(1, 0)); err != nil {
		t.Fatalf("RecordMarket: %v", err)
	}
	m.Closed = true
	if err := s.RecordMarket("ETH", m, 1700000100, time.Unix(2, 0)); err != nil {
		t.Fatalf("RecordMarket again: %v", err)
	}

	got, err := s.GetMarket(slug)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if !got.Market.Closed || got.DiscoveredAt.Unix() != 2 {
		t.Errorf("record not updated: %+v", got)
	}
}

func TestStorage_RecordMarket_Invalid(t *testing.T) {
	s := newTestStorage(t, 10)
	if err := s.RecordMarket("ETH", &models.Market{Slug: "x"}, 0, time.Now()); err == nil {
		t.Error("expected error for market without condition ID")
	}
}

func TestStorage_GetMarket_NotFound(t *testing.T) {
	s := newTestStorage(t, 10)
	if _, err := s.GetMarket("nonexistent"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := s.LatestMarket("ETH"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStorage_LatestMarket(t *testing.T) {
	s := newTestStorage(t, 10)
	for i, period := range []int64{1700000100, 1700001000, 1699999200} {
		slug := fmt.Sprintf("eth-updown-15m-%d", period)
		if err := s.RecordMarket("ETH", testMarket(slug, fmt.Sprintf("0x%d", i)), period, time.Unix(int64(i), 0)); err != nil {
			t.Fatalf("RecordMarket: %v", err)
		}
	}
	if err := s.RecordMarket("BTC", testMarket("btc-updown-15m-1700001900", "0xbtc"), 1700001900, time.Unix(9, 0)); err != nil {
		t.Fatalf("RecordMarket: %v", err)
	}

	got, err := s.LatestMarket("ETH")
	if err != nil {
		t.Fatalf("LatestMarket: %v", err)
	}
	if got.Market.Slug != "eth-updown-15m-1700001000" {
		t.Errorf("latest = %s, want eth-updown-15m-1700001000", got.Market.Slug)
	}
}

func TestStorage_AddAndGetDecisions(t *testing.T) {
	s := newTestStorage(t, 10)
	base := time.Unix(1700000143, 0)

	first := testDecision("d-1", base)
	second := testDecision("d-2", base.Add(time.Second))
	second.Action.Kind = models.BuyDown
	second.TokenID = "222"
	second.UpIndex = nil

	for _, d := range []*models.Decision{first, second} {
		if err := s.AddDecision(d); err != nil {
			t.Fatalf("AddDecision(%s): %v", d.ID, err)
		}
	}

	got, err := s.GetRecentDecisions(10)
	if err != nil {
		t.Fatalf("GetRecentDecisions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d decisions, want 2", len(got))
	}
	if got[0].ID != "d-2" || got[0].Action.Kind != models.BuyDown || got[0].UpIndex != nil {
		t.Errorf("newest decision = %+v", got[0])
	}
	if got[1].UpIndex == nil || *got[1].UpIndex != 75 || got[1].IndexType != models.IndexRSI {
		t.Errorf("oldest decision = %+v", got[1])
	}
	if !got[1].CreatedAt.Equal(base) || got[1].TimeRemainingSeconds != 857 {
		t.Errorf("context not round-tripped: %+v", got[1])
	}
}

func TestStorage_AddDecision_Invalid(t *testing.T) {
	s := newTestStorage(t, 10)

	noID := testDecision("", time.Now())
	if err := s.AddDecision(noID); err == nil {
		t.Error("expected error for decision without id")
	}

	noAction := testDecision("d-1", time.Now())
	noAction.Action = models.NewNoAction()
	if err := s.AddDecision(noAction); err == nil {
		t.Error("expected error for NoAction decision")
	}
}

func TestStorage_AddDecision_EnforcesCap(t *testing.T) {
	s := newTestStorage(t, 3)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		if err := s.AddDecision(testDecision(fmt.Sprintf("d-%d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("AddDecision: %v", err)
		}
	}

	n, err := s.CountDecisions()
	if err != nil {
		t.Fatalf("CountDecisions: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	got, _ := s.GetRecentDecisions(10)
	if got[len(got)-1].ID != "d-2" {
		t.Errorf("oldest kept = %s, want d-2", got[len(got)-1].ID)
	}
}

func TestStorage_RotateDecisions(t *testing.T) {
	s := newTestStorage(t, 100)
	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		if err := s.AddDecision(testDecision(fmt.Sprintf("d-%d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("AddDecision: %v", err)
		}
	}

	s.maxDecisions = 2
	if err := s.RotateDecisions(); err != nil {
		t.Fatalf("RotateDecisions: %v", err)
	}
	if n, _ := s.CountDecisions(); n != 2 {
		t.Errorf("count after rotate = %d, want 2", n)
	}
}

func TestStorage_DefaultPath(t *testing.T) {
	s, err := New(10, "")
	if err != nil {
		t.Fatalf("New with empty path: %v", err)
	}
	defer s.Close()
}
