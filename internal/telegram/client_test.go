package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/polytrend/internal/models"
	"github.com/rewired-gh/polytrend/internal/monitor"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// The bot token is validated first, so an empty token fails before the chat ID is parsed.
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func testDecision() models.Decision {
	up, down := 75.5, 10.25
	return models.Decision{
		ID:                   "d-1",
		Asset:                "ETH",
		Action:               models.TradeAction{Kind: models.BuyUp, Price: 0.53, Shares: 6},
		TokenID:              "1234",
		IndexType:            models.IndexRSI,
		UpIndex:              &up,
		DownIndex:            &down,
		PeriodTimestamp:      1700000100,
		TimeRemainingSeconds: 425,
	}
}

func TestFormatDecision(t *testing.T) {
	msg := formatDecision("simulation", testDecision())

	for _, want := range []string{
		"📈 *BUY UP* ETH \\[simulation\\]",
		"Price: 0\\.5300 × 6 shares",
		"rsi: up 75\\.50 / down 10\\.25",
		"7m 05s left in period 1700000100",
		"`1234`",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	d := testDecision()
	d.Action.Kind = models.BuyDown
	d.UpIndex = nil
	msg = formatDecision("", d)
	if !strings.Contains(msg, "📉 *BUY DOWN* ETH\n") {
		t.Errorf("unexpected down header:\n%s", msg)
	}
	if !strings.Contains(msg, "up n/a") {
		t.Errorf("missing index should render n/a:\n%s", msg)
	}
}

func TestMarkSent_SuppressesRepeatsWithinPeriod(t *testing.T) {
	c := &Client{lastSent: make(map[string]string)}
	d := testDecision()

	if !c.markSent(d) {
		t.Fatal("first decision should be sent")
	}
	if c.markSent(d) {
		t.Error("repeat within the period should be suppressed")
	}

	flipped := d
	flipped.Action.Kind = models.BuyDown
	if !c.markSent(flipped) {
		t.Error("a different action should be sent")
	}

	next := d
	next.PeriodTimestamp += 900
	if !c.markSent(next) {
		t.Error("the same action in a new period should be sent")
	}

	other := d
	other.Asset = "BTC"
	if !c.markSent(other) {
		t.Error("another asset should be tracked independently")
	}
}

func TestFormatStatus(t *testing.T) {
	now := time.Unix(1700000200, 0)
	if got := formatStatus("live", nil, now); !strings.Contains(got, "No priced assets yet") {
		t.Errorf("empty status = %q", got)
	}

	up := 55.0
	got := formatStatus("live", []monitor.AssetStatus{
		{Asset: "ETH", Points: 12, UpIndex: &up, UpdatedAt: now.Add(-3 * time.Second)},
	}, now)
	if !strings.Contains(got, "*ETH*: up 55\\.00 / down n/a, 12 points, 3s ago") {
		t.Errorf("status = %q", got)
	}
}
