// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polytrend/internal/logger"
	"github.com/rewired-gh/polytrend/internal/models"
	"github.com/rewired-gh/polytrend/internal/monitor"
)

// StatusSource returns the current per-asset summary for the /status command.
type StatusSource func() []monitor.AssetStatus

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	mode           string
	status         StatusSource

	mu       sync.Mutex
	lastSent map[string]string // asset -> kind/period of the last decision notified
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		lastSent:       make(map[string]string),
	}, nil
}

// SetStatusSource wires the data behind /status. mode is shown in the reply header.
func (c *Client) SetStatusSource(mode string, source StatusSource) {
	c.mode = mode
	c.status = source
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "status":
		var statuses []monitor.AssetStatus
		if c.status != nil {
			statuses = c.status()
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, formatStatus(c.mode, statuses, time.Now()))
		reply.ParseMode = "MarkdownV2"
		if _, err := c.bot.Send(reply); err != nil {
			logger.Warn("Failed to answer /status: %v", err)
		}
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a loop error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Trading loop error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Trading loop recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendDecision notifies a trade decision. Repeats of the same action for the
// same asset within one period are suppressed.
func (c *Client) SendDecision(d models.Decision) error {
	if !c.markSent(d) {
		return nil
	}
	return c.sendMarkdownV2(formatDecision(c.mode, d))
}

// Dispatch lets the client receive decisions directly from the trading loop.
func (c *Client) Dispatch(_ context.Context, d models.Decision) error {
	return c.SendDecision(d)
}

func (c *Client) markSent(d models.Decision) bool {
	key := fmt.Sprintf("%s/%d", d.Action.Kind, d.PeriodTimestamp)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSent[d.Asset] == key {
		return false
	}
	c.lastSent[d.Asset] = key
	return true
}

// formatDecision formats a decision into a Telegram MarkdownV2 message.
func formatDecision(mode string, d models.Decision) string {
	emoji := "📈"
	side := "UP"
	if !d.Action.IsUpSide() {
		emoji = "📉"
		side = "DOWN"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *BUY %s* %s", emoji, side, escapeMarkdownV2(d.Asset))
	if mode != "" {
		fmt.Fprintf(&b, " \\[%s\\]", escapeMarkdownV2(mode))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "💵 Price: %s × %s shares\n",
		escapeMarkdownV2(fmt.Sprintf("%.4f", d.Action.Price)),
		escapeMarkdownV2(strconv.FormatFloat(d.Action.Shares, 'f', -1, 64)))
	fmt.Fprintf(&b, "📊 %s: up %s / down %s\n",
		escapeMarkdownV2(d.IndexType.String()), formatIndex(d.UpIndex), formatIndex(d.DownIndex))
	fmt.Fprintf(&b, "⏱️ %s left in period %d\n",
		escapeMarkdownV2(formatRemaining(d.TimeRemainingSeconds)), d.PeriodTimestamp)
	if d.TokenID != "" {
		fmt.Fprintf(&b, "🎟 `%s`\n", escapeMarkdownV2(d.TokenID))
	}
	return b.String()
}

func formatStatus(mode string, statuses []monitor.AssetStatus, now time.Time) string {
	var b strings.Builder
	b.WriteString("🛰 *Status*")
	if mode != "" {
		fmt.Fprintf(&b, " \\[%s\\]", escapeMarkdownV2(mode))
	}
	b.WriteString("\n\n")

	if len(statuses) == 0 {
		b.WriteString("No priced assets yet\\.\n")
		return b.String()
	}
	for _, s := range statuses {
		age := now.Sub(s.UpdatedAt).Round(time.Second)
		fmt.Fprintf(&b, "*%s*: up %s / down %s, %d points, %s ago\n",
			escapeMarkdownV2(s.Asset), formatIndex(s.UpIndex), formatIndex(s.DownIndex),
			s.Points, escapeMarkdownV2(age.String()))
	}
	return b.String()
}

func formatIndex(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return escapeMarkdownV2(fmt.Sprintf("%.2f", *v))
}

func formatRemaining(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
