package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/polytrend/internal/models"
)

// maxErrorBody caps how much of an error response is kept in the error message.
const maxErrorBody = 512

// Client provides access to the Polymarket Gamma and CLOB APIs.
type Client struct {
	gammaAPIURL    string
	clobAPIURL     string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds retry and connection pool settings.
type ClientConfig struct {
	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// gammaEvent is the subset of a Gamma event used for discovery.
type gammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Markets []gammaMarket `json:"markets"`
}

type gammaMarket struct {
	ID           string `json:"id"`
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
	Outcomes     string `json:"outcomes"`     // JSON string: "[\"Up\", \"Down\"]"
	ClobTokenIds string `json:"clobTokenIds"` // JSON string: "[\"token1\", \"token2\"]"
}

type clobMarket struct {
	ConditionID string         `json:"condition_id"`
	Tokens      []models.Token `json:"tokens"`
}

type clobPrice struct {
	Price *string `json:"price"`
}

// NewClient creates a new Polymarket client.
func NewClient(gammaAPIURL, clobAPIURL string, timeout time.Duration, cfg ClientConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Client{
		gammaAPIURL:    strings.TrimRight(gammaAPIURL, "/"),
		clobAPIURL:     strings.TrimRight(clobAPIURL, "/"),
		httpClient:     &http.Client{Timeout: timeout, Transport: transport},
		maxRetries:     maxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// GetMarketBySlug resolves an event slug to its first market.
func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (*models.Market, error) {
	var event gammaEvent
	if err := c.getJSON(ctx, c.gammaAPIURL+"/events/slug/"+url.PathEscape(slug), &event); err != nil {
		return nil, fmt.Errorf("failed to fetch event %s: %w", slug, err)
	}
	if len(event.Markets) == 0 {
		return nil, fmt.Errorf("%w: no markets in event %s", models.ErrNotFound, slug)
	}

	gm := event.Markets[0]
	m := &models.Market{
		ConditionID: gm.ConditionID,
		ID:          gm.ID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		Active:      gm.Active,
		Closed:      gm.Closed,
	}
	if m.Slug == "" {
		m.Slug = slug
	}
	m.UpTokenID, m.DownTokenID = parseOutcomeTokens(gm)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: event %s: %v", models.ErrValidation, slug, err)
	}
	return m, nil
}

// parseOutcomeTokens maps the Gamma outcome list onto token IDs. Malformed
// lists are ignored; the CLOB market details remain authoritative.
func parseOutcomeTokens(gm gammaMarket) (up, down string) {
	var outcomes, tokenIDs []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &outcomes); err != nil {
		return "", ""
	}
	if err := json.Unmarshal([]byte(gm.ClobTokenIds), &tokenIDs); err != nil {
		return "", ""
	}
	for i, outcome := range outcomes {
		if i >= len(tokenIDs) {
			break
		}
		switch {
		case strings.EqualFold(outcome, "up") || outcome == "Yes":
			up = tokenIDs[i]
		case strings.EqualFold(outcome, "down") || outcome == "No":
			down = tokenIDs[i]
		}
	}
	return up, down
}

// GetMarketDetails returns the outcome tokens of a CLOB market.
func (c *Client) GetMarketDetails(ctx context.Context, conditionID string) ([]models.Token, error) {
	var market clobMarket
	if err := c.getJSON(ctx, c.clobAPIURL+"/markets/"+url.PathEscape(conditionID), &market); err != nil {
		return nil, fmt.Errorf("failed to fetch market %s: %w", conditionID, err)
	}
	if len(market.Tokens) == 0 {
		return nil, fmt.Errorf("%w: market %s has no tokens", models.ErrValidation, conditionID)
	}
	return market.Tokens, nil
}

// GetSidePrice returns the best price on one side of a token's book.
func (c *Client) GetSidePrice(ctx context.Context, tokenID string, side models.Side) (float64, error) {
	u, err := url.Parse(c.clobAPIURL + "/price")
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("token_id", tokenID)
	q.Set("side", string(side))
	u.RawQuery = q.Encode()

	var resp clobPrice
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch %s price: %w", side, err)
	}
	if resp.Price == nil {
		return 0, fmt.Errorf("%w: no %s price for token %s", models.ErrNotFound, side, tokenID)
	}
	price, err := strconv.ParseFloat(*resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q: %v", models.ErrValidation, *resp.Price, err)
	}
	return price, nil
}

func (c *Client) getJSON(ctx context.Context, urlStr string, dst any) error {
	resp, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", models.ErrValidation, err)
	}
	return nil
}

// doRequest performs an HTTP GET, retrying network failures and 5xx responses.
// Other non-2xx statuses are mapped to domain errors without retrying.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, c.retryDelayBase*time.Duration(i)); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return nil, checkHTTPStatus(resp.StatusCode, body)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("%w: max retries exceeded: %v", models.ErrTransient, lastErr)
}

func checkHTTPStatus(statusCode int, body []byte) error {
	bodyStr := strings.TrimSpace(string(body))
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", models.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", models.ErrValidation, statusCode, bodyStr)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
