package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/polytrend/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.URL+"/", 2*time.Second, ClientConfig{MaxRetries: 3, RetryDelayBase: time.Millisecond})
}

func TestGetMarketBySlug(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/slug/eth-updown-15m-1700000100", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"42","slug":"eth-updown-15m-1700000100","markets":[{
			"id":"501","conditionId":"0xabc","question":"Ethereum Up or Down?",
			"slug":"eth-updown-15m-1700000100","active":true,"closed":false,
			"outcomes":"[\"Up\", \"Down\"]","clobTokenIds":"[\"111\", \"222\"]"}]}`)
	})
	mux.HandleFunc("/events/slug/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"43","markets":[]}`)
	})
	c := newTestClient(t, mux)

	m, err := c.GetMarketBySlug(context.Background(), "eth-updown-15m-1700000100")
	if err != nil {
		t.Fatalf("GetMarketBySlug failed: %v", err)
	}
	if m.ConditionID != "0xabc" || m.ID != "501" || !m.Active || m.Closed {
		t.Errorf("unexpected market: %+v", m)
	}
	if m.UpTokenID != "111" || m.DownTokenID != "222" {
		t.Errorf("tokens = %s/%s, want 111/222", m.UpTokenID, m.DownTokenID)
	}

	if _, err := c.GetMarketBySlug(context.Background(), "empty"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("empty event: got %v, want ErrNotFound", err)
	}
	if _, err := c.GetMarketBySlug(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown slug: got %v, want ErrNotFound", err)
	}
}

func TestGetMarketDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/0xabc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"condition_id":"0xabc","tokens":[
			{"token_id":"111","outcome":"Up","price":0.52,"winner":false},
			{"token_id":"222","outcome":"Down","price":0.48,"winner":false}]}`)
	})
	mux.HandleFunc("/markets/0xbad", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	})
	c := newTestClient(t, mux)

	tokens, err := c.GetMarketDetails(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetMarketDetails failed: %v", err)
	}
	if len(tokens) != 2 || tokens[0].TokenID != "111" || tokens[1].Outcome != "Down" || tokens[0].Price != 0.52 {
		t.Errorf("unexpected tokens: %+v", tokens)
	}

	if _, err := c.GetMarketDetails(context.Background(), "0xbad"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("malformed body: got %v, want ErrValidation", err)
	}
}

func TestGetSidePrice(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("token_id") + "/" + r.URL.Query().Get("side") {
		case "111/BUY":
			fmt.Fprint(w, `{"price":"0.51"}`)
		case "111/SELL":
			fmt.Fprint(w, `{"price":"abc"}`)
		case "222/BUY":
			fmt.Fprint(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"No orderbook exists for the requested token id"}`)
		}
	}))

	tests := []struct {
		token   string
		side    models.Side
		want    float64
		wantErr error
	}{
		{"111", models.SideBuy, 0.51, nil},
		{"111", models.SideSell, 0, models.ErrValidation},
		{"222", models.SideBuy, 0, models.ErrNotFound},
		{"333", models.SideSell, 0, models.ErrNotFound},
	}
	for _, tt := range tests {
		got, err := c.GetSidePrice(context.Background(), tt.token, tt.side)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s/%s: got %v, want %v", tt.token, tt.side, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s/%s: got %v, %v, want %v", tt.token, tt.side, got, err, tt.want)
		}
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"price":"0.40"}`)
	}))

	got, err := c.GetSidePrice(context.Background(), "111", models.SideBuy)
	if err != nil || got != 0.40 {
		t.Fatalf("got %v, %v, want 0.40 after retries", got, err)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestDoRequest_StatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   error
		wantCalls int32
	}{
		{http.StatusServiceUnavailable, models.ErrTransient, 3},
		{http.StatusTooManyRequests, models.ErrRateLimited, 1},
		{http.StatusBadRequest, models.ErrValidation, 1},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))

			if _, err := c.GetMarketDetails(context.Background(), "0xabc"); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("server called %d times, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestDoRequest_ContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	c.retryDelayBase = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.GetSidePrice(ctx, "111", models.SideBuy); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}
