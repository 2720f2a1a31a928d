package exchange

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	signer, err := NewSigner("test", pemBytes)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	srv := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: srv.URL,
		Signer:  signer,
		Logger:  zap.NewNop(),
		Timeout: 5 * time.Second,
	})
	c.limiter = newTokenBucket(1000) // don't let the test wait on rate limiting
	return c, srv
}

func TestClient_GetMarkets_ParsesCentsToDollars(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"markets":[{"ticker":"T-1","yes_ask":55,"yes_bid":52,"no_ask":48,"no_bid":45,"status":"active"}],"cursor":"next-page"}`))
	})
	defer srv.Close()

	page, err := c.GetMarkets(context.Background(), "active", "")
	if err != nil {
		t.Fatalf("GetMarkets: %v", err)
	}
	if len(page.Markets) != 1 {
		t.Fatalf("expected 1 market, got %d", len(page.Markets))
	}
	m := page.Markets[0]
	if m.YesAsk != 0.55 || m.YesBid != 0.52 {
		t.Errorf("unexpected prices: %+v", m)
	}
	if page.Cursor != "next-page" {
		t.Errorf("unexpected cursor: %s", page.Cursor)
	}
}

func TestClient_PlaceOrder_SendsSignedHeaders(t *testing.T) {
	var gotKey string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("KALSHI-ACCESS-KEY")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_id":"o-1","ticker":"T-1","status":"resting"}`))
	})
	defer srv.Close()

	resp, err := c.PlaceOrder(context.Background(), types.OrderRequest{Ticker: "T-1", Action: types.ActionBuy, Side: types.SideYes, Count: 1})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if resp.OrderID != "o-1" {
		t.Errorf("unexpected order id: %s", resp.OrderID)
	}
	if gotKey != "test" {
		t.Errorf("expected signed request, got key %q", gotKey)
	}
}

func TestClient_Do_RetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance":12345}`))
	})
	defer srv.Close()

	balance, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 123.45 {
		t.Errorf("expected 123.45, got %v", balance)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestClient_Do_ReturnsDomainErrorOn4xx(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad ticker"}`))
	})
	defer srv.Close()

	_, err := c.GetMarket(context.Background(), "BOGUS")
	if err == nil {
		t.Fatal("expected error")
	}
	if !types.IsKind(err, types.KindDomain) {
		t.Errorf("expected domain error kind, got %v", err)
	}
}

func TestClient_CancelOrder_UsesDelete(t *testing.T) {
	var gotMethod string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	if err := c.CancelOrder(context.Background(), "o-1"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", gotMethod)
	}
}

func TestClient_GetPositions_PassesCursor(t *testing.T) {
	var gotCursor string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"positions":[],"cursor":""}`))
	})
	defer srv.Close()

	_, err := c.GetPositions(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if gotCursor != "abc" {
		t.Errorf("expected cursor abc, got %q", gotCursor)
	}
}

func TestTokenBucket_LimitsRate(t *testing.T) {
	b := newTokenBucket(2) // should allow a burst of ~2, then throttle
	start := time.Now()
	for i := 0; i < 4; i++ {
		b.acquire()
	}
	elapsed := time.Since(start)
	if elapsed < 500*time.Millisecond {
		t.Errorf("expected throttling to introduce delay, elapsed %v", elapsed)
	}
}
