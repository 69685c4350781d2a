package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paperbroker/internal/broker"
	"paperbroker/internal/calendar"
	"paperbroker/internal/clock"
	"paperbroker/internal/middleware"
	"paperbroker/internal/observability"
	"paperbroker/internal/risk"
	"paperbroker/internal/store"
	"paperbroker/internal/types"
)

func regularSessionTime(t *testing.T) int64 {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("America/New_York", -5*60*60)
	}
	return time.Date(2024, time.March, 4, 10, 0, 0, 0, loc).Unix()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	now := regularSessionTime(t)
	mc := clock.NewManualClock(time.Unix(now, 0))

	cal, err := calendar.New("")
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cfg := types.DefaultBrokerConfig()
	cfg.PartialFillProbability = 0

	b := broker.New(broker.Options{
		InitialCash: 100000,
		Config:      cfg,
		RiskLimits:  risk.DefaultLimits(),
		Calendar:    cal,
		Store:       st,
		Logger:      observability.Default(),
		Clock:       mc,
		RandSeed:    1,
		AutoSave:    false,
	})

	return New(Config{
		Broker:      b,
		Logger:      observability.Default(),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{Enabled: false}, observability.Default()),
		CORSConfig:  middleware.DefaultCORSConfig(),
	})
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandlePlaceOrderUnauthenticatedAllowed(t *testing.T) {
	s := newTestServer(t)
	now := regularSessionTime(t)

	rec := doRequest(s, http.MethodPost, "/v1/marketdata", types.MarketData{
		Symbol: "AAPL", Bid: 149.5, Ask: 150.5, LastPrice: 150, Timestamp: now,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("market data push status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, http.MethodPost, "/v1/orders", types.OrderRequest{
		Symbol:         "AAPL",
		Side:           types.Buy,
		OrderType:      types.Market,
		Quantity:       10,
		InstrumentType: types.Stock,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var execution types.TradeExecution
	if err := json.Unmarshal(rec.Body.Bytes(), &execution); err != nil {
		t.Fatalf("unexpected response body: %v", err)
	}
	if execution.Status != types.StatusFilled {
		t.Errorf("expected the market order to fill against a live quote, got status %q", execution.Status)
	}
}

func TestHandlePlaceOrderValidationError(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/v1/orders", types.OrderRequest{
		Symbol:   "AAPL",
		Quantity: 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGetPortfolio(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/v1/portfolio", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var portfolio types.Portfolio
	if err := json.Unmarshal(rec.Body.Bytes(), &portfolio); err != nil {
		t.Fatalf("unexpected response body: %v", err)
	}
	if portfolio.Cash != 100000 {
		t.Errorf("cash = %v, want 100000", portfolio.Cash)
	}
}

func TestHandleIsMarketOpen(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/v1/session/is-open", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected response body: %v", err)
	}
	if !body["is_open"] {
		t.Error("expected the market to be open during a regular Monday session")
	}
}

func TestHandleCancelUnknownOrder(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodDelete, "/v1/orders/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
