package broker

import (
	"testing"
	"time"

	"paperbroker/internal/calendar"
	"paperbroker/internal/clock"
	"paperbroker/internal/observability"
	"paperbroker/internal/risk"
	"paperbroker/internal/store"
	"paperbroker/internal/types"
)

// regularSessionTime returns a Unix timestamp during a Monday regular
// session with no holiday in effect, for tests that don't exercise the
// calendar gate directly.
func regularSessionTime(t *testing.T) int64 {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("America/New_York", -5*60*60)
	}
	return time.Date(2024, time.March, 4, 10, 0, 0, 0, loc).Unix()
}

func newTestBroker(t *testing.T, cash float64) (*Broker, *clock.ManualClock) {
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

	// Partial fills are disabled for these tests so fill quantities are
	// deterministic; partial-fill behavior itself is covered separately.
	cfg := types.DefaultBrokerConfig()
	cfg.PartialFillProbability = 0

	b := New(Options{
		InitialCash: cash,
		Config:      cfg,
		RiskLimits:  risk.DefaultLimits(),
		Calendar:    cal,
		Store:       st,
		Logger:      observability.Default(),
		Clock:       mc,
		RandSeed:    1,
		AutoSave:    false,
	})
	return b, mc
}

func quote(symbol string, bid, ask, last float64, now int64) types.MarketData {
	return types.MarketData{Symbol: symbol, Bid: bid, Ask: ask, LastPrice: last, Timestamp: now}
}

func TestMarketBuyOrder(t *testing.T) {
	b, mc := newTestBroker(t, 10000)
	b.UpdateMarketData(quote("AAPL", 149.95, 150.05, 150.0, mc.Now().Unix()))

	exec, err := b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Buy, OrderType: types.Market, Quantity: 10,
		TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.Fills) == 0 {
		t.Fatal("expected a fill")
	}
	if exec.Fills[0].Price <= 150.05 {
		t.Errorf("expected slippage above ask, got %v", exec.Fills[0].Price)
	}

	portfolio := b.GetPortfolio()
	pos, ok := portfolio.Positions["AAPL"]
	if !ok || pos.Quantity != 10 {
		t.Fatalf("expected a 10-share position, got %+v", pos)
	}
}

func TestLimitBuyOrderNoFill(t *testing.T) {
	b, mc := newTestBroker(t, 10000)
	b.UpdateMarketData(quote("AAPL", 149.95, 150.05, 150.0, mc.Now().Unix()))

	price := 140.0
	exec, err := b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Buy, OrderType: types.Limit, Quantity: 10,
		Price: &price, TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.Fills) != 0 {
		t.Fatalf("expected no fill for a limit below the ask, got %+v", exec.Fills)
	}
}

func TestLimitBuyOrderFill(t *testing.T) {
	b, mc := newTestBroker(t, 10000)
	b.UpdateMarketData(quote("AAPL", 149.95, 150.05, 150.0, mc.Now().Unix()))

	price := 151.0
	exec, err := b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Buy, OrderType: types.Limit, Quantity: 10,
		Price: &price, TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.Fills) != 1 {
		t.Fatalf("expected one fill, got %+v", exec.Fills)
	}
	if exec.Fills[0].Price != price {
		t.Errorf("expected fill at the exact limit price %v, got %v", price, exec.Fills[0].Price)
	}
}

func TestStopOrderTrigger(t *testing.T) {
	// Unlike the original engine, which left stop orders pending forever,
	// this engine actually triggers them once the last trade crosses the
	// stop (spec §9 "Redesigned Behavior" #1).
	b, mc := newTestBroker(t, 10000)
	b.UpdateMarketData(quote("AAPL", 149.95, 150.05, 150.0, mc.Now().Unix()))

	stop := 155.0
	exec, err := b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Buy, OrderType: types.Stop, Quantity: 10,
		StopPrice: &stop, TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.Fills) != 0 {
		t.Fatalf("expected no fill before the stop triggers, got %+v", exec.Fills)
	}

	b.UpdateMarketData(quote("AAPL", 155.95, 156.05, 156.0, mc.Now().Unix()))

	portfolio := b.GetPortfolio()
	pos, ok := portfolio.Positions["AAPL"]
	if !ok || pos.Quantity != 10 {
		t.Fatalf("expected the stop order to have filled once triggered, got %+v", pos)
	}
}

func TestInsufficientBuyingPower(t *testing.T) {
	b, mc := newTestBroker(t, 100)
	b.UpdateMarketData(quote("AAPL", 149.95, 150.05, 150.0, mc.Now().Unix()))

	_, err := b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Buy, OrderType: types.Market, Quantity: 10,
		TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err == nil {
		t.Fatal("expected an insufficient buying power error")
	}
}

func TestInsufficientSharesToSell(t *testing.T) {
	b, mc := newTestBroker(t, 10000)
	b.UpdateMarketData(quote("AAPL", 149.95, 150.05, 150.0, mc.Now().Unix()))

	_, err := b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Sell, OrderType: types.Market, Quantity: 10,
		TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err == nil {
		t.Fatal("expected an insufficient shares error")
	}
}

func TestPnLCalculation(t *testing.T) {
	b, mc := newTestBroker(t, 10000)
	b.UpdateMarketData(quote("AAPL", 99.95, 100.05, 100.0, mc.Now().Unix()))

	_, err := b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Buy, OrderType: types.Limit, Quantity: 10,
		Price: floatPtr(100.05), TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err != nil {
		t.Fatalf("unexpected error on buy: %v", err)
	}

	b.UpdateMarketData(quote("AAPL", 109.95, 110.05, 110.0, mc.Now().Unix()))

	_, err = b.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Sell, OrderType: types.Limit, Quantity: 10,
		Price: floatPtr(109.95), TimeInForce: types.Day, InstrumentType: types.Stock,
	})
	if err != nil {
		t.Fatalf("unexpected error on sell: %v", err)
	}

	portfolio := b.GetPortfolio()
	if _, held := portfolio.Positions["AAPL"]; held {
		t.Fatalf("expected the position to be fully closed, got %+v", portfolio.Positions["AAPL"])
	}
	if portfolio.Cash <= 10000 {
		t.Errorf("expected a net profit from buying low and selling high, cash=%v", portfolio.Cash)
	}
}

func TestOrderValidation(t *testing.T) {
	cases := []types.OrderRequest{
		{Symbol: "", Side: types.Buy, OrderType: types.Market, Quantity: 10, InstrumentType: types.Stock},
		{Symbol: "AAPL", Side: types.Buy, OrderType: types.Market, Quantity: 0, InstrumentType: types.Stock},
		{Symbol: "AAPL", Side: types.Buy, OrderType: types.Limit, Quantity: 10, InstrumentType: types.Stock},
	}
	for i, req := range cases {
		if err := req.Validate(); err == nil {
			t.Errorf("case %d: expected a validation error, got nil", i)
		}
	}

	valid := types.OrderRequest{Symbol: "AAPL", Side: types.Buy, OrderType: types.Market, Quantity: 10, InstrumentType: types.Stock}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected a valid request to pass, got %v", err)
	}
}

func floatPtr(v float64) *float64 { return &v }

// TestDisasterRecoveryReplaysJournalWhenSnapshotMissing exercises the
// journal-only restore path (spec §4.6 invariant I7, property P6, scenario
// 6): with no snapshot ever written, a new broker pointed at the same data
// directory must rebuild cash and positions by replaying the journal onto
// an empty book funded with the original initial cash.
func TestDisasterRecoveryReplaysJournalWhenSnapshotMissing(t *testing.T) {
	dir := t.TempDir()
	now := regularSessionTime(t)
	mc := clock.NewManualClock(time.Unix(now, 0))

	cal, err := calendar.New("")
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	cfg := types.DefaultBrokerConfig()
	cfg.PartialFillProbability = 0

	const initialCash = 10000.0
	b1 := New(Options{
		InitialCash: initialCash,
		Config:      cfg,
		RiskLimits:  risk.DefaultLimits(),
		Calendar:    cal,
		Store:       st,
		Logger:      observability.Default(),
		Clock:       mc,
		RandSeed:    1,
		AutoSave:    false,
	})

	b1.UpdateMarketData(quote("AAPL", 149.95, 150.05, 150.0, mc.Now().Unix()))
	if _, err := b1.PlaceOrder(types.OrderRequest{
		Symbol: "AAPL", Side: types.Buy, OrderType: types.Market, Quantity: 10, InstrumentType: types.Stock,
	}); err != nil {
		t.Fatalf("unexpected error placing order: %v", err)
	}

	wantPortfolio := b1.GetPortfolio()

	// No SaveState call: only the journal, never a snapshot, is on disk.
	journal, err := st.LoadJournal()
	if err != nil {
		t.Fatalf("unexpected error loading journal: %v", err)
	}
	if len(journal) != 1 {
		t.Fatalf("expected 1 journaled trade, got %d", len(journal))
	}

	st2, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := st2.LoadSnapshot(); err != nil || ok {
		t.Fatalf("expected no snapshot to exist, ok=%v err=%v", ok, err)
	}

	b2 := New(Options{
		InitialCash: initialCash,
		Config:      cfg,
		RiskLimits:  risk.DefaultLimits(),
		Calendar:    cal,
		Store:       st2,
		Logger:      observability.Default(),
		Clock:       mc,
		RandSeed:    1,
		AutoSave:    false,
	})
	b2.RestoreFromSnapshot(store.ReplayJournal(initialCash, journal))

	gotPortfolio := b2.GetPortfolio()
	if gotPortfolio.Cash != wantPortfolio.Cash {
		t.Errorf("restored cash = %v, want %v", gotPortfolio.Cash, wantPortfolio.Cash)
	}
	gotPos, ok := gotPortfolio.Positions["AAPL"]
	if !ok {
		t.Fatal("expected the AAPL position to be rebuilt from the journal")
	}
	wantPos := wantPortfolio.Positions["AAPL"]
	if gotPos.Quantity != wantPos.Quantity || gotPos.AvgCost != wantPos.AvgCost {
		t.Errorf("restored position = %+v, want %+v", gotPos, wantPos)
	}
}
