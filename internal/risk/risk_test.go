package risk

import (
	"testing"

	"paperbroker/internal/types"
)

func baseOrder(quantity int64, price float64) types.OrderRequest {
	return types.OrderRequest{
		Symbol:         "AAPL",
		Side:           types.Buy,
		OrderType:      types.Market,
		Quantity:       quantity,
		InstrumentType: types.Stock,
	}
}

func TestCheckOrderRiskTradeSizeLimit(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	vs := e.CheckOrderRisk(OrderContext{
		Request:         baseOrder(1000, 150.0),
		EstimatedPrice:  150.0,
		PortfolioEquity: 100000,
		Now:             1000,
	})
	found := false
	for _, v := range vs {
		if v.Type == TradeSizeLimit && v.Severity == ErrorSev {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a blocking trade size violation, got %+v", vs)
	}
	if !vs.HasBlocking() {
		t.Error("expected HasBlocking to be true")
	}
}

func TestCheckOrderRiskWithinLimitsPasses(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	vs := e.CheckOrderRisk(OrderContext{
		Request:         baseOrder(10, 150.0),
		EstimatedPrice:  150.0,
		PortfolioEquity: 100000,
		Now:             1000,
	})
	if vs.HasBlocking() {
		t.Errorf("expected no blocking violations for a small order, got %+v", vs)
	}
}

func TestCheckOrderRiskCircuitBreakerShortCircuits(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	e.TriggerCircuitBreaker(1000)

	vs := e.CheckOrderRisk(OrderContext{
		Request:         baseOrder(10, 150.0),
		EstimatedPrice:  150.0,
		PortfolioEquity: 100000,
		Now:             1000,
	})
	if len(vs) != 1 || vs[0].Type != CircuitBreakerType {
		t.Fatalf("expected exactly one circuit breaker violation, got %+v", vs)
	}
}

func TestCircuitBreakerExpiresAfterCooldown(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	e.TriggerCircuitBreaker(1000)

	cooldownEnd := 1000 + e.Limits.CircuitBreakerDurationMinutes*60
	if e.IsCircuitBreakerActive(cooldownEnd - 1) != true {
		t.Error("expected the breaker to still be active just before cooldown ends")
	}
	if e.IsCircuitBreakerActive(cooldownEnd + 1) != false {
		t.Error("expected the breaker to have expired after cooldown")
	}
}

func TestUpdateAfterTradeTripsBreakerOnLargeLoss(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	trade := types.Trade{ID: "t1", NetAmount: -100, Timestamp: 1000}

	// A loss exceeding 10% of day-start equity trips the breaker; the
	// reference is always the injected dayStartEquity, never a hardcoded
	// constant.
	e.UpdateAfterTrade(trade, -1200, 10000, 1000)
	if !e.IsCircuitBreakerActive(1000) {
		t.Error("expected the circuit breaker to trip on a >10% daily loss")
	}
}

func TestUpdateAfterTradeNoTripOnSmallLoss(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	trade := types.Trade{ID: "t1", NetAmount: -100, Timestamp: 1000}

	e.UpdateAfterTrade(trade, -100, 10000, 1000)
	if e.IsCircuitBreakerActive(1000) {
		t.Error("expected no circuit breaker trip on a small loss")
	}
}

func TestConsecutiveLossesWithin24Hours(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	base := int64(1000)

	for i := int64(0); i < 3; i++ {
		trade := types.Trade{ID: "t", NetAmount: -10, Timestamp: base + i*100}
		e.UpdateAfterTrade(trade, -10, 1000000, base+i*100)
	}
	if e.Metrics.ConsecutiveLosses != 3 {
		t.Errorf("consecutive losses = %d, want 3", e.Metrics.ConsecutiveLosses)
	}

	// A winning trade breaks the streak.
	win := types.Trade{ID: "t4", NetAmount: 50, Timestamp: base + 300}
	e.UpdateAfterTrade(win, 50, 1000000, base+300)
	if e.Metrics.ConsecutiveLosses != 0 {
		t.Errorf("consecutive losses after a win = %d, want 0", e.Metrics.ConsecutiveLosses)
	}
}

func TestConsecutiveLossesOutsideWindowDropOff(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	old := types.Trade{ID: "old", NetAmount: -10, Timestamp: 1000}
	e.UpdateAfterTrade(old, -10, 1000000, 1000)

	// More than 24h later, the old loss has aged out of the window.
	recent := types.Trade{ID: "new", NetAmount: -10, Timestamp: 1000 + 90000}
	e.UpdateAfterTrade(recent, -10, 1000000, 1000+90000)

	if e.Metrics.ConsecutiveLosses != 1 {
		t.Errorf("consecutive losses = %d, want 1 (only the in-window loss)", e.Metrics.ConsecutiveLosses)
	}
}

func TestUpdateDailyMetricsRollsOverOnDayChange(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	e.Metrics.DailyTrades = 5
	e.Metrics.DailyVolume = 5000

	nextDay := int64(1000) + 86400
	e.UpdateDailyMetrics(200, PortfolioGreeksView{}, nextDay)

	if e.Metrics.DailyTrades != 0 {
		t.Errorf("expected daily trade count to reset after a day change, got %d", e.Metrics.DailyTrades)
	}
	if e.Metrics.DailyPnL != 200 {
		t.Errorf("daily pnl = %v, want 200", e.Metrics.DailyPnL)
	}
}

func TestResetDailyCountersPreservesConsecutiveLossesAndPnL(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	e.Metrics.ConsecutiveLosses = 3
	e.Metrics.DailyPnL = -500
	e.Metrics.DailyTrades = 10

	e.ResetDailyCounters()

	if e.Metrics.DailyTrades != 0 {
		t.Errorf("expected daily trades reset, got %d", e.Metrics.DailyTrades)
	}
	if e.Metrics.ConsecutiveLosses != 3 {
		t.Errorf("expected consecutive losses preserved, got %d", e.Metrics.ConsecutiveLosses)
	}
	if e.Metrics.DailyPnL != -500 {
		t.Errorf("expected daily pnl preserved, got %v", e.Metrics.DailyPnL)
	}
}

func TestCheckOrderRiskOptionGreekLimits(t *testing.T) {
	e := NewEngine(DefaultLimits(), 1000)
	req := types.OrderRequest{
		Symbol:         "AAPL240119C00150000",
		Side:           types.Buy,
		OrderType:      types.Market,
		Quantity:       5,
		InstrumentType: types.Option,
	}
	vs := e.CheckOrderRisk(OrderContext{
		Request:         req,
		EstimatedPrice:  5.0,
		PortfolioEquity: 100000,
		Greeks:          PortfolioGreeksView{Delta: 600, Gamma: 10, Vega: 10},
		Now:             1000,
	})
	found := false
	for _, v := range vs {
		if v.Type == DeltaLimit {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a delta limit violation, got %+v", vs)
	}
}
