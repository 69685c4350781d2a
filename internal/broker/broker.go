// Package broker implements the paper trading engine's order lifecycle,
// matching, and portfolio accounting (spec §4.1, §4.5), grounded on
// original_source/src-tauri/src/engine/broker.rs and reworked in Go idiom
// on top of this repository's types/risk/mtm/calendar/store packages.
package broker

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"paperbroker/internal/calendar"
	"paperbroker/internal/clock"
	"paperbroker/internal/mtm"
	"paperbroker/internal/observability"
	"paperbroker/internal/risk"
	"paperbroker/internal/store"
	"paperbroker/internal/types"
)

// Broker is the single-writer trading engine. All state mutation happens
// under mu, matching spec §5's concurrency model: one logical writer per
// account, reads and writes both serialized through the same lock.
type Broker struct {
	mu sync.Mutex

	cash           float64
	positions      map[string]*types.Position
	orders         map[string]*types.Order
	pendingOrder   []string // FIFO insertion order of symbol-eligible pending orders, spec §9 #3
	trades         []types.Trade
	marketData     map[string]types.MarketData
	config         types.BrokerConfig
	dayStartEquity float64
	createdAt      int64

	optionAssignments []types.OptionAssignment
	optionExpirations []types.OptionExpiration

	mtmEngine    *mtm.Engine
	riskEngine   *risk.Engine
	marketCal    *calendar.Calendar
	durableStore *store.Store
	logger       *observability.Logger
	clock        clock.Clock
	rng          *rand.Rand

	autoSaveEnabled bool
	lastSavedAt     int64

	onTrade func(types.Trade)
	onQuote func(types.MarketData)
}

// Options configures a new Broker.
type Options struct {
	InitialCash float64
	Config      types.BrokerConfig
	RiskLimits  risk.Limits
	Calendar    *calendar.Calendar
	Store       *store.Store
	Logger      *observability.Logger
	Clock       clock.Clock
	RandSeed    int64
	AutoSave    bool

	// OnTrade, if set, is invoked off the critical path after every
	// journaled trade — used to drive the optional Postgres audit mirror.
	OnTrade func(types.Trade)
	// OnQuote, if set, is invoked off the critical path after every market
	// data update — used to drive the optional Redis quote mirror.
	OnQuote func(types.MarketData)
}

// New constructs a flat-book Broker funded with InitialCash.
func New(opts Options) *Broker {
	now := opts.Clock.Now().Unix()
	b := &Broker{
		cash:            opts.InitialCash,
		positions:       make(map[string]*types.Position),
		orders:          make(map[string]*types.Order),
		marketData:      make(map[string]types.MarketData),
		config:          opts.Config,
		dayStartEquity:  opts.InitialCash,
		createdAt:       now,
		mtmEngine:       mtm.NewEngine(),
		riskEngine:      risk.NewEngine(opts.RiskLimits, now),
		marketCal:       opts.Calendar,
		durableStore:    opts.Store,
		logger:          opts.Logger,
		clock:           opts.Clock,
		rng:             rand.New(rand.NewSource(opts.RandSeed)),
		autoSaveEnabled: opts.AutoSave,
		lastSavedAt:     now,
		onTrade:         opts.OnTrade,
		onQuote:         opts.OnQuote,
	}
	return b
}

func (b *Broker) now() int64 { return b.clock.Now().Unix() }

// GetPortfolio returns a point-in-time snapshot of cash/positions/P&L.
func (b *Broker) GetPortfolio() types.Portfolio {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.portfolioLocked()
}

func (b *Broker) portfolioLocked() types.Portfolio {
	positions := make(map[string]*types.Position, len(b.positions))
	var totalPnL float64
	for sym, pos := range b.positions {
		cp := *pos
		positions[sym] = &cp
		totalPnL += pos.UnrealizedPnL + pos.RealizedPnL
	}
	snap := b.mtmSnapshotLocked()
	return types.Portfolio{
		Cash:        b.cash,
		Equity:      snap.TotalEquity,
		BuyingPower: b.cash,
		Positions:   positions,
		DayPnL:      snap.DayPnL,
		TotalPnL:    totalPnL,
		UpdatedAt:   b.now(),
	}
}

// GetMtMSnapshot returns the current mark-to-market valuation of the book.
func (b *Broker) GetMtMSnapshot() mtm.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mtmSnapshotLocked()
}

func (b *Broker) mtmSnapshotLocked() mtm.Snapshot {
	var realized float64
	for _, pos := range b.positions {
		realized += pos.RealizedPnL
	}
	return b.mtmEngine.CalculatePortfolioMtM(b.cash, b.positions, b.marketData, realized, b.dayStartEquity, b.now())
}

// GetRiskStatus returns the risk engine's current metrics.
func (b *Broker) GetRiskStatus() risk.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.riskEngine.Metrics
}

// GetRiskViolations reports the risk engine's currently breached limits.
func (b *Broker) GetRiskViolations() risk.Violations {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.riskEngine.ViolationsSummary(b.now())
}

// GetTrades returns a copy of the journaled trade history in execution
// order.
func (b *Broker) GetTrades() []types.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

// GetOpenOrders returns a copy of every order not yet in a terminal state.
func (b *Broker) GetOpenOrders() []types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Order, 0, len(b.orders))
	for _, o := range b.orders {
		if !o.IsComplete() {
			out = append(out, *o)
		}
	}
	return out
}

// UpdateRiskMetrics recomputes daily P&L/Greeks and rolls counters if the
// trading day has changed. Callers invoke this on a schedule (e.g. once per
// quote batch) so the circuit breaker and daily limits track live state
// even between trades.
func (b *Broker) UpdateRiskMetrics() {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.mtmSnapshotLocked()
	b.riskEngine.UpdateDailyMetrics(snap.DayPnL, risk.PortfolioGreeksView{
		Delta: snap.PortfolioGreeks.Delta,
		Gamma: snap.PortfolioGreeks.Gamma,
		Vega:  snap.PortfolioGreeks.Vega,
	}, b.now())
}

// ConfigureExtendedHours passes through to the market calendar.
func (b *Broker) ConfigureExtendedHours(premarket, afterhours bool) {
	b.marketCal.ConfigureExtendedHours(premarket, afterhours)
}

// SetHolidayTrading passes through to the market calendar.
func (b *Broker) SetHolidayTrading(allow bool) {
	b.marketCal.SetHolidayTrading(allow)
}

// GetCurrentSession passes through to the market calendar.
func (b *Broker) GetCurrentSession() calendar.TradingSession {
	return b.marketCal.GetCurrentSession(b.now())
}

// IsMarketOpen passes through to the market calendar.
func (b *Broker) IsMarketOpen() bool {
	return b.marketCal.IsMarketOpen(b.now())
}

// GetNextSessionStart passes through to the market calendar.
func (b *Broker) GetNextSessionStart() (int64, bool) {
	return b.marketCal.GetNextSessionStart(b.now())
}

// AddCustomHoliday passes through to the market calendar.
func (b *Broker) AddCustomHoliday(h calendar.MarketHoliday) error {
	return b.marketCal.AddHoliday(h)
}

// logCtx builds a context carrying trace identifiers for a single order's
// processing, for use with the observability logger.
func logCtx(orderID, symbol string) context.Context {
	return observability.WithRunInfo(context.Background(), observability.RunInfo{OrderID: orderID, Symbol: symbol})
}

func newID() string {
	return uuid.NewString()
}
