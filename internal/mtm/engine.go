package mtm

import (
	"strconv"
	"strings"
	"time"

	"paperbroker/internal/occ"
	"paperbroker/internal/types"
)

// PortfolioGreeks aggregates position-level Greeks across the book.
type PortfolioGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// PositionGreeks is the per-symbol Greeks contribution to the book.
type PositionGreeks struct {
	Symbol          string  `json:"symbol"`
	Delta           float64 `json:"delta"`
	Gamma           float64 `json:"gamma"`
	Theta           float64 `json:"theta"`
	Vega            float64 `json:"vega"`
	Rho             float64 `json:"rho"`
	Quantity        int64   `json:"quantity"`
	UnderlyingPrice float64 `json:"underlying_price"`
	UpdatedAt       int64   `json:"updated_at"`
}

// Snapshot is a complete mark-to-market view of the book at a point in time.
type Snapshot struct {
	Timestamp       int64                     `json:"timestamp"`
	TotalEquity     float64                   `json:"total_equity"`
	Cash            float64                   `json:"cash"`
	StockValue      float64                   `json:"stock_value"`
	OptionValue     float64                   `json:"option_value"`
	UnrealizedPnL   float64                   `json:"unrealized_pnl"`
	RealizedPnL     float64                   `json:"realized_pnl"`
	DayPnL          float64                   `json:"day_pnl"`
	PortfolioGreeks PortfolioGreeks           `json:"portfolio_greeks"`
	PositionGreeks  map[string]PositionGreeks `json:"position_greeks"`
}

// Engine computes mark-to-market snapshots from positions and quotes.
type Engine struct {
	RiskFreeRate      float64
	DefaultVolatility float64
	volatilityCache   map[string]float64
}

// NewEngine returns an Engine with the original model's defaults.
func NewEngine() *Engine {
	return &Engine{RiskFreeRate: 0.05, DefaultVolatility: 0.25, volatilityCache: make(map[string]float64)}
}

// UpdateVolatility sets the cached implied volatility for underlying, used
// in place of DefaultVolatility on every subsequent Greeks calculation for
// options on that underlying.
func (e *Engine) UpdateVolatility(underlying string, volatility float64) {
	e.volatilityCache[underlying] = volatility
}

// GetVolatility returns the cached implied volatility for underlying, or
// DefaultVolatility if none has been set.
func (e *Engine) GetVolatility(underlying string) float64 {
	if v, ok := e.volatilityCache[underlying]; ok {
		return v
	}
	return e.DefaultVolatility
}

// CalculatePortfolioMtM values every position against the supplied quotes
// and produces the aggregate snapshot (spec §4.3).
func (e *Engine) CalculatePortfolioMtM(
	cash float64,
	positions map[string]*types.Position,
	quotes map[string]types.MarketData,
	realizedPnL float64,
	dayStartEquity float64,
	now int64,
) Snapshot {
	snap := Snapshot{
		Timestamp:      now,
		Cash:           cash,
		PositionGreeks: make(map[string]PositionGreeks),
	}

	for symbol, pos := range positions {
		if pos.Quantity == 0 {
			continue
		}
		quote, hasQuote := quotes[symbol]
		marketPrice := pos.LastPrice
		if hasQuote {
			marketPrice = quote.MidPrice()
		}

		positionValue := float64(pos.Quantity) * marketPrice
		positionUnrealized := positionValue - float64(pos.Quantity)*pos.AvgCost
		snap.UnrealizedPnL += positionUnrealized

		parsed, isOption := occ.Parse(symbol)
		if !isOption {
			snap.StockValue += positionValue
			snap.PortfolioGreeks.Delta += float64(pos.Quantity)
			snap.PositionGreeks[symbol] = PositionGreeks{
				Symbol:          symbol,
				Delta:           float64(pos.Quantity),
				Quantity:        pos.Quantity,
				UnderlyingPrice: marketPrice,
				UpdatedAt:       now,
			}
			continue
		}

		snap.OptionValue += positionValue
		underlyingPrice := marketPrice
		if uq, ok := quotes[parsed.Underlying]; ok {
			underlyingPrice = uq.MidPrice()
		}

		t := e.calculateTimeToExpiry(parsed.Expiry, now)
		volatility := e.GetVolatility(parsed.Underlying)
		greeks := BlackScholesGreeks(underlyingPrice, parsed.Strike, t, e.RiskFreeRate, volatility, parsed.OptionType == "call")

		scale := float64(pos.Quantity) * float64(parsed.Multiplier)
		pg := PositionGreeks{
			Symbol:          symbol,
			Delta:           greeks.Delta * scale,
			Gamma:           greeks.Gamma * scale,
			Theta:           greeks.Theta * scale,
			Vega:            greeks.Vega * scale,
			Rho:             greeks.Rho * scale,
			Quantity:        pos.Quantity,
			UnderlyingPrice: underlyingPrice,
			UpdatedAt:       now,
		}
		snap.PositionGreeks[symbol] = pg
		snap.PortfolioGreeks.Delta += pg.Delta
		snap.PortfolioGreeks.Gamma += pg.Gamma
		snap.PortfolioGreeks.Theta += pg.Theta
		snap.PortfolioGreeks.Vega += pg.Vega
		snap.PortfolioGreeks.Rho += pg.Rho
	}

	snap.RealizedPnL = realizedPnL
	snap.TotalEquity = snap.Cash + snap.StockValue + snap.OptionValue
	snap.DayPnL = snap.TotalEquity - dayStartEquity

	return snap
}

// calculateTimeToExpiry returns years-to-expiry for an MM/DD/YYYY date,
// clamped to zero once expiry has passed.
func (e *Engine) calculateTimeToExpiry(expiry string, nowUnix int64) float64 {
	parts := strings.Split(expiry, "/")
	if len(parts) != 3 {
		return 0
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}

	now := time.Unix(nowUnix, 0).UTC()
	expiryDate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	days := expiryDate.Sub(today).Hours() / 24
	years := days / 365.0
	if years < 0 {
		return 0
	}
	return years
}
