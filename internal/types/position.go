package types

// Position is the net holding for one symbol. Quantity is signed: positive
// is long, negative is short. Order placement is long-only (spec §9
// "Shorting"): a sell cannot exceed the shares held. The one path that can
// leave a negative quantity is the exercise of an expired put in
// ProcessExpirations, which sells the underlying shares whether or not
// they are held.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	AvgCost       float64 `json:"avg_cost"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
	LastPrice     float64 `json:"last_price"`
	UpdatedAt     int64   `json:"updated_at"`
}

// NewPosition returns a flat position for symbol.
func NewPosition(symbol string, now int64) *Position {
	return &Position{Symbol: symbol, UpdatedAt: now}
}

// UpdateMarketData revalues the position at the given last price (spec §4.3).
func (p *Position) UpdateMarketData(price float64, now int64) {
	p.LastPrice = price
	p.MarketValue = float64(p.Quantity) * price
	p.UnrealizedPnL = p.MarketValue - float64(p.Quantity)*p.AvgCost
	p.UpdatedAt = now
}

// ApplyFill mutates the position for a fill and returns the realized P&L
// delta produced by that fill. Implements the three cases of spec §4.1:
// opening, adding, and reducing/flipping.
func (p *Position) ApplyFill(f Fill, now int64) float64 {
	oldQuantity := p.Quantity
	signedFill := f.Quantity
	if f.Side == Sell {
		signedFill = -f.Quantity
	}
	newQuantity := oldQuantity + signedFill

	var realized float64
	switch {
	case oldQuantity == 0:
		// Opening.
		p.Quantity = newQuantity
		p.AvgCost = f.Price
	case (oldQuantity > 0 && signedFill > 0) || (oldQuantity < 0 && signedFill < 0):
		// Adding to the position in the same direction.
		totalCost := float64(oldQuantity)*p.AvgCost + float64(signedFill)*f.Price
		p.Quantity = newQuantity
		p.AvgCost = totalCost / float64(newQuantity)
	default:
		// Reducing or flipping.
		closed := minInt64(absInt64(signedFill), absInt64(oldQuantity))
		sign := 1.0
		if oldQuantity < 0 {
			sign = -1.0
		}
		realized = float64(closed) * (f.Price - p.AvgCost) * sign
		p.Quantity = newQuantity
		p.RealizedPnL += realized

		if p.Quantity == 0 {
			p.AvgCost = 0
		} else if (oldQuantity > 0) != (p.Quantity > 0) {
			// Flip: the residual opens a new position at the flipping
			// fill's execution price (spec §4.1, §9 design note).
			p.AvgCost = f.Price
		}
	}

	p.UpdateMarketData(f.Price, now)
	return realized
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Portfolio is a point-in-time view over cash, positions, and aggregate P&L.
type Portfolio struct {
	Cash        float64              `json:"cash"`
	Equity      float64              `json:"equity"`
	BuyingPower float64              `json:"buying_power"`
	Positions   map[string]*Position `json:"positions"`
	DayPnL      float64              `json:"day_pnl"`
	TotalPnL    float64              `json:"total_pnl"`
	UpdatedAt   int64                `json:"updated_at"`
}
