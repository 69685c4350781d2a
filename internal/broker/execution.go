package broker

import (
	"fmt"

	"paperbroker/internal/calendar"
	"paperbroker/internal/types"
)

// tryExecuteOrderLocked dispatches order to the matching rule for its
// OrderType and applies whatever fills result. Must be called with mu held.
func (b *Broker) tryExecuteOrderLocked(order *types.Order) types.TradeExecution {
	now := b.now()

	if !b.marketCal.IsTradingAllowed(now) {
		b.trackPendingLocked(order.ID)
		return types.TradeExecution{
			OrderID: order.ID,
			Status:  types.StatusPending,
			Message: b.marketClosedMessageLocked(now),
		}
	}

	var fill *types.Fill
	switch order.OrderType {
	case types.Market:
		fill = b.executeMarketOrderLocked(order)
	case types.Limit:
		fill = b.executeLimitOrderLocked(order)
	case types.Stop:
		fill = b.executeStopOrderLocked(order)
	case types.StopLimit:
		fill = b.executeStopLimitOrderLocked(order)
	}

	if fill == nil {
		b.trackPendingLocked(order.ID)
		return types.TradeExecution{OrderID: order.ID, Status: order.Status, Message: "order pending, no fill"}
	}

	b.applyFillLocked(order, *fill)

	if order.CanFill() {
		b.trackPendingLocked(order.ID)
	} else {
		b.removePendingLocked(order.ID)
	}

	return types.TradeExecution{
		OrderID: order.ID,
		Fills:   order.Fills,
		Status:  order.Status,
		Message: "order processed",
	}
}

func (b *Broker) marketClosedMessageLocked(now int64) string {
	session := b.marketCal.GetCurrentSession(now)
	switch {
	case session.IsHoliday && session.Session == calendar.Closed:
		return fmt.Sprintf("market closed for holiday: %s", session.HolidayName)
	case session.Session == calendar.Closed:
		return "market is closed"
	case session.Session == calendar.PreMarket:
		return "pre-market trading is not enabled"
	case session.Session == calendar.AfterHours:
		return "after-hours trading is not enabled"
	default:
		return "trading is not currently allowed"
	}
}

// executeMarketOrderLocked fills at the quote's ask (buy) or bid (sell),
// falling back to the quote's last price when that side is missing, with
// slippage applied. With no quote for the symbol it returns nil and the
// order stays pending.
func (b *Broker) executeMarketOrderLocked(order *types.Order) *types.Fill {
	quote, ok := b.marketData[order.Symbol]
	if !ok {
		return nil
	}

	var basePrice float64
	if order.Side == types.Buy {
		basePrice = quote.Ask
		if basePrice <= 0 {
			basePrice = quote.LastPrice
		}
	} else {
		basePrice = quote.Bid
		if basePrice <= 0 {
			basePrice = quote.LastPrice
		}
	}
	if basePrice <= 0 {
		return nil
	}

	fillPrice := b.applySlippage(basePrice, order.Side, order.Remaining)
	quantity := b.determineFillQuantity(order.Remaining)
	commission := b.calculateCommission(order.InstrumentType, quantity)

	return &types.Fill{
		ID:             newID(),
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Side:           order.Side,
		Quantity:       quantity,
		Price:          fillPrice,
		Timestamp:      b.now(),
		Commission:     commission,
		InstrumentType: order.InstrumentType,
		OptionDetails:  order.OptionDetails,
	}
}

// executeLimitOrderLocked fills at the order's exact limit price, with no
// slippage, once the market has crossed the limit.
func (b *Broker) executeLimitOrderLocked(order *types.Order) *types.Fill {
	if order.Price == nil {
		return nil
	}
	limit := *order.Price

	quote, hasQuote := b.marketData[order.Symbol]
	if !limitCrosses(order.Side, limit, quote, hasQuote) {
		return nil
	}

	quantity := b.determineFillQuantity(order.Remaining)
	commission := b.calculateCommission(order.InstrumentType, quantity)

	return &types.Fill{
		ID:             newID(),
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Side:           order.Side,
		Quantity:       quantity,
		Price:          limit,
		Timestamp:      b.now(),
		Commission:     commission,
		InstrumentType: order.InstrumentType,
		OptionDetails:  order.OptionDetails,
	}
}

func limitCrosses(side types.OrderSide, limit float64, quote types.MarketData, hasQuote bool) bool {
	if side == types.Buy {
		if hasQuote && quote.Ask > 0 {
			return quote.Ask <= limit
		}
		return hasQuote && quote.LastPrice > 0 && quote.LastPrice <= limit
	}
	if hasQuote && quote.Bid > 0 {
		return quote.Bid >= limit
	}
	return hasQuote && quote.LastPrice > 0 && quote.LastPrice >= limit
}

// executeStopOrderLocked implements the stop trigger the original engine
// left unimplemented (spec §9 "Redesigned Behavior" #1, §4.5.2): once the
// last trade price crosses the stop, the order converts to a market fill.
func (b *Broker) executeStopOrderLocked(order *types.Order) *types.Fill {
	if order.StopPrice == nil {
		return nil
	}
	quote, ok := b.marketData[order.Symbol]
	if !ok || !stopTriggered(order.Side, *order.StopPrice, quote) {
		return nil
	}
	return b.executeMarketOrderLocked(order)
}

// executeStopLimitOrderLocked triggers on the stop price like a plain stop
// order, then fills like a limit order at the order's limit price.
func (b *Broker) executeStopLimitOrderLocked(order *types.Order) *types.Fill {
	if order.StopPrice == nil || order.Price == nil {
		return nil
	}
	quote, ok := b.marketData[order.Symbol]
	if !ok || !stopTriggered(order.Side, *order.StopPrice, quote) {
		return nil
	}
	return b.executeLimitOrderLocked(order)
}

func stopTriggered(side types.OrderSide, stopPrice float64, quote types.MarketData) bool {
	last := quote.LastPrice
	if last <= 0 {
		last = quote.MidPrice()
	}
	if last <= 0 {
		return false
	}
	if side == types.Buy {
		return last >= stopPrice
	}
	return last <= stopPrice
}

// applySlippage implements spec §4.5's exact slippage model: a size-scaled
// fraction of the configured basis points, worse for the taker in either
// direction.
func (b *Broker) applySlippage(price float64, side types.OrderSide, quantity int64) float64 {
	slippageFactor := b.config.SlippageBps / 10000.0
	sizeImpact := float64(quantity) / 1000.0
	if sizeImpact > 1.0 {
		sizeImpact = 1.0
	}
	totalSlippage := slippageFactor * (1.0 + sizeImpact)

	if side == types.Buy {
		return price * (1.0 + totalSlippage)
	}
	return price * (1.0 - totalSlippage)
}

// determineFillQuantity simulates partial fills using the broker's own
// seeded RNG (spec §9 "Randomness" / "Redesigned Behavior" #2), never the
// global rand source.
func (b *Broker) determineFillQuantity(remaining int64) int64 {
	if b.rng.Float64() < b.config.PartialFillProbability {
		minQty := int64(float64(remaining) * b.config.MinPartialFillRatio)
		if minQty < 1 {
			minQty = 1
		}
		if minQty >= remaining {
			return remaining
		}
		span := remaining - minQty + 1
		return minQty + b.rng.Int63n(span)
	}
	return remaining
}

// applyFillLocked records a fill against order, updates the position and
// cash, writes the journal entry, and feeds the risk engine.
func (b *Broker) applyFillLocked(order *types.Order, fill types.Fill) {
	now := b.now()
	order.AddFill(fill, now)

	b.applyFillToPositionLocked(fill)

	netAmount := types.NetAmountForFill(fill.Side, fill.Price, fill.Quantity, fill.Commission)
	b.cash += netAmount

	trade := types.Trade{
		ID:             newID(),
		Symbol:         fill.Symbol,
		Side:           fill.Side,
		Quantity:       fill.Quantity,
		Price:          fill.Price,
		Timestamp:      now,
		OrderID:        order.ID,
		Commission:     fill.Commission,
		NetAmount:      netAmount,
		InstrumentType: fill.InstrumentType,
		OptionDetails:  fill.OptionDetails,
		LegNumber:      fill.LegNumber,
	}
	b.recordTradeLocked(trade)

	snap := b.mtmSnapshotLocked()
	b.riskEngine.UpdateAfterTrade(trade, snap.UnrealizedPnL+snap.RealizedPnL, b.dayStartEquity, now)

	b.logger.LogFill(logCtx(order.ID, fill.Symbol), map[string]any{
		"side":       fill.Side,
		"quantity":   fill.Quantity,
		"price":      fill.Price,
		"commission": fill.Commission,
	})

	b.autoSaveIfEnabledLocked()
}
