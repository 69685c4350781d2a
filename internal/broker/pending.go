package broker

import "paperbroker/internal/types"

// UpdateMarketData records the latest quote for symbol, revalues any held
// position, and retries pending orders eligible to fill against the new
// quote.
func (b *Broker) UpdateMarketData(data types.MarketData) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.marketData[data.Symbol] = data

	if b.onQuote != nil {
		go b.onQuote(data)
	}

	if pos, ok := b.positions[data.Symbol]; ok {
		pos.UpdateMarketData(data.LastPrice, b.now())
	}

	b.processPendingOrdersLocked(data.Symbol)

	if b.now()-b.lastSavedAt > 60 {
		b.autoSaveIfEnabledLocked()
	}
}

// trackPendingLocked appends orderID to the FIFO pending queue if it is not
// already present. Explicit FIFO tracking replaces the original engine's
// reliance on Rust HashMap iteration order (spec §9 "Redesigned Behavior"
// #3) — Go map iteration order is equally unspecified, so pending orders
// are never walked via range over the orders map.
func (b *Broker) trackPendingLocked(orderID string) {
	for _, id := range b.pendingOrder {
		if id == orderID {
			return
		}
	}
	b.pendingOrder = append(b.pendingOrder, orderID)
}

func (b *Broker) removePendingLocked(orderID string) {
	for i, id := range b.pendingOrder {
		if id == orderID {
			b.pendingOrder = append(b.pendingOrder[:i], b.pendingOrder[i+1:]...)
			return
		}
	}
}

// processPendingOrdersLocked retries every pending order on symbol, in the
// FIFO order they were queued, giving each one exclusive access to the
// current quote before moving to the next.
func (b *Broker) processPendingOrdersLocked(symbol string) {
	candidates := make([]string, 0, len(b.pendingOrder))
	for _, id := range b.pendingOrder {
		order, ok := b.orders[id]
		if !ok || order.Symbol != symbol || !order.CanFill() {
			continue
		}
		candidates = append(candidates, id)
	}

	for _, id := range candidates {
		order, ok := b.orders[id]
		if !ok || !order.CanFill() {
			continue
		}
		b.tryExecuteOrderLocked(order)
	}
}
