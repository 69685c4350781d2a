package broker

import "paperbroker/internal/types"

// applyFillToPositionLocked updates (or creates, or closes out) the
// position for fill.Symbol and returns the realized P&L the fill produced.
func (b *Broker) applyFillToPositionLocked(fill types.Fill) float64 {
	pos, ok := b.positions[fill.Symbol]
	if !ok {
		pos = types.NewPosition(fill.Symbol, b.now())
		b.positions[fill.Symbol] = pos
	}

	realized := pos.ApplyFill(fill, b.now())

	if pos.Quantity == 0 {
		delete(b.positions, fill.Symbol)
	}

	return realized
}

// recordTradeLocked appends trade to the in-memory trade log and durably
// journals it. A journal write failure is logged and does not roll back
// the trade — the fill already happened in memory (spec §7 Durability
// class: best-effort persistence, never a blocker on the critical path of
// an already-accepted fill).
func (b *Broker) recordTradeLocked(trade types.Trade) {
	b.trades = append(b.trades, trade)

	if b.durableStore != nil {
		if err := b.durableStore.AppendTrade(trade); err != nil {
			b.logger.LogDurabilityError(logCtx(trade.OrderID, trade.Symbol), "append_trade", err)
		}
	}

	if b.onTrade != nil {
		go b.onTrade(trade)
	}
}
