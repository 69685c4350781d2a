package broker

import "paperbroker/internal/store"

// SaveState writes a full snapshot of the broker to the durable store.
func (b *Broker) SaveState() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saveStateLocked()
}

func (b *Broker) saveStateLocked() error {
	if b.durableStore == nil {
		return nil
	}
	snap := store.Snapshot{
		Cash:              b.cash,
		Positions:         b.positions,
		Orders:            b.orders,
		Trades:            b.trades,
		MarketData:        b.marketData,
		Config:            b.config,
		DayStartEquity:    b.dayStartEquity,
		CreatedAt:         b.createdAt,
		OptionAssignments: b.optionAssignments,
		OptionExpirations: b.optionExpirations,
		SavedAt:           b.now(),
	}
	if err := b.durableStore.SaveSnapshot(snap); err != nil {
		return err
	}
	b.lastSavedAt = b.now()
	return nil
}

// autoSaveIfEnabledLocked saves state if autosave is on, logging (but not
// propagating) any failure, matching the original engine's
// auto_save_if_enabled.
func (b *Broker) autoSaveIfEnabledLocked() {
	if !b.autoSaveEnabled {
		return
	}
	if err := b.saveStateLocked(); err != nil {
		b.logger.LogDurabilityError(logCtx("", ""), "auto_save", err)
	}
}

// SetAutoSave toggles automatic snapshotting after fills and quote updates.
func (b *Broker) SetAutoSave(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoSaveEnabled = enabled
}

// RestoreFromSnapshot replaces in-memory state with a previously persisted
// snapshot, used at startup to resume a prior session.
func (b *Broker) RestoreFromSnapshot(snap store.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cash = snap.Cash
	if snap.Positions != nil {
		b.positions = snap.Positions
	}
	if snap.Orders != nil {
		b.orders = snap.Orders
	}
	b.trades = snap.Trades
	if snap.MarketData != nil {
		b.marketData = snap.MarketData
	}
	b.dayStartEquity = snap.DayStartEquity
	b.createdAt = snap.CreatedAt
	b.optionAssignments = snap.OptionAssignments
	b.optionExpirations = snap.OptionExpirations

	b.pendingOrder = b.pendingOrder[:0]
	for id, order := range b.orders {
		if order.CanFill() {
			b.pendingOrder = append(b.pendingOrder, id)
		}
	}
}

// GetJournalStats returns the durable store's trade journal statistics.
func (b *Broker) GetJournalStats() (store.Stats, error) {
	if b.durableStore == nil {
		return store.Stats{}, nil
	}
	return b.durableStore.JournalStats()
}

// BackupJournal copies the live journal to a backup file named with suffix.
func (b *Broker) BackupJournal(suffix string) error {
	if b.durableStore == nil {
		return nil
	}
	return b.durableStore.BackupJournal(suffix)
}
