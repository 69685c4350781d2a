// Package audit optionally mirrors durable trades into Postgres, so external
// reporting tools can query trade history with SQL without touching the
// broker's journal files. It is strictly best-effort and sits off the fill
// critical path (spec §7 Durability class): a failed mirror write never
// rolls back a trade or blocks a caller.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paperbroker/internal/database"
	"paperbroker/internal/types"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS paperbroker_trades (
	id              TEXT PRIMARY KEY,
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	quantity        BIGINT NOT NULL,
	price           DOUBLE PRECISION NOT NULL,
	timestamp       BIGINT NOT NULL,
	order_id        TEXT NOT NULL,
	commission      DOUBLE PRECISION NOT NULL,
	net_amount      DOUBLE PRECISION NOT NULL,
	instrument_type TEXT NOT NULL,
	option_details  JSONB,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Mirror writes durable trades to a single Postgres table for external
// reporting.
type Mirror struct {
	db *database.DB
}

// Connect opens the Postgres connection and ensures the mirror table
// exists.
func Connect(ctx context.Context, dsn string) (*Mirror, error) {
	cfg := database.DefaultConfig()
	cfg.DSN = dsn

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create table: %w", err)
	}
	return &Mirror{db: db}, nil
}

// Record inserts trade into the mirror table, skipping a row that already
// exists (trades are immutable, so a duplicate insert is always a retry of
// the same write).
func (m *Mirror) Record(ctx context.Context, trade types.Trade) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var detailsJSON any
	if trade.OptionDetails != nil {
		data, err := json.Marshal(trade.OptionDetails)
		if err != nil {
			return fmt.Errorf("audit: marshal option details: %w", err)
		}
		detailsJSON = data
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO paperbroker_trades
			(id, symbol, side, quantity, price, timestamp, order_id, commission, net_amount, instrument_type, option_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		trade.ID, trade.Symbol, trade.Side, trade.Quantity, trade.Price, trade.Timestamp,
		trade.OrderID, trade.Commission, trade.NetAmount, trade.InstrumentType, detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("audit: insert trade %s: %w", trade.ID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *Mirror) Close() error {
	return m.db.Close()
}
