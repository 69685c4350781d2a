// Package store implements the durable append-only journal and periodic
// snapshot described in spec §4.6/§6. Disk writes are wrapped in a gobreaker
// circuit breaker so that a failing disk trips after repeated failures
// instead of retry-storming on every fill; this is an infrastructure-level
// breaker, distinct from the risk engine's domain-level loss breaker.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker/v2"

	"paperbroker/internal/types"
)

const (
	snapshotFile  = "broker_state.json"
	journalFile   = "trade_journal.jsonl"
	metadataFile  = "metadata.json"
)

// Snapshot is the complete persisted broker state (spec §4.6 "Snapshot").
type Snapshot struct {
	Cash               float64                      `json:"cash"`
	Positions          map[string]*types.Position   `json:"positions"`
	Orders             map[string]*types.Order      `json:"orders"`
	Trades             []types.Trade                `json:"trades"`
	MarketData         map[string]types.MarketData  `json:"market_data"`
	Config             types.BrokerConfig            `json:"config"`
	DayStartEquity     float64                       `json:"day_start_equity"`
	CreatedAt          int64                         `json:"created_at"`
	OptionAssignments  []types.OptionAssignment      `json:"option_assignments"`
	OptionExpirations  []types.OptionExpiration      `json:"option_expirations"`
	SavedAt            int64                         `json:"saved_at"`
}

// Metadata tracks bookkeeping about the journal. SaveMetadata writes it to
// metadata.json; nothing in this package reads it back.
type Metadata struct {
	LastSnapshotAt int64  `json:"last_snapshot_at"`
	JournalPath    string `json:"journal_path"`
	TradeCount     int64  `json:"trade_count"`
}

// Stats summarizes the journal on disk.
type Stats struct {
	TotalTrades int64 `json:"total_trades"`
	SizeBytes   int64 `json:"size_bytes"`
}

// Store persists the broker's snapshot and trade journal under dir.
type Store struct {
	dir     string
	breaker *gobreaker.CircuitBreaker[any]
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	settings := gobreaker.Settings{
		Name:        "durable-store",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	return &Store{
		dir:     dir,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// SaveSnapshot atomically writes snap to disk via a tmp-file-then-rename,
// protected by the disk circuit breaker.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.writeSnapshot(snap)
	})
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

func (s *Store) writeSnapshot(snap Snapshot) error {
	target := s.path(snapshotFile)
	tmp := target + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create tmp snapshot: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close tmp snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the most recently saved snapshot. ok is false if no
// snapshot has ever been written.
func (s *Store) LoadSnapshot() (Snapshot, bool, error) {
	f, err := os.Open(s.path(snapshotFile))
	if os.IsNotExist(err) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("store: open snapshot: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return snap, true, nil
}

// AppendTrade appends a single JSONL record to the trade journal and syncs
// it to disk. The broker calls it before returning a fill; if it fails, the
// broker logs the error and still acknowledges the fill.
func (s *Store) AppendTrade(trade types.Trade) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.appendTradeLine(trade)
	})
	if err != nil {
		return fmt.Errorf("store: append trade: %w", err)
	}
	return nil
}

func (s *Store) appendTradeLine(trade types.Trade) error {
	f, err := os.OpenFile(s.path(journalFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal line: %w", err)
	}
	return f.Sync()
}

// LoadJournal replays every trade record from the journal in file order,
// used for disaster-recovery reconstruction (spec §4.6, property P6).
func (s *Store) LoadJournal() ([]types.Trade, error) {
	f, err := os.Open(s.path(journalFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open journal: %w", err)
	}
	defer f.Close()

	var trades []types.Trade
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t types.Trade
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("store: decode journal line: %w", err)
		}
		trades = append(trades, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("store: scan journal: %w", err)
	}
	return trades, nil
}

// ReplayJournal reconstructs cash and positions by applying every journaled
// trade, in order, to an empty book funded with initialCash. This is the
// disaster-recovery path of spec §4.6/property P6: when no snapshot exists
// (or the snapshot predates the journal), the journal alone must be enough
// to rebuild the book.
func ReplayJournal(initialCash float64, trades []types.Trade) Snapshot {
	cash := initialCash
	positions := make(map[string]*types.Position)

	for _, trade := range trades {
		cash += trade.NetAmount

		pos, ok := positions[trade.Symbol]
		if !ok {
			pos = types.NewPosition(trade.Symbol, trade.Timestamp)
			positions[trade.Symbol] = pos
		}
		pos.ApplyFill(types.Fill{
			ID:             trade.ID,
			OrderID:        trade.OrderID,
			Symbol:         trade.Symbol,
			Side:           trade.Side,
			Quantity:       trade.Quantity,
			Price:          trade.Price,
			Timestamp:      trade.Timestamp,
			Commission:     trade.Commission,
			InstrumentType: trade.InstrumentType,
			OptionDetails:  trade.OptionDetails,
			LegNumber:      trade.LegNumber,
		}, trade.Timestamp)
		if pos.Quantity == 0 {
			delete(positions, trade.Symbol)
		}
	}

	return Snapshot{
		Cash:           cash,
		Positions:      positions,
		Trades:         trades,
		DayStartEquity: initialCash,
	}
}

// JournalStats summarizes the current journal file.
func (s *Store) JournalStats() (Stats, error) {
	trades, err := s.LoadJournal()
	if err != nil {
		return Stats{}, err
	}
	info, err := os.Stat(s.path(journalFile))
	var size int64
	if err == nil {
		size = info.Size()
	}
	return Stats{TotalTrades: int64(len(trades)), SizeBytes: size}, nil
}

// BackupJournal copies the current journal to trade_journal_<suffix>.jsonl
// in the store directory, with the suffix supplied by the caller, and
// leaves the live journal in place. With no journal yet it does nothing.
func (s *Store) BackupJournal(suffix string) error {
	src := s.path(journalFile)
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read journal for backup: %w", err)
	}

	dst := s.path(fmt.Sprintf("trade_journal_%s.jsonl", suffix))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("store: write journal backup: %w", err)
	}
	return nil
}

// SaveMetadata persists bookkeeping about the journal.
func (s *Store) SaveMetadata(meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.path(metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("store: write metadata: %w", err)
	}
	return nil
}
