package store

import (
	"os"
	"testing"

	"paperbroker/internal/types"
)

func TestSaveAndLoadSnapshotRoundTrips(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	snap := Snapshot{
		Cash: 9500.0,
		Positions: map[string]*types.Position{
			"AAPL": {Symbol: "AAPL", Quantity: 10, AvgCost: 150.0},
		},
		Orders:         map[string]*types.Order{},
		DayStartEquity: 10000.0,
		CreatedAt:      1700000000,
	}

	if err := s.SaveSnapshot(snap); err != nil {
		t.Fatalf("unexpected error saving snapshot: %v", err)
	}

	loaded, ok, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("unexpected error loading snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected a snapshot to exist")
	}
	if loaded.Cash != snap.Cash {
		t.Errorf("cash = %v, want %v", loaded.Cash, snap.Cash)
	}
	pos, ok := loaded.Positions["AAPL"]
	if !ok || pos.Quantity != 10 {
		t.Fatalf("expected the AAPL position to round-trip, got %+v", loaded.Positions)
	}
}

func TestLoadSnapshotMissingReturnsNotOK(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false when no snapshot has ever been written")
	}
}

func TestAppendAndLoadJournal(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	trades := []types.Trade{
		{ID: "t1", Symbol: "AAPL", Quantity: 10, Price: 150.0, Timestamp: 1},
		{ID: "t2", Symbol: "AAPL", Quantity: 5, Price: 151.0, Timestamp: 2},
	}
	for _, tr := range trades {
		if err := s.AppendTrade(tr); err != nil {
			t.Fatalf("unexpected error appending trade: %v", err)
		}
	}

	loaded, err := s.LoadJournal()
	if err != nil {
		t.Fatalf("unexpected error loading journal: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 journaled trades, got %d", len(loaded))
	}
	if loaded[0].ID != "t1" || loaded[1].ID != "t2" {
		t.Errorf("expected trades to replay in append order, got %+v", loaded)
	}
}

func TestJournalStatsReflectsAppendedTrades(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTrade(types.Trade{ID: "t1", Symbol: "AAPL", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	stats, err := s.JournalStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTrades != 1 {
		t.Errorf("total trades = %d, want 1", stats.TotalTrades)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("expected a positive journal size, got %d", stats.SizeBytes)
	}
}

func TestReplayJournalRebuildsCashAndPositionsFromEmpty(t *testing.T) {
	trades := []types.Trade{
		{ID: "t1", Symbol: "AAPL", Side: types.Buy, Quantity: 10, Price: 150.0, Timestamp: 1, NetAmount: types.NetAmountForFill(types.Buy, 150.0, 10, 1.0), Commission: 1.0},
		{ID: "t2", Symbol: "AAPL", Side: types.Sell, Quantity: 4, Price: 160.0, Timestamp: 2, NetAmount: types.NetAmountForFill(types.Sell, 160.0, 4, 1.0), Commission: 1.0},
	}

	snap := ReplayJournal(10000.0, trades)

	wantCash := 10000.0 + trades[0].NetAmount + trades[1].NetAmount
	if snap.Cash != wantCash {
		t.Errorf("cash = %v, want %v", snap.Cash, wantCash)
	}
	pos, ok := snap.Positions["AAPL"]
	if !ok {
		t.Fatal("expected an AAPL position to be rebuilt from the journal")
	}
	if pos.Quantity != 6 {
		t.Errorf("quantity = %d, want 6", pos.Quantity)
	}
	if pos.AvgCost != 150.0 {
		t.Errorf("avg cost = %v, want 150.0 (unchanged by the partial sell)", pos.AvgCost)
	}
	if len(snap.Trades) != 2 {
		t.Errorf("expected the replayed snapshot to carry the journaled trades, got %d", len(snap.Trades))
	}
}

func TestReplayJournalDropsFlattenedPositions(t *testing.T) {
	trades := []types.Trade{
		{ID: "t1", Symbol: "AAPL", Side: types.Buy, Quantity: 10, Price: 150.0, Timestamp: 1, NetAmount: types.NetAmountForFill(types.Buy, 150.0, 10, 0)},
		{ID: "t2", Symbol: "AAPL", Side: types.Sell, Quantity: 10, Price: 155.0, Timestamp: 2, NetAmount: types.NetAmountForFill(types.Sell, 155.0, 10, 0)},
	}

	snap := ReplayJournal(10000.0, trades)

	if _, ok := snap.Positions["AAPL"]; ok {
		t.Error("expected the fully closed AAPL position to be absent from the rebuilt book")
	}
	wantCash := 10000.0 + trades[0].NetAmount + trades[1].NetAmount
	if snap.Cash != wantCash {
		t.Errorf("cash = %v, want %v", snap.Cash, wantCash)
	}
}

func TestBackupJournalCopiesCurrentContent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTrade(types.Trade{ID: "t1", Symbol: "AAPL", Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.BackupJournal("20240101"); err != nil {
		t.Fatalf("unexpected error backing up journal: %v", err)
	}

	want, err := os.ReadFile(s.path(journalFile))
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(s.path("trade_journal_20240101.jsonl"))
	if err != nil {
		t.Fatalf("expected the backup file to exist: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("backup content = %q, want %q", got, want)
	}
}
