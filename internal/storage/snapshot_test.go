package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ledger"
)

func sampleSnapshot(tick time.Time) *EngineSnapshot {
	return &EngineSnapshot{
		LastTick: tick,
		Ledger: ledger.State{
			Cash:       50000,
			Inventory:  map[string]int64{"KXHIGHNY-25DEC04-B49.5": 70},
			DailySpent: 50000,
			Day:        "2025-12-04",
		},
		OpenOrders: []domain.LiveOrder{
			{ID: "SIM-3", Ticker: "KXHIGHNY-25DEC04-B49.5", Side: domain.SideYes, Price: 44, Qty: 10, PlacedAt: tick},
		},
	}
}

func TestSnapshotManager_RoundTrip(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())
	tick := time.Date(2025, 12, 4, 15, 0, 0, 0, time.UTC)

	if err := sm.Save(sampleSnapshot(tick)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadLatest returned nil after Save")
	}
	if loaded.Ledger.Cash != 50000 || loaded.Ledger.DailySpent != 50000 {
		t.Errorf("ledger state = %+v", loaded.Ledger)
	}
	if loaded.Ledger.Inventory["KXHIGHNY-25DEC04-B49.5"] != 70 {
		t.Errorf("inventory = %v", loaded.Ledger.Inventory)
	}
	if len(loaded.OpenOrders) != 1 || loaded.OpenOrders[0].ID != "SIM-3" {
		t.Errorf("open orders = %+v", loaded.OpenOrders)
	}
	if loaded.LastTick.Unix() != tick.Unix() {
		t.Errorf("last tick = %v, want %v", loaded.LastTick, tick)
	}
}

func TestSnapshotManager_LoadLatestPicksNewest(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())
	t1 := time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 12, 4, 12, 0, 0, 0, time.UTC)

	old := sampleSnapshot(t1)
	old.Ledger.Cash = 1
	if err := sm.Save(old); err != nil {
		t.Fatal(err)
	}
	if err := sm.Save(sampleSnapshot(t2)); err != nil {
		t.Fatal(err)
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Ledger.Cash != 50000 {
		t.Errorf("loaded cash = %d, want the newer snapshot", loaded.Ledger.Cash)
	}
}

func TestSnapshotManager_EmptyDir(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())
	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if loaded != nil {
		t.Error("expected nil snapshot for empty dir")
	}
}

func TestSnapshotManager_Cleanup(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())
	base := time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := sm.Save(sampleSnapshot(base.Add(time.Duration(i) * time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	if err := sm.Cleanup(2); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	want := base.Add(4 * time.Hour)
	if loaded.LastTick.Unix() != want.Unix() {
		t.Errorf("latest after cleanup = %v, want %v", loaded.LastTick, want)
	}
}

func TestSnapshotManager_RejectsIncompleteSnapshot(t *testing.T) {
	dir := t.TempDir()
	sm := NewSnapshotManager(dir)

	// A snapshot without last_tick or a day boundary must fail loudly,
	// not warm-start the engine with zeroed budget tracking.
	path := filepath.Join(dir, "snapshot_1764860400.json")
	if err := os.WriteFile(path, []byte(`{"ledger":{"cash_cents":1000}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := sm.LoadLatest(); err == nil {
		t.Fatal("expected error for snapshot missing required fields")
	}
}
