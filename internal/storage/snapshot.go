package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/internal/ledger"
)

// EngineSnapshot is a point-in-time capture of ledger state and open
// orders, used to warm-start the engine instead of starting from zero.
type EngineSnapshot struct {
	LastTick   time.Time          `json:"last_tick"`
	Ledger     ledger.State       `json:"ledger"`
	OpenOrders []domain.LiveOrder `json:"open_orders"`
}

// validate rejects snapshots missing required fields. A bad snapshot is
// fatal at startup; silently defaulting would restart budget and
// inventory tracking from zero.
func (s *EngineSnapshot) validate() error {
	if s.LastTick.IsZero() {
		return fmt.Errorf("missing last_tick")
	}
	if s.Ledger.Day == "" {
		return fmt.Errorf("missing ledger day boundary")
	}
	if s.Ledger.Cash < 0 {
		return fmt.Errorf("negative cash %d", s.Ledger.Cash)
	}
	return nil
}

// SnapshotManager handles saving and loading engine snapshots.
type SnapshotManager struct {
	dir string
}

// NewSnapshotManager creates a snapshot manager over one directory.
func NewSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{dir: dir}
}

// Save writes a snapshot to disk, named by its tick timestamp.
func (sm *SnapshotManager) Save(snap *EngineSnapshot) error {
	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	filename := fmt.Sprintf("snapshot_%d.json", snap.LastTick.Unix())
	path := filepath.Join(sm.dir, filename)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	slog.Info("Snapshot saved",
		slog.Time("last_tick", snap.LastTick),
		slog.String("path", path))

	return nil
}

// LoadLatest loads the most recent snapshot from disk.
// Returns nil if no snapshot exists.
func (sm *SnapshotManager) LoadLatest() (*EngineSnapshot, error) {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No snapshots yet
		}
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}

	var latestPath string
	var latestTs int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "snapshot_%d.json", &ts); err != nil {
			continue // Not a snapshot file
		}
		if ts > latestTs {
			latestTs = ts
			latestPath = filepath.Join(sm.dir, entry.Name())
		}
	}

	if latestPath == "" {
		return nil, nil // No snapshots found
	}

	data, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if err := snap.validate(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", latestPath, err)
	}

	slog.Info("Snapshot loaded",
		slog.Time("last_tick", snap.LastTick),
		slog.String("path", latestPath))

	return &snap, nil
}

// Cleanup removes old snapshots, keeping only the latest N.
func (sm *SnapshotManager) Cleanup(keepCount int) error {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type snapFile struct {
		path string
		ts   int64
	}
	var files []snapFile

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "snapshot_%d.json", &ts); err == nil {
			files = append(files, snapFile{path: filepath.Join(sm.dir, entry.Name()), ts: ts})
		}
	}

	if len(files) <= keepCount {
		return nil
	}

	// Newest first; small N so a simple sort is fine.
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if files[j].ts > files[i].ts {
				files[i], files[j] = files[j], files[i]
			}
		}
	}

	for i := keepCount; i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil {
			slog.Warn("Failed to remove old snapshot", slog.String("path", files[i].path))
		} else {
			slog.Info("Removed old snapshot", slog.String("path", files[i].path))
		}
	}

	return nil
}
