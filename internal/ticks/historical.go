package ticks

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
)

// HistoricalSource replays captured market_data_*.csv files as snapshot
// batches. All files are loaded and merged up front; rows sharing a
// timestamp become one batch. Malformed rows are skipped with a warning,
// never fatal.
type HistoricalSource struct {
	batches []Batch
	pos     int
}

// NewHistoricalSource loads every market_data_*.csv under dir.
func NewHistoricalSource(dir string) (*HistoricalSource, error) {
	files, err := filepath.Glob(filepath.Join(dir, "market_data_*.csv"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no market_data_*.csv files in %s", dir)
	}
	sort.Strings(files)

	var rows []domain.MarketSnapshot
	for _, f := range files {
		fileRows, err := loadFile(f)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
		rows = append(rows, fileRows...)
	}

	slog.Info("historical data loaded",
		slog.Int("files", len(files)),
		slog.Int("rows", len(rows)))

	return &HistoricalSource{batches: groupBatches(rows)}, nil
}

// Next returns the following batch, or io.EOF once the replay is done.
func (s *HistoricalSource) Next(_ context.Context) (Batch, error) {
	if s.pos >= len(s.batches) {
		return Batch{}, io.EOF
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

// Rewind restarts the replay from the first batch.
func (s *HistoricalSource) Rewind() { s.pos = 0 }

func loadFile(path string) ([]domain.MarketSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"timestamp", "ticker", "yes_bid", "yes_ask", "no_bid", "no_ask"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var rows []domain.MarketSnapshot
	line := 1
	for {
		line++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("skipping unreadable csv row",
				slog.String("file", filepath.Base(path)),
				slog.Int("line", line),
				slog.Any("error", err))
			continue
		}

		snap, err := parseRow(record, cols)
		if err != nil {
			slog.Warn("skipping malformed csv row",
				slog.String("file", filepath.Base(path)),
				slog.Int("line", line),
				slog.Any("error", err))
			continue
		}
		rows = append(rows, snap)
	}
	return rows, nil
}

func parseRow(record []string, cols map[string]int) (domain.MarketSnapshot, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	ts, err := parseTimestamp(field("timestamp"))
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	ticker := field("ticker")
	if ticker == "" {
		return domain.MarketSnapshot{}, fmt.Errorf("empty ticker")
	}

	snap := domain.MarketSnapshot{Ticker: ticker, Time: ts, Status: domain.StatusOpen}
	if s := field("status"); s != "" {
		snap.Status = parseStatus(s)
	}

	for _, p := range []struct {
		name string
		dst  *domain.Cents
	}{
		{"yes_bid", &snap.YesBid},
		{"yes_ask", &snap.YesAsk},
		{"no_bid", &snap.NoBid},
		{"no_ask", &snap.NoAsk},
		{"last_price", &snap.LastPrice},
		{"volume", &snap.Volume},
	} {
		raw := field(p.name)
		if raw == "" {
			continue
		}
		// The collector writes whole cents but rows sometimes carry a
		// float representation like "44.0".
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("%s: %w", p.name, err)
		}
		*p.dst = d.Round(0).IntPart()
	}
	return snap, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

func parseStatus(s string) domain.MarketStatus {
	switch s {
	case "closed", "finalized":
		return domain.StatusClosed
	case "settled":
		return domain.StatusSettled
	default:
		return domain.StatusOpen
	}
}

// groupBatches sorts rows by time and folds rows sharing a timestamp into
// one batch, snapshots sorted by ticker. A later row for the same ticker
// and timestamp supersedes the earlier one.
func groupBatches(rows []domain.MarketSnapshot) []Batch {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })

	var batches []Batch
	for _, row := range rows {
		n := len(batches)
		if n == 0 || !batches[n-1].Time.Equal(row.Time) {
			batches = append(batches, Batch{Time: row.Time})
			n++
		}
		b := &batches[n-1]
		replaced := false
		for i := range b.Snapshots {
			if b.Snapshots[i].Ticker == row.Ticker {
				b.Snapshots[i] = row
				replaced = true
				break
			}
		}
		if !replaced {
			b.Snapshots = append(b.Snapshots, row)
		}
	}

	for i := range batches {
		snaps := batches[i].Snapshots
		sort.Slice(snaps, func(a, b int) bool { return snaps[a].Ticker < snaps[b].Ticker })
	}
	return batches
}
