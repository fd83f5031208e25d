package ticks

import (
	"context"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
)

// Batch holds every market snapshot sharing one timestamp. Snapshots are
// sorted by ticker so consumers see a stable order.
type Batch struct {
	Time      time.Time
	Snapshots []domain.MarketSnapshot
}

// Source produces market snapshot batches in non-decreasing time order.
// Next returns io.EOF when a finite source is exhausted; a live source
// blocks until the next batch is due.
type Source interface {
	Next(ctx context.Context) (Batch, error)
}
