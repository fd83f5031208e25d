package ticks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra/kalshi"
)

// maxConsecutivePollFailures bounds how many whole polls may fail in a
// row before the source surfaces a terminal error to the engine. It must
// exceed the circuit breaker's failure threshold, so the breaker gets to
// open and cool down before the source gives up.
const maxConsecutivePollFailures = 10

const pollTimeout = 8 * time.Second

// MarketFetcher is the REST surface the live source needs.
type MarketFetcher interface {
	GetMarket(ctx context.Context, ticker string) (kalshi.Market, error)
}

// FeedCache is the websocket-fed snapshot cache, consulted before
// falling back to REST.
type FeedCache interface {
	Latest(ticker string) (kalshi.Market, bool)
}

// LiveSource polls the exchange for the configured tickers on a fixed
// cadence. A websocket cache, when present, serves fresh data without a
// REST round trip. Individual fetch failures skip the ticker for that
// poll; whole-poll failures trip a circuit breaker and eventually a
// terminal error.
type LiveSource struct {
	client   MarketFetcher
	feed     FeedCache
	tickers  []string
	interval time.Duration
	breaker  *infra.CircuitBreaker

	failures int
	first    bool
}

// NewLiveSource builds a live source. feed may be nil.
func NewLiveSource(client MarketFetcher, feed FeedCache, tickers []string, interval time.Duration) *LiveSource {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	return &LiveSource{
		client:   client,
		feed:     feed,
		tickers:  sorted,
		interval: interval,
		breaker:  infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("kalshi-poll")),
		first:    true,
	}
}

// Next blocks until the next poll is due and returns one batch. Inter-tick
// spacing is approximate; consumers must tolerate variable gaps.
func (s *LiveSource) Next(ctx context.Context) (Batch, error) {
	if s.first {
		s.first = false
	} else {
		select {
		case <-ctx.Done():
			return Batch{}, ctx.Err()
		case <-time.After(s.interval):
		}
	}

	for {
		if !s.breaker.Allow() {
			select {
			case <-ctx.Done():
				return Batch{}, ctx.Err()
			case <-time.After(s.interval):
			}
			continue
		}

		batch, err := s.poll(ctx)
		if err == nil {
			s.failures = 0
			s.breaker.RecordSuccess()
			return batch, nil
		}
		if ctx.Err() != nil {
			return Batch{}, ctx.Err()
		}

		s.failures++
		s.breaker.RecordFailure()
		if s.failures >= maxConsecutivePollFailures {
			return Batch{}, fmt.Errorf("live feed down after %d consecutive poll failures: %w", s.failures, err)
		}

		delay := infra.CalculateBackoff(s.failures - 1)
		slog.Warn("live poll failed, backing off",
			slog.Int("failures", s.failures),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return Batch{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// poll gathers one snapshot per ticker. It fails only when every ticker
// fails; partial data is a usable batch.
func (s *LiveSource) poll(ctx context.Context) (Batch, error) {
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	now := time.Now().UTC()
	batch := Batch{Time: now}
	var lastErr error

	for _, ticker := range s.tickers {
		m, err := s.fetch(pollCtx, ticker)
		if err != nil {
			lastErr = err
			slog.Warn("ticker fetch failed",
				slog.String("ticker", ticker),
				slog.Any("error", err))
			continue
		}
		batch.Snapshots = append(batch.Snapshots, toSnapshot(m, now))
	}

	if len(batch.Snapshots) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no tickers configured")
		}
		return Batch{}, lastErr
	}
	return batch, nil
}

func (s *LiveSource) fetch(ctx context.Context, ticker string) (kalshi.Market, error) {
	if s.feed != nil {
		if m, ok := s.feed.Latest(ticker); ok {
			return m, nil
		}
	}
	return s.client.GetMarket(ctx, ticker)
}

func toSnapshot(m kalshi.Market, at time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Ticker:    m.Ticker,
		Time:      at,
		YesBid:    m.YesBid,
		YesAsk:    m.YesAsk,
		NoBid:     m.NoBid,
		NoAsk:     m.NoAsk,
		LastPrice: m.LastPrice,
		Volume:    m.Volume,
		Status:    parseStatus(marketStatus(m.Status)),
	}
}

func marketStatus(s string) string {
	if s == "active" {
		return "open"
	}
	return s
}
