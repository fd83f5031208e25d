package kalshi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TickerFeed subscribes to the ticker_v2 channel and caches the latest
// top of book per market. It plugs into infra.BaseWSWorker and
// authenticates during the handshake with the same signed headers as the
// REST API.
type TickerFeed struct {
	url     string
	signer  *Signer
	tickers []string

	mu     sync.RWMutex
	latest map[string]Market
}

// NewTickerFeed creates a feed handler for the given market tickers.
func NewTickerFeed(wsURL string, signer *Signer, tickers []string) *TickerFeed {
	return &TickerFeed{
		url:     wsURL,
		signer:  signer,
		tickers: tickers,
		latest:  make(map[string]Market),
	}
}

func (f *TickerFeed) ID() string     { return "KALSHI-TICKER" }
func (f *TickerFeed) GetURL() string { return f.url }

// GetHeader signs the handshake.
func (f *TickerFeed) GetHeader() (http.Header, error) {
	signed, err := f.signer.GenerateHeaders(http.MethodGet, "/trade-api/ws/v2")
	if err != nil {
		return nil, err
	}
	header := make(http.Header)
	for k, v := range signed {
		header.Set(k, v)
	}
	return header, nil
}

type subscribeCmd struct {
	ID     int             `json:"id"`
	Cmd    string          `json:"cmd"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

// OnConnect subscribes to the ticker channel for every configured market.
func (f *TickerFeed) OnConnect(_ context.Context, conn *websocket.Conn) error {
	cmd := subscribeCmd{
		ID:  1,
		Cmd: "subscribe",
		Params: subscribeParams{
			Channels:      []string{"ticker_v2"},
			MarketTickers: f.tickers,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

type feedMessage struct {
	Type string     `json:"type"`
	Msg  tickerData `json:"msg"`
}

type tickerData struct {
	MarketTicker string `json:"market_ticker"`
	YesBid       int64  `json:"yes_bid"`
	YesAsk       int64  `json:"yes_ask"`
	NoBid        int64  `json:"no_bid"`
	NoAsk        int64  `json:"no_ask"`
	Price        int64  `json:"price"`
	VolumeDelta  int64  `json:"volume_delta"`
}

// OnMessage folds a ticker update into the cache. Anything that is not a
// ticker update is ignored.
func (f *TickerFeed) OnMessage(_ context.Context, raw []byte) {
	var msg feedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("Kalshi WS malformed message", slog.Any("error", err))
		return
	}
	if msg.Type != "ticker_v2" && msg.Type != "ticker" {
		return
	}
	t := msg.Msg
	if t.MarketTicker == "" {
		return
	}

	f.mu.Lock()
	cur := f.latest[t.MarketTicker]
	cur.Ticker = t.MarketTicker
	cur.YesBid = t.YesBid
	cur.YesAsk = t.YesAsk
	cur.NoBid = t.NoBid
	cur.NoAsk = t.NoAsk
	if t.Price > 0 {
		cur.LastPrice = t.Price
	}
	cur.Volume += t.VolumeDelta
	cur.Status = "active"
	f.latest[t.MarketTicker] = cur
	f.mu.Unlock()
}

// OnPing keeps the connection alive.
func (f *TickerFeed) OnPing(_ context.Context, conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// Latest returns the cached top of book for one market, if any update
// has arrived yet.
func (f *TickerFeed) Latest(ticker string) (Market, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.latest[ticker]
	return m, ok
}
