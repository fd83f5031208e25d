package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jetpackjules/Kalshi-Trader/internal/infra"
)

const apiPrefix = "/trade-api/v2"

// maxAttempts bounds the per-request retry loop. Retries cover 429 and
// 5xx responses plus transport errors; 4xx responses fail immediately.
const maxAttempts = 3

// Client talks to the Kalshi trade API. All price and balance values are
// integer cents. Safe for concurrent use.
type Client struct {
	baseURL string
	signer  *Signer
	hc      *http.Client
}

// NewClient builds a REST client against the given base URL, e.g.
// https://api.elections.kalshi.com.
func NewClient(baseURL string, signer *Signer) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		signer:  signer,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// GetBalance returns the available account balance in cents.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	var resp balanceResponse
	err := c.do(ctx, infra.GetKalshiPortfolioLimiter(), http.MethodGet, "/portfolio/balance", nil, &resp)
	return resp.Balance, err
}

// GetPositions returns every open market position.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var resp positionsResponse
	err := c.do(ctx, infra.GetKalshiPortfolioLimiter(), http.MethodGet, "/portfolio/positions", nil, &resp)
	return resp.MarketPositions, err
}

// GetRestingOrders returns the resting orders for one ticker.
func (c *Client) GetRestingOrders(ctx context.Context, ticker string) ([]Order, error) {
	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("status", "resting")

	var resp ordersResponse
	err := c.do(ctx, infra.GetKalshiPortfolioLimiter(), http.MethodGet, "/portfolio/orders?"+q.Encode(), nil, &resp)
	return resp.Orders, err
}

// GetMarket returns one market's current top of book.
func (c *Client) GetMarket(ctx context.Context, ticker string) (Market, error) {
	var resp marketResponse
	err := c.do(ctx, infra.GetKalshiMarketLimiter(), http.MethodGet, "/markets/"+url.PathEscape(ticker), nil, &resp)
	return resp.Market, err
}

// GetMarkets returns the markets for a series, e.g. KXHIGHNY.
func (c *Client) GetMarkets(ctx context.Context, seriesTicker, status string) ([]Market, error) {
	q := url.Values{}
	q.Set("series_ticker", seriesTicker)
	if status != "" {
		q.Set("status", status)
	}
	q.Set("limit", "100")

	var resp marketsResponse
	err := c.do(ctx, infra.GetKalshiMarketLimiter(), http.MethodGet, "/markets?"+q.Encode(), nil, &resp)
	return resp.Markets, err
}

// CreateOrder places a limit order and returns the exchange order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	var resp orderResponse
	err := c.do(ctx, infra.GetKalshiOrderLimiter(), http.MethodPost, "/portfolio/orders", req, &resp)
	return resp.Order, err
}

// AmendOrder updates the price and count of a resting order in place.
func (c *Client) AmendOrder(ctx context.Context, orderID string, req AmendOrderRequest) (Order, error) {
	var resp orderResponse
	path := "/portfolio/orders/" + url.PathEscape(orderID) + "/amend"
	err := c.do(ctx, infra.GetKalshiOrderLimiter(), http.MethodPost, path, req, &resp)
	return resp.Order, err
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := "/portfolio/orders/" + url.PathEscape(orderID)
	return c.do(ctx, infra.GetKalshiOrderLimiter(), http.MethodDelete, path, nil, nil)
}

// do runs one signed, rate-limited request with bounded retries.
func (c *Client) do(ctx context.Context, limiter *infra.RateLimiter, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	fullPath := apiPrefix + path

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := infra.CalculateBackoff(attempt - 1)
			slog.Warn("Kalshi request retrying",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		limiter.Wait()

		retryable, err := c.once(ctx, method, fullPath, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("kalshi %s %s: %w", method, path, lastErr)
}

// once performs a single HTTP exchange. The bool reports whether the
// failure is worth retrying.
func (c *Client) once(ctx context.Context, method, fullPath string, payload []byte, out any) (bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+fullPath, reader)
	if err != nil {
		return false, err
	}

	headers, err := c.signer.GenerateHeaders(method, fullPath)
	if err != nil {
		return false, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		err := fmt.Errorf("status %d: %s %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retryable, err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
	}
	return false, nil
}
