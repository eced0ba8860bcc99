package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/northbeck/papertrade/internal/core"
)

const (
	baseURL = "https://api.exchange.coinbase.com"

	// Public endpoints allow 10 req/s per IP
	requestsPerSec = 8
	requestBurst   = 10
)

// Coinbase implements the exchange MarketData interface for Coinbase
// Exchange (the Advanced Trade public market data API).
type Coinbase struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// New creates a new Coinbase market data source
func New() *Coinbase {
	return &Coinbase{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
	}
}

// NewWithBaseURL creates a Coinbase source with custom base URL (for testing)
func NewWithBaseURL(url string) *Coinbase {
	c := New()
	c.baseURL = url
	return c
}

func (c *Coinbase) Name() string {
	return "coinbase"
}

// toProductID converts a normalized symbol to a Coinbase product ID
// BTCUSDT -> BTC-USDT
func (c *Coinbase) toProductID(symbol string) string {
	base, quote := core.ParseSymbol(symbol)
	if quote == "" {
		return base
	}
	return base + "-" + quote
}

// GetTicker fetches the product ticker from Coinbase
func (c *Coinbase) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	url := fmt.Sprintf("%s/products/%s/ticker", c.baseURL, c.toProductID(symbol))

	var result productTicker
	if err := c.get(ctx, url, &result); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching ticker: %w", err))
	}

	last, _ := strconv.ParseFloat(result.Price, 64)
	bid, _ := strconv.ParseFloat(result.Bid, 64)
	ask, _ := strconv.ParseFloat(result.Ask, 64)
	volume, _ := strconv.ParseFloat(result.Volume, 64)

	ts, err := time.Parse(time.RFC3339Nano, result.Time)
	if err != nil {
		ts = time.Now()
	}

	// The ticker endpoint carries no session high/low
	return &core.Ticker{
		Symbol: symbol,
		Last:   last,
		Bid:    bid,
		Ask:    ask,
		Volume: volume,
		Time:   ts,
	}, nil
}

// GetOHLCV fetches recent candles from Coinbase
func (c *Coinbase) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	url := fmt.Sprintf("%s/products/%s/candles?granularity=%d",
		c.baseURL, c.toProductID(symbol), c.toGranularity(timeframe))

	// Candles arrive as [time, low, high, open, close, volume], newest first
	var rows [][]float64
	if err := c.get(ctx, url, &rows); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching candles: %w", err))
	}

	candles := make([]core.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, core.Candle{
			Time:   time.Unix(int64(row[0]), 0).UTC(),
			Low:    row[1],
			High:   row[2],
			Open:   row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// GetOrderBook fetches an aggregated level-2 book snapshot from Coinbase
func (c *Coinbase) GetOrderBook(ctx context.Context, symbol string, depth int) (*core.OrderBook, error) {
	if depth <= 0 {
		depth = 20
	}
	url := fmt.Sprintf("%s/products/%s/book?level=2", c.baseURL, c.toProductID(symbol))

	var result bookResponse
	if err := c.get(ctx, url, &result); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching book: %w", err))
	}

	return &core.OrderBook{
		Symbol: symbol,
		Bids:   parseLevels(result.Bids, depth),
		Asks:   parseLevels(result.Asks, depth),
		Time:   time.Now(),
	}, nil
}

// Close releases venue resources. The REST client holds none.
func (c *Coinbase) Close() error {
	return nil
}

func (c *Coinbase) get(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "papertrade")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Coinbase) toGranularity(timeframe string) int {
	switch timeframe {
	case "1m":
		return 60
	case "5m":
		return 300
	case "15m":
		return 900
	case "1h":
		return 3600
	case "6h":
		return 21600
	case "1d":
		return 86400
	default:
		return 3600
	}
}

func parseLevels(raw [][]any, depth int) []core.PriceLevel {
	if len(raw) > depth {
		raw = raw[:depth]
	}
	levels := make([]core.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		priceStr, _ := l[0].(string)
		sizeStr, _ := l[1].(string)
		price, _ := strconv.ParseFloat(priceStr, 64)
		size, _ := strconv.ParseFloat(sizeStr, 64)
		levels = append(levels, core.PriceLevel{Price: price, Size: size})
	}
	return levels
}

// Coinbase API response types
type productTicker struct {
	TradeID int64  `json:"trade_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Bid     string `json:"bid"`
	Ask     string `json:"ask"`
	Volume  string `json:"volume"`
	Time    string `json:"time"`
}

type bookResponse struct {
	Sequence int64   `json:"sequence"`
	Bids     [][]any `json:"bids"`
	Asks     [][]any `json:"asks"`
}
