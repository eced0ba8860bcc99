package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/northbeck/papertrade/internal/core"
)

const (
	baseURL = "https://api.kraken.com"

	// Kraken's public API counter allows roughly 1 req/s sustained
	requestsPerSec = 1
	requestBurst   = 5
)

// Kraken implements the exchange MarketData interface for Kraken spot.
type Kraken struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// New creates a new Kraken market data source
func New() *Kraken {
	return &Kraken{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
	}
}

// NewWithBaseURL creates a Kraken source with custom base URL (for testing)
func NewWithBaseURL(url string) *Kraken {
	k := New()
	k.baseURL = url
	return k
}

func (k *Kraken) Name() string {
	return "kraken"
}

// toPair converts a normalized symbol to a Kraken pair name
// BTCUSDT -> XBTUSDT (Kraken trades bitcoin as XBT)
func (k *Kraken) toPair(symbol string) string {
	base, quote := core.ParseSymbol(symbol)
	if base == "BTC" {
		base = "XBT"
	}
	return base + quote
}

// GetTicker fetches the pair ticker from Kraken
func (k *Kraken) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", k.baseURL, k.toPair(symbol))

	var result tickerResponse
	if err := k.get(ctx, url, &result); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching ticker: %w", err))
	}
	if len(result.Error) > 0 {
		return nil, core.WrapError(core.ErrMarketData,
			fmt.Errorf("kraken error: %s", strings.Join(result.Error, ", ")))
	}

	// Result is keyed by Kraken's own pair naming; take the single entry
	var data pairTicker
	found := false
	for _, v := range result.Result {
		data = v
		found = true
		break
	}
	if !found {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("no ticker data for %s", symbol))
	}

	last := firstFloat(data.C)
	bid := firstFloat(data.B)
	ask := firstFloat(data.A)
	high := firstFloat(data.H)
	low := firstFloat(data.L)
	volume := firstFloat(data.V)

	// Kraken's public ticker carries no timestamp
	return &core.Ticker{
		Symbol: symbol,
		Last:   last,
		Bid:    bid,
		Ask:    ask,
		High:   high,
		Low:    low,
		Volume: volume,
		Time:   time.Now(),
	}, nil
}

// GetOHLCV fetches recent candles from Kraken
func (k *Kraken) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	url := fmt.Sprintf("%s/0/public/OHLC?pair=%s&interval=%d",
		k.baseURL, k.toPair(symbol), k.toInterval(timeframe))

	var result ohlcResponse
	if err := k.get(ctx, url, &result); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching ohlc: %w", err))
	}
	if len(result.Error) > 0 {
		return nil, core.WrapError(core.ErrMarketData,
			fmt.Errorf("kraken error: %s", strings.Join(result.Error, ", ")))
	}

	// Rows are [time, open, high, low, close, vwap, volume, count]
	// under the pair key; "last" holds a cursor we ignore
	var rows [][]any
	for key, raw := range result.Result {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("decoding ohlc rows: %w", err))
		}
		break
	}

	candles := make([]core.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		ts, _ := row[0].(float64)
		candles = append(candles, core.Candle{
			Time:   time.Unix(int64(ts), 0).UTC(),
			Open:   anyFloat(row[1]),
			High:   anyFloat(row[2]),
			Low:    anyFloat(row[3]),
			Close:  anyFloat(row[4]),
			Volume: anyFloat(row[6]),
		})
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// GetOrderBook fetches a depth snapshot from Kraken
func (k *Kraken) GetOrderBook(ctx context.Context, symbol string, depth int) (*core.OrderBook, error) {
	if depth <= 0 {
		depth = 20
	}
	url := fmt.Sprintf("%s/0/public/Depth?pair=%s&count=%d", k.baseURL, k.toPair(symbol), depth)

	var result depthResponse
	if err := k.get(ctx, url, &result); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching depth: %w", err))
	}
	if len(result.Error) > 0 {
		return nil, core.WrapError(core.ErrMarketData,
			fmt.Errorf("kraken error: %s", strings.Join(result.Error, ", ")))
	}

	var book pairBook
	found := false
	for _, v := range result.Result {
		book = v
		found = true
		break
	}
	if !found {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("no depth data for %s", symbol))
	}

	return &core.OrderBook{
		Symbol: symbol,
		Bids:   parseLevels(book.Bids),
		Asks:   parseLevels(book.Asks),
		Time:   time.Now(),
	}, nil
}

// Close releases venue resources. The REST client holds none.
func (k *Kraken) Close() error {
	return nil
}

func (k *Kraken) get(ctx context.Context, url string, out any) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
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

func (k *Kraken) toInterval(timeframe string) int {
	switch timeframe {
	case "1m":
		return 1
	case "5m":
		return 5
	case "15m":
		return 15
	case "30m":
		return 30
	case "1h":
		return 60
	case "4h":
		return 240
	case "1d":
		return 1440
	case "1w":
		return 10080
	default:
		return 60
	}
}

func firstFloat(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	f, _ := strconv.ParseFloat(values[0], 64)
	return f
}

func anyFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func parseLevels(raw [][]any) []core.PriceLevel {
	levels := make([]core.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		levels = append(levels, core.PriceLevel{
			Price: anyFloat(l[0]),
			Size:  anyFloat(l[1]),
		})
	}
	return levels
}

// Kraken API response types
type tickerResponse struct {
	Error  []string              `json:"error"`
	Result map[string]pairTicker `json:"result"`
}

// a/b/c are [price, ...] arrays; h/l/v are [today, last24h]
type pairTicker struct {
	A []string `json:"a"`
	B []string `json:"b"`
	C []string `json:"c"`
	H []string `json:"h"`
	L []string `json:"l"`
	V []string `json:"v"`
	O string   `json:"o"`
}

type ohlcResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

type depthResponse struct {
	Error  []string            `json:"error"`
	Result map[string]pairBook `json:"result"`
}

type pairBook struct {
	Bids [][]any `json:"bids"`
	Asks [][]any `json:"asks"`
}
