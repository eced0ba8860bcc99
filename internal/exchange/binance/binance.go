package binance

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
	baseURL = "https://api.binance.com"

	// Public REST budget is 1200 weight/min; 10 req/s with a small
	// burst stays well under it.
	requestsPerSec = 10
	requestBurst   = 20
)

// Binance implements the exchange MarketData interface for Binance spot.
type Binance struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// New creates a new Binance market data source
func New() *Binance {
	return &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
	}
}

// NewWithBaseURL creates a Binance source with custom base URL (for testing)
func NewWithBaseURL(url string) *Binance {
	b := New()
	b.baseURL = url
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// GetTicker fetches the 24hr ticker from Binance
func (b *Binance) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", b.baseURL, symbol)

	var result ticker24hr
	if err := b.get(ctx, url, &result); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching ticker: %w", err))
	}

	last, _ := strconv.ParseFloat(result.LastPrice, 64)
	bid, _ := strconv.ParseFloat(result.BidPrice, 64)
	ask, _ := strconv.ParseFloat(result.AskPrice, 64)
	high, _ := strconv.ParseFloat(result.HighPrice, 64)
	low, _ := strconv.ParseFloat(result.LowPrice, 64)
	volume, _ := strconv.ParseFloat(result.Volume, 64)

	return &core.Ticker{
		Symbol: symbol,
		Last:   last,
		Bid:    bid,
		Ask:    ask,
		High:   high,
		Low:    low,
		Volume: volume,
		Time:   time.UnixMilli(result.CloseTime),
	}, nil
}

// GetOHLCV fetches recent candles from Binance
func (b *Binance) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		b.baseURL, symbol, b.toInterval(timeframe), limit)

	var klines [][]any
	if err := b.get(ctx, url, &klines); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching klines: %w", err))
	}

	candles := make([]core.Candle, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}

		openTime, _ := k[0].(float64)
		openStr, _ := k[1].(string)
		highStr, _ := k[2].(string)
		lowStr, _ := k[3].(string)
		closeStr, _ := k[4].(string)
		volumeStr, _ := k[5].(string)

		open, _ := strconv.ParseFloat(openStr, 64)
		high, _ := strconv.ParseFloat(highStr, 64)
		low, _ := strconv.ParseFloat(lowStr, 64)
		close, _ := strconv.ParseFloat(closeStr, 64)
		volume, _ := strconv.ParseFloat(volumeStr, 64)

		candles = append(candles, core.Candle{
			Time:   time.UnixMilli(int64(openTime)),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	return candles, nil
}

// GetOrderBook fetches a depth snapshot from Binance
func (b *Binance) GetOrderBook(ctx context.Context, symbol string, depth int) (*core.OrderBook, error) {
	if depth <= 0 {
		depth = 20
	}
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", b.baseURL, symbol, depth)

	var result depthResponse
	if err := b.get(ctx, url, &result); err != nil {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("fetching depth: %w", err))
	}

	return &core.OrderBook{
		Symbol: symbol,
		Bids:   parseLevels(result.Bids),
		Asks:   parseLevels(result.Asks),
		Time:   time.Now(),
	}, nil
}

// Close releases venue resources. The REST client holds none.
func (b *Binance) Close() error {
	return nil
}

func (b *Binance) get(ctx context.Context, url string, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
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

func (b *Binance) toInterval(timeframe string) string {
	switch timeframe {
	case "1m", "5m", "15m", "30m":
		return timeframe
	case "1h", "2h", "4h":
		return timeframe
	case "1d":
		return "1d"
	case "1w":
		return "1w"
	default:
		return "1h"
	}
}

func parseLevels(raw [][]string) []core.PriceLevel {
	levels := make([]core.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(l[0], 64)
		size, _ := strconv.ParseFloat(l[1], 64)
		levels = append(levels, core.PriceLevel{Price: price, Size: size})
	}
	return levels
}

// Binance API response types
type ticker24hr struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	HighPrice string `json:"highPrice"`
	LowPrice  string `json:"lowPrice"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"closeTime"`
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}
