// Package exchange provides market data access for the trading engine.
// Live venues talk to public REST APIs; the replay venue plays back
// historical candles for backtesting. All venues speak through the
// MarketData interface so the engine never knows which one it has.
package exchange

import (
	"context"

	"github.com/northbeck/papertrade/internal/core"
)

// MarketData is the capability set the engine and backtester consume.
// Implementations return MARKET_DATA_UNAVAILABLE errors with the
// underlying cause preserved.
type MarketData interface {
	// Name returns the venue identifier (e.g., "binance", "replay")
	Name() string

	// GetTicker fetches the current quote for a normalized symbol
	GetTicker(ctx context.Context, symbol string) (*core.Ticker, error)

	// GetOHLCV fetches up to limit candles ending at the present
	// timeframe: "1m", "5m", "15m", "1h", "4h", "1d"
	GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error)

	// GetOrderBook fetches a depth snapshot
	GetOrderBook(ctx context.Context, symbol string, depth int) (*core.OrderBook, error)

	// Close releases any venue resources
	Close() error
}
