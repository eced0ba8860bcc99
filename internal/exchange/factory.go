package exchange

import (
	"fmt"
	"strings"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/exchange/binance"
	"github.com/northbeck/papertrade/internal/exchange/coinbase"
	"github.com/northbeck/papertrade/internal/exchange/kraken"
)

// Options selects and configures a live venue.
type Options struct {
	Venue     string
	APIKey    string
	APISecret string
}

// New creates a market data source for the configured venue.
// Paper trading only reads public endpoints; API credentials are
// accepted for forward compatibility but not required.
func New(opts Options) (MarketData, error) {
	switch strings.ToLower(opts.Venue) {
	case "binance":
		return binance.New(), nil
	case "coinbase":
		return coinbase.New(), nil
	case "kraken":
		return kraken.New(), nil
	default:
		return nil, core.WrapError(core.ErrExchangeUnknown,
			fmt.Errorf("venue %q not supported, available: %s",
				opts.Venue, strings.Join(Venues(), ", ")))
	}
}

// Venues lists the supported live venue names.
func Venues() []string {
	return []string{"binance", "coinbase", "kraken"}
}
