package app

import (
	"github.com/northbeck/papertrade/internal/strategy"
	"github.com/northbeck/papertrade/internal/strategy/ma_crossover"
	"github.com/northbeck/papertrade/internal/strategy/macd"
	"github.com/northbeck/papertrade/internal/strategy/rsi"
)

// BuiltinStrategies returns a registry holding every strategy that
// ships with the binary, constructed with its standard parameters.
func BuiltinStrategies() *strategy.Registry {
	reg := strategy.NewRegistry()
	reg.Register(ma_crossover.New(10, 20))
	reg.Register(rsi.New(14, 30, 70))
	reg.Register(macd.New(12, 26, 9))
	return reg
}
