package risk_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/portfolio"
	"github.com/northbeck/papertrade/internal/risk"
)

func TestCalculatePositionSize(t *testing.T) {
	m := risk.NewManager(risk.Config{RiskPerTrade: 0.02, MaxDrawdown: 0.2})

	// 100 cash, 2% risk, 2000 per-unit risk -> 0.001 units.
	size, err := m.CalculatePositionSize(100, 40000, 38000)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, size, 1e-12)
}

func TestCalculatePositionSize_ZeroDistance(t *testing.T) {
	m := risk.NewManager(risk.DefaultConfig())

	_, err := m.CalculatePositionSize(1000, 40000, 40000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidStopLoss))
}

func TestCalculatePositionSize_StopAboveEntry(t *testing.T) {
	m := risk.NewManager(risk.Config{RiskPerTrade: 0.02})

	// Distance is absolute, shorts size the same way.
	size, err := m.CalculatePositionSize(100, 38000, 40000)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, size, 1e-12)
}

func TestNewManager_Defaults(t *testing.T) {
	m := risk.NewManager(risk.Config{})
	assert.Equal(t, 0.02, m.Config().RiskPerTrade)
	assert.Equal(t, 0.20, m.Config().MaxDrawdown)
}

func TestValidateTrade_Valid(t *testing.T) {
	p := portfolio.New(10000)
	m := risk.NewManager(risk.DefaultConfig())
	m.UpdatePeak(p.Equity())

	a := m.ValidateTrade(p, risk.TradePlan{EntryPrice: 100, StopLoss: 98, Quantity: 50})
	assert.True(t, a.Valid)
	assert.Empty(t, a.Reasons)
	assert.InDelta(t, 5000, a.Cost, 1e-9)
	assert.InDelta(t, 100, a.RiskAmount, 1e-9)
}

func TestValidateTrade_CollectsAllReasons(t *testing.T) {
	p := portfolio.New(10000)
	m := risk.NewManager(risk.DefaultConfig())
	m.UpdatePeak(p.Equity())

	// Realize a 1500 loss so equity sits 15% below peak.
	pos, err := p.OpenPosition(portfolio.OpenRequest{
		Symbol: "BTCUSDT", Side: core.SideLong, Quantity: 10, Price: 200, Time: time.Now(),
	})
	require.NoError(t, err)
	_, err = p.ClosePosition(pos.ID, 50, 0, time.Now(), portfolio.CloseManual)
	require.NoError(t, err)
	require.InDelta(t, 8500, p.Equity(), 1e-9)

	a := m.ValidateTrade(p, risk.TradePlan{EntryPrice: 100, StopLoss: 40, Quantity: 200})
	assert.False(t, a.Valid)
	// Cost above cash, risk above the per-trade cap, and projected drawdown
	// past the limit must all be reported together.
	assert.Len(t, a.Reasons, 3)
}

func TestValidateTrade_StopEqualsEntry(t *testing.T) {
	p := portfolio.New(10000)
	m := risk.NewManager(risk.DefaultConfig())

	a := m.ValidateTrade(p, risk.TradePlan{EntryPrice: 100, StopLoss: 100, Quantity: 1})
	assert.False(t, a.Valid)
	assert.Contains(t, a.Reasons, "stop loss equals entry price")
}

func TestCurrentDrawdown(t *testing.T) {
	m := risk.NewManager(risk.DefaultConfig())
	m.UpdatePeak(10000)

	assert.InDelta(t, 0.15, m.CurrentDrawdown(8500), 1e-9)
	assert.Equal(t, 0.0, m.CurrentDrawdown(12000))

	// Peak only ratchets upward.
	m.UpdatePeak(9000)
	assert.Equal(t, 10000.0, m.PeakEquity())
}

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name    string
		winRate float64
		avgWin  float64
		avgLoss float64
		want    float64
	}{
		{"favorable", 0.6, 100, -50, 0.4},
		{"even odds even payoff", 0.5, 100, -100, 0.0},
		{"unfavorable clamps to zero", 0.3, 50, -100, 0.0},
		{"certain win clamps to one", 1.0, 100, -1, 1.0},
		{"zero win rate", 0, 100, -50, 0},
		{"zero avg win", 0.6, 0, -50, 0},
		{"zero avg loss", 0.6, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := risk.KellyFraction(tt.winRate, tt.avgWin, tt.avgLoss)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSnapshot(t *testing.T) {
	p := portfolio.New(10000)
	m := risk.NewManager(risk.DefaultConfig())
	m.UpdatePeak(p.Equity())

	for _, exit := range []float64{120, 130, 90} {
		pos, err := p.OpenPosition(portfolio.OpenRequest{
			Symbol: "ETHUSDT", Side: core.SideLong, Quantity: 1, Price: 100, Time: time.Now(),
		})
		require.NoError(t, err)
		_, err = p.ClosePosition(pos.ID, exit, 0, time.Now(), portfolio.CloseManual)
		require.NoError(t, err)
	}

	r := m.Snapshot(p)
	assert.InDelta(t, 2.0/3.0, r.WinRate, 1e-9)
	assert.Equal(t, 0.2, r.MaxDrawdownLimit)
	assert.Equal(t, 0, r.OpenPositions)
	assert.InDelta(t, r.Equity*0.02, r.CapitalAtRisk, 1e-9)
	assert.Greater(t, r.Kelly, 0.0)
}
