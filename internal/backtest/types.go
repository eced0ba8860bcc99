package backtest

import (
	"encoding/json"
	"math"
	"time"

	"github.com/northbeck/papertrade/internal/portfolio"
)

// Result holds the complete output of one run.
type Result struct {
	Strategy       string            `json:"strategy"`
	Symbols        []string          `json:"symbols"`
	Start          time.Time         `json:"start"`
	End            time.Time         `json:"end"`
	Steps          int               `json:"steps"`
	InitialBalance float64           `json:"initial_balance"`
	FinalEquity    float64           `json:"final_equity"`
	Trades         []portfolio.Trade `json:"trades"`
	EquityCurve    []EquityPoint     `json:"equity_curve"`
	Metrics        Metrics           `json:"metrics"`
	Duration       time.Duration     `json:"duration"` // wall time spent running, not replayed time
}

// EquityPoint is one step of the equity curve, recorded after stops were
// swept for that step.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
	Cash   float64   `json:"cash"`
}

// Metrics holds the performance statistics of a finished run. Ratios that
// divide by a zero denominator carry +Inf when the numerator is positive
// and 0 otherwise.
type Metrics struct {
	TotalReturn    float64       `json:"total_return"` // fraction of initial balance
	TotalReturnPct float64       `json:"total_return_pct"`
	SharpeRatio    float64       `json:"sharpe_ratio"` // annualized, 0 when step returns have no variance
	SortinoRatio   float64       `json:"sortino_ratio"`
	CalmarRatio    float64       `json:"calmar_ratio"`
	MaxDrawdown    float64       `json:"max_drawdown"`        // fraction of the equity peak
	MaxDrawdownAmt float64       `json:"max_drawdown_amount"` // same decline in currency
	RecoveryFactor float64       `json:"recovery_factor"`
	ProfitFactor   float64       `json:"profit_factor"`
	WinRate        float64       `json:"win_rate"` // fraction of closed trades with positive P&L
	TotalTrades    int           `json:"total_trades"`
	WinningTrades  int           `json:"winning_trades"`
	LosingTrades   int           `json:"losing_trades"`
	AvgWin         float64       `json:"avg_win"`
	AvgLoss        float64       `json:"avg_loss"`
	BestTrade      float64       `json:"best_trade"`
	WorstTrade     float64       `json:"worst_trade"`
	AvgDuration    time.Duration `json:"avg_duration"`
}

// ratio is a float64 whose +Inf value encodes as the string "inf".
// encoding/json rejects non-finite numbers outright.
type ratio float64

func (r ratio) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(r), 1) {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(float64(r))
}

func (r *ratio) UnmarshalJSON(data []byte) error {
	if string(data) == `"inf"` {
		*r = ratio(math.Inf(1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = ratio(v)
	return nil
}

// metricsAlias keeps the encoder from recursing into Metrics' own methods.
type metricsAlias Metrics

// metricsDoc shadows the ratio fields that can legitimately be +Inf.
type metricsDoc struct {
	metricsAlias
	SortinoRatio   ratio `json:"sortino_ratio"`
	CalmarRatio    ratio `json:"calmar_ratio"`
	RecoveryFactor ratio `json:"recovery_factor"`
	ProfitFactor   ratio `json:"profit_factor"`
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsDoc{
		metricsAlias:   metricsAlias(m),
		SortinoRatio:   ratio(m.SortinoRatio),
		CalmarRatio:    ratio(m.CalmarRatio),
		RecoveryFactor: ratio(m.RecoveryFactor),
		ProfitFactor:   ratio(m.ProfitFactor),
	})
}

func (m *Metrics) UnmarshalJSON(data []byte) error {
	var doc metricsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*m = Metrics(doc.metricsAlias)
	m.SortinoRatio = float64(doc.SortinoRatio)
	m.CalmarRatio = float64(doc.CalmarRatio)
	m.RecoveryFactor = float64(doc.RecoveryFactor)
	m.ProfitFactor = float64(doc.ProfitFactor)
	return nil
}
