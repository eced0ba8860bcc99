package backtest

import (
	"math"
	"time"

	"github.com/northbeck/papertrade/internal/portfolio"
)

// CalculateMetrics computes performance statistics from a finished run.
// Pure function over the equity curve and the closed trade history.
func CalculateMetrics(initialBalance float64, curve []EquityPoint, trades []portfolio.Trade, periodsPerYear, riskFreeRate float64) Metrics {
	var m Metrics

	final := initialBalance
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}
	if initialBalance > 0 {
		m.TotalReturn = (final - initialBalance) / initialBalance
	}
	m.TotalReturnPct = m.TotalReturn * 100

	m.MaxDrawdown, m.MaxDrawdownAmt = maxDrawdown(curve)

	returns := stepReturns(curve)
	meanReturn := mean(returns)
	numerator := meanReturn*periodsPerYear - riskFreeRate

	if sd := stddev(returns); sd > 0 {
		m.SharpeRatio = numerator / (sd * math.Sqrt(periodsPerYear))
	}

	if dd := downsideDeviation(returns); dd > 0 {
		m.SortinoRatio = numerator / (dd * math.Sqrt(periodsPerYear))
	} else if numerator > 0 {
		m.SortinoRatio = math.Inf(1)
	}

	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.TotalReturn / m.MaxDrawdown
	} else if m.TotalReturn > 0 {
		m.CalmarRatio = math.Inf(1)
	}

	netProfit := final - initialBalance
	if m.MaxDrawdownAmt > 0 {
		m.RecoveryFactor = netProfit / m.MaxDrawdownAmt
	} else if netProfit > 0 {
		m.RecoveryFactor = math.Inf(1)
	}

	tallyTrades(&m, trades)
	return m
}

func tallyTrades(m *Metrics, trades []portfolio.Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var winSum, lossSum float64
	var totalDuration time.Duration
	m.BestTrade = trades[0].PnL
	m.WorstTrade = trades[0].PnL

	for _, t := range trades {
		totalDuration += t.Duration
		if t.PnL > m.BestTrade {
			m.BestTrade = t.PnL
		}
		if t.PnL < m.WorstTrade {
			m.WorstTrade = t.PnL
		}
		switch {
		case t.PnL > 0:
			m.WinningTrades++
			winSum += t.PnL
		case t.PnL < 0:
			m.LosingTrades++
			lossSum += t.PnL
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(len(trades))
	m.AvgDuration = totalDuration / time.Duration(len(trades))
	if m.WinningTrades > 0 {
		m.AvgWin = winSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LosingTrades)
	}

	if lossSum < 0 {
		m.ProfitFactor = winSum / -lossSum
	} else if winSum > 0 {
		m.ProfitFactor = math.Inf(1)
	}
}

// maxDrawdown finds the largest peak-to-trough decline of the equity curve,
// as a fraction of the peak and in currency.
func maxDrawdown(curve []EquityPoint) (float64, float64) {
	var maxDD, maxAmt, peak float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		if amt := peak - p.Equity; amt > maxAmt {
			maxAmt = amt
		}
	}
	return maxDD, maxAmt
}

// stepReturns converts the equity curve into per-step fractional returns.
func stepReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation; 0 for fewer than two values.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var variance float64
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// downsideDeviation is the root mean square of the negative returns only.
func downsideDeviation(xs []float64) float64 {
	var sum float64
	var n int
	for _, x := range xs {
		if x < 0 {
			sum += x * x
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
