package indicator

// MACDResult holds the three MACD series. All slices have the same length
// and index i of each refers to the same input price.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD calculates the MACD line (fast EMA minus slow EMA), its signal line
// (EMA of the MACD line) and the histogram (MACD minus signal).
// Needs at least slow+signal-1 prices and fast < slow; returns empty series
// otherwise.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	empty := MACDResult{MACD: []float64{}, Signal: []float64{}, Histogram: []float64{}}
	if fast <= 0 || signal <= 0 || fast >= slow {
		return empty
	}
	if len(prices) < slow+signal-1 {
		return empty
	}

	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	// EMA outputs are right-aligned; trim the fast series to the slow one
	offset := len(fastEMA) - len(slowEMA)
	macd := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macd[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalLine := EMA(macd, signal)

	aligned := macd[len(macd)-len(signalLine):]
	histogram := make([]float64, len(signalLine))
	for i := range signalLine {
		histogram[i] = aligned[i] - signalLine[i]
	}

	return MACDResult{MACD: aligned, Signal: signalLine, Histogram: histogram}
}
