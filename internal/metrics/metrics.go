package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	ordersPlaced       *prometheus.CounterVec
	ordersRejected     *prometheus.CounterVec
	stopsTriggered     *prometheus.CounterVec
	backtestsTotal     *prometheus.CounterVec
	backtestDuration   prometheus.Histogram
	openPositions      prometheus.Gauge
	equity             prometheus.Gauge
	marketDataRequests *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrade_orders_placed_total",
			Help: "Total number of simulated orders filled",
		},
		[]string{"side"},
	)
	r.ordersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrade_orders_rejected_total",
			Help: "Total number of orders rejected before fill",
		},
		[]string{"reason"},
	)
	r.stopsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrade_stops_triggered_total",
			Help: "Total number of stop loss and take profit triggers",
		},
		[]string{"kind"},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrade_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "papertrade_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrade_open_positions",
			Help: "Number of currently open positions",
		},
	)
	r.equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "papertrade_equity",
			Help: "Portfolio equity at last mark",
		},
	)
	r.marketDataRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papertrade_market_data_requests_total",
			Help: "Total number of market data requests by venue",
		},
		[]string{"venue", "outcome"},
	)

	reg.MustRegister(r.ordersPlaced)
	reg.MustRegister(r.ordersRejected)
	reg.MustRegister(r.stopsTriggered)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.openPositions)
	reg.MustRegister(r.equity)
	reg.MustRegister(r.marketDataRequests)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordOrderPlaced records a filled order.
func (r *Registry) RecordOrderPlaced(side string) {
	r.ordersPlaced.WithLabelValues(side).Inc()
}

// RecordOrderRejected records an order rejected before fill.
func (r *Registry) RecordOrderRejected(reason string) {
	r.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordStopTriggered records a stop loss or take profit trigger.
func (r *Registry) RecordStopTriggered(kind string) {
	r.stopsTriggered.WithLabelValues(kind).Inc()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// SetOpenPositions sets the open position count.
func (r *Registry) SetOpenPositions(count int) {
	r.openPositions.Set(float64(count))
}

// SetEquity sets the portfolio equity gauge.
func (r *Registry) SetEquity(value float64) {
	r.equity.Set(value)
}

// RecordMarketDataRequest records a market data call and its outcome.
func (r *Registry) RecordMarketDataRequest(venue, outcome string) {
	r.marketDataRequests.WithLabelValues(venue, outcome).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
