package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegistry_HTTPMetrics(t *testing.T) {
	reg := NewRegistry()

	// Verify HTTP metrics are registered
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_RecordRequest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("GET", "/api/v1/portfolio", 200, 0.05)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected http_requests_total metric")
	}
}

func TestRegistry_RecordRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reg := NewRegistry()
			reg.RecordRequest("GET", "/test", tt.status, 0.01)

			mfs, err := reg.Gather()
			if err != nil {
				t.Fatalf("gather failed: %v", err)
			}

			found := false
			for _, mf := range mfs {
				if mf.GetName() == "http_requests_total" {
					for _, m := range mf.GetMetric() {
						for _, label := range m.GetLabel() {
							if label.GetName() == "status" && label.GetValue() == tt.expected {
								found = true
							}
						}
					}
				}
			}
			if !found {
				t.Errorf("expected status label %s for status code %d", tt.expected, tt.status)
			}
		})
	}
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()

	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_in_flight" {
			found = true
			for _, m := range mf.GetMetric() {
				if m.GetGauge().GetValue() != 1 {
					t.Errorf("expected in-flight gauge to be 1, got %v", m.GetGauge().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_requests_in_flight metric")
	}
}

func TestRegistry_DurationHistogram(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("POST", "/api/v1/backtest", 200, 0.123)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_request_duration_seconds" {
			found = true
			for _, m := range mf.GetMetric() {
				hist := m.GetHistogram()
				if hist.GetSampleCount() != 1 {
					t.Errorf("expected sample count 1, got %d", hist.GetSampleCount())
				}
				if hist.GetSampleSum() < 0.12 || hist.GetSampleSum() > 0.13 {
					t.Errorf("expected sample sum ~0.123, got %v", hist.GetSampleSum())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_request_duration_seconds metric")
	}
}

func TestRegistry_RecordOrders(t *testing.T) {
	reg := NewRegistry()

	reg.RecordOrderPlaced("buy")
	reg.RecordOrderPlaced("buy")
	reg.RecordOrderRejected("insufficient_funds")

	if got := counterValue(t, reg, "papertrade_orders_placed_total", "side", "buy"); got != 2 {
		t.Errorf("expected 2 buy orders, got %v", got)
	}
	if got := counterValue(t, reg, "papertrade_orders_rejected_total", "reason", "insufficient_funds"); got != 1 {
		t.Errorf("expected 1 rejection, got %v", got)
	}
}

func TestRegistry_RecordStopTriggered(t *testing.T) {
	reg := NewRegistry()

	reg.RecordStopTriggered("stop_loss")
	reg.RecordStopTriggered("take_profit")
	reg.RecordStopTriggered("stop_loss")

	if got := counterValue(t, reg, "papertrade_stops_triggered_total", "kind", "stop_loss"); got != 2 {
		t.Errorf("expected 2 stop loss triggers, got %v", got)
	}
	if got := counterValue(t, reg, "papertrade_stops_triggered_total", "kind", "take_profit"); got != 1 {
		t.Errorf("expected 1 take profit trigger, got %v", got)
	}
}

func TestRegistry_RecordBacktest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBacktest("completed", 2.5)

	if got := counterValue(t, reg, "papertrade_backtests_total", "status", "completed"); got != 1 {
		t.Errorf("expected 1 completed backtest, got %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "papertrade_backtest_duration_seconds" {
			found = true
			for _, m := range mf.GetMetric() {
				if m.GetHistogram().GetSampleCount() != 1 {
					t.Errorf("expected 1 duration sample, got %d", m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	if !found {
		t.Error("expected papertrade_backtest_duration_seconds metric")
	}
}

func TestRegistry_Gauges(t *testing.T) {
	reg := NewRegistry()

	reg.SetOpenPositions(3)
	reg.SetEquity(10250.75)

	if got := gaugeValue(t, reg, "papertrade_open_positions"); got != 3 {
		t.Errorf("expected 3 open positions, got %v", got)
	}
	if got := gaugeValue(t, reg, "papertrade_equity"); got != 10250.75 {
		t.Errorf("expected equity 10250.75, got %v", got)
	}
}

func TestRegistry_RecordMarketDataRequest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordMarketDataRequest("binance", "ok")
	reg.RecordMarketDataRequest("binance", "error")
	reg.RecordMarketDataRequest("binance", "ok")

	if got := counterValue(t, reg, "papertrade_market_data_requests_total", "outcome", "ok"); got != 2 {
		t.Errorf("expected 2 ok requests, got %v", got)
	}
	if got := counterValue(t, reg, "papertrade_market_data_requests_total", "outcome", "error"); got != 1 {
		t.Errorf("expected 1 error request, got %v", got)
	}
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	reg := NewRegistry()
	var _ prometheus.Gatherer = reg
}

func counterValue(t *testing.T, reg *Registry, name, labelName, labelValue string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func gaugeValue(t *testing.T, reg *Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
