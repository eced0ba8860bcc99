package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/northbeck/papertrade/internal/config"
	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/notify"
)

type mockMarket struct {
	candles map[string][]core.Candle
	last    map[string]float64
	err     error
}

func (m *mockMarket) Name() string { return "mock" }

func (m *mockMarket) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &core.Ticker{Symbol: symbol, Last: m.last[symbol], Time: time.Now()}, nil
}

func (m *mockMarket) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.candles[symbol], nil
}

func (m *mockMarket) GetOrderBook(ctx context.Context, symbol string, depth int) (*core.OrderBook, error) {
	return nil, core.ErrMarketData
}

func (m *mockMarket) Close() error { return nil }

type mockNotifier struct {
	received []notify.Event
}

func (m *mockNotifier) Name() string                   { return "mock" }
func (m *mockNotifier) Init(cfg notify.Config) error   { return nil }
func (m *mockNotifier) Send(event notify.Event) error  { m.received = append(m.received, event); return nil }
func (m *mockNotifier) SendBatch(events []notify.Event) error {
	m.received = append(m.received, events...)
	return nil
}

// crossoverCandles produces a flat series with a final spike, which puts
// the fast average above the slow one on the last bar.
func crossoverCandles(n int, base, spike float64) []core.Candle {
	candles := make([]core.Candle, n)
	start := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := range candles {
		price := base
		if i == n-1 {
			price = spike
		}
		candles[i] = core.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
	}
	return candles
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Trading.Interval = 50 * time.Millisecond
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	cfg.API.Enabled = false
	cfg.Notifiers = nil
	return cfg
}

func TestApp_New(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	stats := app.GetStats()
	if stats.Running {
		t.Error("new app should not be running")
	}
	if stats.Cycles != 0 {
		t.Errorf("expected 0 cycles, got %d", stats.Cycles)
	}
	if stats.Portfolio.Equity != 10000 {
		t.Errorf("expected starting equity 10000, got %v", stats.Portfolio.Equity)
	}
}

func TestApp_New_UnknownStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trading.Strategy = "astrology"

	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestApp_New_UnknownVenue(t *testing.T) {
	cfg := testConfig(t)
	cfg.Exchange.Venue = "mtgox"

	_, err := New(cfg, nil)
	if !errors.Is(err, core.ErrExchangeUnknown) {
		t.Errorf("expected EXCHANGE_UNKNOWN, got %v", err)
	}
}

func TestApp_New_UnknownNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifiers = map[string]config.NotifierConfig{
		"smoke": {Enabled: true},
	}

	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown notifier")
	}
}

func TestApp_RunOnce_OpensPosition(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	noti := &mockNotifier{}
	if err := app.RegisterNotifier(noti); err != nil {
		t.Fatalf("failed to register notifier: %v", err)
	}

	// 41 candles: enough for the 10/20 crossover, spiking on the last bar
	app.SetMarket(&mockMarket{
		candles: map[string][]core.Candle{"BTCUSDT": crossoverCandles(41, 100, 110)},
		last:    map[string]float64{"BTCUSDT": 110},
	})

	app.RunOnce(context.Background())

	positions := app.Positions()
	if len(positions) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(positions))
	}
	if positions[0].Symbol != "BTCUSDT" {
		t.Errorf("expected BTCUSDT position, got %s", positions[0].Symbol)
	}

	if len(noti.received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(noti.received))
	}
	event := noti.received[0]
	if event.Type != notify.EventPositionOpened {
		t.Errorf("expected position_opened event, got %s", event.Type)
	}
	if event.Strategy != "ma_crossover" {
		t.Errorf("expected strategy ma_crossover, got %q", event.Strategy)
	}

	stats := app.GetStats()
	if stats.Cycles != 1 {
		t.Errorf("expected 1 cycle, got %d", stats.Cycles)
	}
	if stats.Portfolio.OpenPositions != 1 {
		t.Errorf("expected 1 open position in stats, got %d", stats.Portfolio.OpenPositions)
	}
}

func TestApp_RunOnce_FlatMarketHolds(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	app.SetMarket(&mockMarket{
		candles: map[string][]core.Candle{"BTCUSDT": crossoverCandles(41, 100, 100)},
		last:    map[string]float64{"BTCUSDT": 100},
	})

	app.RunOnce(context.Background())

	if got := len(app.Positions()); got != 0 {
		t.Errorf("expected no positions on a flat series, got %d", got)
	}
	if stats := app.GetStats(); stats.Cycles != 1 {
		t.Errorf("expected 1 cycle, got %d", stats.Cycles)
	}
}

func TestApp_RunOnce_MarketDown(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	app.SetMarket(&mockMarket{err: core.ErrMarketData})

	// Should log and return without advancing the cycle counter
	app.RunOnce(context.Background())

	if got := len(app.Positions()); got != 0 {
		t.Errorf("expected no positions, got %d", got)
	}
	if stats := app.GetStats(); stats.Cycles != 0 {
		t.Errorf("expected 0 cycles when no data arrived, got %d", stats.Cycles)
	}
}

func TestApp_StartStop(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	app.SetMarket(&mockMarket{
		candles: map[string][]core.Candle{"BTCUSDT": crossoverCandles(41, 100, 100)},
		last:    map[string]float64{"BTCUSDT": 100},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- app.Start(ctx)
	}()

	err = <-done
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	stats := app.GetStats()
	if stats.Running {
		t.Error("app should not be running after stop")
	}
	if stats.Cycles == 0 {
		t.Error("expected at least one cycle to have run")
	}
}

func TestApp_CannotStartTwice(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	app.SetMarket(&mockMarket{
		candles: map[string][]core.Candle{"BTCUSDT": crossoverCandles(41, 100, 100)},
		last:    map[string]float64{"BTCUSDT": 100},
	})

	ctx, cancel := context.WithCancel(context.Background())

	go app.Start(ctx)

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	if err := app.Start(context.Background()); err == nil {
		t.Error("expected error when starting twice")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
}

func TestApp_StopCancelsStart(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer app.Close()

	app.SetMarket(&mockMarket{
		candles: map[string][]core.Candle{"BTCUSDT": crossoverCandles(41, 100, 100)},
		last:    map[string]float64{"BTCUSDT": 100},
	})

	done := make(chan error)
	go func() {
		done <- app.Start(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	app.Stop()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestBuiltinStrategies(t *testing.T) {
	reg := BuiltinStrategies()

	for _, name := range []string{"ma_crossover", "rsi", "macd"} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("expected builtin strategy %q", name)
		}
	}
}
