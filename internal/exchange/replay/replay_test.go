package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/northbeck/papertrade/internal/core"
)

func testSeries() map[string][]core.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]core.Candle, 5)
	for i := range candles {
		candles[i] = core.Candle{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   100 + float64(i),
			High:   110 + float64(i),
			Low:    90 + float64(i),
			Close:  105 + float64(i),
			Volume: 500,
		}
	}
	return map[string][]core.Candle{"BTCUSDT": candles}
}

func TestReplay_GetTicker(t *testing.T) {
	r := New(testSeries())
	r.SetStep(2)

	ticker, err := r.GetTicker(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetTicker failed: %v", err)
	}

	// last = close, bid = low, ask = high of the step candle
	if ticker.Last != 107 {
		t.Errorf("expected last 107, got %f", ticker.Last)
	}
	if ticker.Bid != 92 {
		t.Errorf("expected bid 92, got %f", ticker.Bid)
	}
	if ticker.Ask != 112 {
		t.Errorf("expected ask 112, got %f", ticker.Ask)
	}
	if ticker.Time.Hour() != 2 {
		t.Errorf("ticker time should come from the candle, got %v", ticker.Time)
	}
}

func TestReplay_GetTicker_UnknownSymbol(t *testing.T) {
	r := New(testSeries())

	_, err := r.GetTicker(context.Background(), "ETHUSDT")
	if err == nil {
		t.Fatal("expected error for unknown symbol")
	}
	if !errors.Is(err, core.ErrMarketData) {
		t.Errorf("error should match ErrMarketData, got %v", err)
	}
}

func TestReplay_GetTicker_StepBeyondSeries(t *testing.T) {
	r := New(testSeries())
	r.SetStep(99)

	if _, err := r.GetTicker(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected error for step beyond series")
	}
}

func TestReplay_GetOHLCV_TrailingWindow(t *testing.T) {
	r := New(testSeries())
	r.SetStep(3)

	window, err := r.GetOHLCV(context.Background(), "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("GetOHLCV failed: %v", err)
	}

	if len(window) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(window))
	}
	// Window ends at the current step
	if window[1].Close != 108 || window[0].Close != 107 {
		t.Errorf("unexpected window closes %f, %f", window[0].Close, window[1].Close)
	}
}

func TestReplay_GetOHLCV_ClampsAtStart(t *testing.T) {
	r := New(testSeries())
	r.SetStep(1)

	window, err := r.GetOHLCV(context.Background(), "BTCUSDT", "1h", 10)
	if err != nil {
		t.Fatalf("GetOHLCV failed: %v", err)
	}

	// Only steps 0..1 exist yet
	if len(window) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(window))
	}
}

func TestReplay_GetOHLCV_NoLookahead(t *testing.T) {
	r := New(testSeries())
	r.SetStep(2)

	window, err := r.GetOHLCV(context.Background(), "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("GetOHLCV failed: %v", err)
	}

	for _, c := range window {
		if c.Close > 107 {
			t.Errorf("window leaked a future candle with close %f", c.Close)
		}
	}
}

func TestReplay_GetOrderBook(t *testing.T) {
	r := New(testSeries())
	r.SetStep(0)

	book, err := r.GetOrderBook(context.Background(), "BTCUSDT", 20)
	if err != nil {
		t.Fatalf("GetOrderBook failed: %v", err)
	}

	if len(book.Bids) != 1 || len(book.Asks) != 1 {
		t.Fatalf("expected single-level book, got %d/%d", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].Price != 90 {
		t.Errorf("expected bid at low 90, got %f", book.Bids[0].Price)
	}
	if book.Asks[0].Price != 110 {
		t.Errorf("expected ask at high 110, got %f", book.Asks[0].Price)
	}
}

func TestReplay_WindowIsACopy(t *testing.T) {
	series := testSeries()
	r := New(series)
	r.SetStep(4)

	window, err := r.GetOHLCV(context.Background(), "BTCUSDT", "1h", 5)
	if err != nil {
		t.Fatalf("GetOHLCV failed: %v", err)
	}

	window[0].Close = -1
	if series["BTCUSDT"][0].Close == -1 {
		t.Error("mutating the window must not touch the source series")
	}
}
