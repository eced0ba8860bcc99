package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northbeck/papertrade/internal/core"
)

func TestBinance_Name(t *testing.T) {
	b := New()
	if b.Name() != "binance" {
		t.Errorf("expected 'binance', got '%s'", b.Name())
	}
}

func TestBinance_ToInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1m", "1m"},
		{"5m", "5m"},
		{"15m", "15m"},
		{"1h", "1h"},
		{"4h", "4h"},
		{"1d", "1d"},
		{"1w", "1w"},
		{"unknown", "1h"},
	}

	b := New()
	for _, tc := range tests {
		got := b.toInterval(tc.input)
		if got != tc.expected {
			t.Errorf("toInterval(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestBinance_GetTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"symbol":"BTCUSDT","lastPrice":"50000.10","bidPrice":"49999.90",
			"askPrice":"50000.50","highPrice":"51000.00","lowPrice":"49000.00",
			"volume":"1234.5","closeTime":1700000000000}`)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	ticker, err := b.GetTicker(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetTicker failed: %v", err)
	}

	if ticker.Last != 50000.10 {
		t.Errorf("expected last 50000.10, got %f", ticker.Last)
	}
	if ticker.Bid != 49999.90 {
		t.Errorf("expected bid 49999.90, got %f", ticker.Bid)
	}
	if ticker.Ask != 50000.50 {
		t.Errorf("expected ask 50000.50, got %f", ticker.Ask)
	}
	if !ticker.Time.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected time %v", ticker.Time)
	}
}

func TestBinance_GetOHLCV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1h" {
			t.Errorf("unexpected interval %s", r.URL.Query().Get("interval"))
		}
		fmt.Fprint(w, `[
			[1700000000000,"100.0","110.0","90.0","105.0","500.0",1700003599999,"0",0,"0","0","0"],
			[1700003600000,"105.0","115.0","95.0","110.0","600.0",1700007199999,"0",0,"0","0","0"]
		]`)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	candles, err := b.GetOHLCV(context.Background(), "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("GetOHLCV failed: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Close != 105.0 || candles[1].Close != 110.0 {
		t.Errorf("unexpected closes %f, %f", candles[0].Close, candles[1].Close)
	}
	if candles[0].Volume != 500.0 {
		t.Errorf("expected volume 500, got %f", candles[0].Volume)
	}
}

func TestBinance_GetOrderBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"lastUpdateId":1,
			"bids":[["49999.90","1.5"],["49999.00","2.0"]],
			"asks":[["50000.50","1.0"]]}`)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	book, err := b.GetOrderBook(context.Background(), "BTCUSDT", 20)
	if err != nil {
		t.Fatalf("GetOrderBook failed: %v", err)
	}

	if len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("expected 2 bids and 1 ask, got %d/%d", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].Price != 49999.90 || book.Bids[0].Size != 1.5 {
		t.Errorf("unexpected best bid %+v", book.Bids[0])
	}
}

func TestBinance_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	_, err := b.GetTicker(context.Background(), "BTCUSDT")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !errors.Is(err, core.ErrMarketData) {
		t.Errorf("error should match ErrMarketData, got %v", err)
	}
}
