package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/notify"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notify.Notifier = (*Webhook)(nil)
}

func TestWebhook_Name(t *testing.T) {
	w := New("http://example.com/hook", nil)
	if w.Name() != "webhook" {
		t.Errorf("expected 'webhook', got %s", w.Name())
	}
}

func TestWebhook_Init_RequiresURL(t *testing.T) {
	w := &Webhook{}
	err := w.Init(notify.Config{Params: map[string]any{}})
	if err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestWebhook_Init_WithURL(t *testing.T) {
	w := &Webhook{}
	err := w.Init(notify.Config{
		Params: map[string]any{
			"url": "http://example.com/hook",
		},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if w.url != "http://example.com/hook" {
		t.Errorf("expected url, got %s", w.url)
	}
}

func TestWebhook_Send(t *testing.T) {
	var receivedPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, nil)

	event := notify.Event{
		Type:       notify.EventTradeClosed,
		Time:       time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC),
		Symbol:     "BTCUSDT",
		Side:       core.SideLong,
		Quantity:   0.5,
		Price:      42000,
		PnL:        1000,
		PnLPercent: 5,
		Reason:     "take_profit",
	}

	err := w.Send(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedPayload["type"] != "trade_closed" {
		t.Errorf("expected type trade_closed, got %v", receivedPayload["type"])
	}
	if receivedPayload["symbol"] != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %v", receivedPayload["symbol"])
	}
	if receivedPayload["pnl"].(float64) != 1000 {
		t.Errorf("expected pnl 1000, got %v", receivedPayload["pnl"])
	}
	if receivedPayload["reason"] != "take_profit" {
		t.Errorf("expected reason take_profit, got %v", receivedPayload["reason"])
	}
	if receivedPayload["time"] != "2024-01-16T09:00:00Z" {
		t.Errorf("expected RFC3339 time, got %v", receivedPayload["time"])
	}
}

func TestWebhook_SendBatch(t *testing.T) {
	var receivedPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, nil)

	events := []notify.Event{
		{Type: notify.EventPositionOpened, Symbol: "BTCUSDT", Time: time.Now()},
		{Type: notify.EventTradeClosed, Symbol: "ETHUSDT", Time: time.Now()},
	}

	err := w.SendBatch(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedPayload["type"] != "batch" {
		t.Errorf("expected type batch, got %v", receivedPayload["type"])
	}
	if receivedPayload["count"].(float64) != 2 {
		t.Errorf("expected count 2, got %v", receivedPayload["count"])
	}
}

func TestWebhook_SendBatch_Empty(t *testing.T) {
	w := New("http://example.com/hook", nil)
	err := w.SendBatch([]notify.Event{})
	if err != nil {
		t.Errorf("empty batch should not error: %v", err)
	}
}

func TestWebhook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := New(server.URL, nil)

	err := w.Send(notify.Event{Type: notify.EventPositionOpened, Symbol: "BTCUSDT", Time: time.Now()})
	if err == nil {
		t.Error("expected error for server error response")
	}
}

func TestWebhook_CustomHeaders(t *testing.T) {
	var receivedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	headers := map[string]string{
		"Authorization": "Bearer test-token",
		"X-Custom":      "value",
	}
	w := New(server.URL, headers)

	w.Send(notify.Event{Type: notify.EventPositionOpened, Symbol: "BTCUSDT", Time: time.Now()})

	if receivedHeaders.Get("Authorization") != "Bearer test-token" {
		t.Error("expected Authorization header")
	}
	if receivedHeaders.Get("X-Custom") != "value" {
		t.Error("expected X-Custom header")
	}
}
