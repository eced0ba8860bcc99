package exchange

import (
	"errors"
	"testing"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/exchange/replay"
)

func TestNew_KnownVenues(t *testing.T) {
	for _, venue := range Venues() {
		md, err := New(Options{Venue: venue})
		if err != nil {
			t.Fatalf("New(%s) failed: %v", venue, err)
		}
		if md.Name() != venue {
			t.Errorf("expected name %s, got %s", venue, md.Name())
		}
	}
}

func TestNew_CaseInsensitive(t *testing.T) {
	md, err := New(Options{Venue: "Binance"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if md.Name() != "binance" {
		t.Errorf("expected binance, got %s", md.Name())
	}
}

func TestNew_UnknownVenue(t *testing.T) {
	_, err := New(Options{Venue: "mtgox"})
	if err == nil {
		t.Fatal("expected error for unknown venue")
	}
	if !errors.Is(err, core.ErrExchangeUnknown) {
		t.Errorf("error should match ErrExchangeUnknown, got %v", err)
	}
}

func TestReplay_ImplementsMarketData(t *testing.T) {
	var _ MarketData = (*replay.Replay)(nil)
}
