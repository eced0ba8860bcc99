package notify

import (
	"errors"
	"testing"
)

type mockNotifier struct {
	name       string
	sendCalled int
	batchCalls int
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Init(cfg Config) error { return nil }

func (m *mockNotifier) Send(event Event) error {
	m.sendCalled++
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func (m *mockNotifier) SendBatch(events []Event) error {
	m.batchCalls++
	if m.shouldFail {
		return errors.New("batch send failed")
	}
	return nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	err := r.Register(mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate registration should fail
	err = r.Register(mock)
	if err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	r.Register(mock)

	n, err := r.Get("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "test" {
		t.Errorf("expected 'test', got %s", n.Name())
	}

	_, err = r.Get("missing")
	if err == nil {
		t.Error("expected error for missing notifier")
	}
}

func TestRegistry_GetAll(t *testing.T) {
	r := NewRegistry()

	r.Register(&mockNotifier{name: "a"})
	r.Register(&mockNotifier{name: "b"})

	all := r.GetAll()
	if len(all) != 2 {
		t.Errorf("expected 2 notifiers, got %d", len(all))
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()

	good := &mockNotifier{name: "good"}
	bad := &mockNotifier{name: "bad", shouldFail: true}
	r.Register(good)
	r.Register(bad)

	errs := r.NotifyAll(Event{Type: EventPositionOpened, Symbol: "BTCUSDT"})

	if good.sendCalled != 1 {
		t.Errorf("good.sendCalled = %d, want 1", good.sendCalled)
	}
	// One broken sink must not block the rest.
	if bad.sendCalled != 1 {
		t.Errorf("bad.sendCalled = %d, want 1", bad.sendCalled)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if _, ok := errs["bad"]; !ok {
		t.Error("expected error keyed by failing notifier name")
	}
}

func TestRegistry_NotifyAllBatch(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	r.Register(mock)

	events := []Event{
		{Type: EventPositionOpened, Symbol: "BTCUSDT"},
		{Type: EventTradeClosed, Symbol: "BTCUSDT"},
	}
	errs := r.NotifyAllBatch(events)

	if mock.batchCalls != 1 {
		t.Errorf("batchCalls = %d, want 1", mock.batchCalls)
	}
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}
