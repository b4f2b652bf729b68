package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishToTypedSubscriber(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(1)

	var mu sync.Mutex
	var got Event
	bus.Subscribe(EventAlertSent, func(e Event) {
		mu.Lock()
		got = e
		mu.Unlock()
		wg.Done()
	})

	bus.Publish(Event{Type: EventAlertSent, Data: map[string]interface{}{"symbol": "SOL/USDT"}})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got.Type != EventAlertSent {
		t.Errorf("type = %q, want %q", got.Type, EventAlertSent)
	}
	if got.Data["symbol"] != "SOL/USDT" {
		t.Errorf("data = %v, want symbol SOL/USDT", got.Data)
	}
	if got.Timestamp.IsZero() {
		t.Error("Publish should stamp the event time")
	}
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewBus()

	fired := make(chan struct{}, 1)
	bus.Subscribe(EventPositionOpened, func(Event) { fired <- struct{}{} })

	bus.Publish(Event{Type: EventMonitorCycle})

	select {
	case <-fired:
		t.Error("subscriber for another type should not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllSeesEverything(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	seen := make(map[EventType]bool)
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		seen[e.Type] = true
		mu.Unlock()
		wg.Done()
	})

	bus.Publish(Event{Type: EventScreenerUpdate})
	bus.Publish(Event{Type: EventPositionClosed})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !seen[EventScreenerUpdate] || !seen[EventPositionClosed] {
		t.Errorf("seen = %v, want both event types", seen)
	}
}

func TestPublishOnNilBus(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Type: EventError}) // must not panic
}

func TestPublishPreservesTimestamp(t *testing.T) {
	bus := NewBus()

	stamp := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	wg.Add(1)

	var mu sync.Mutex
	var got time.Time
	bus.Subscribe(EventError, func(e Event) {
		mu.Lock()
		got = e.Timestamp
		mu.Unlock()
		wg.Done()
	})

	bus.Publish(Event{Type: EventError, Timestamp: stamp})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !got.Equal(stamp) {
		t.Errorf("timestamp = %v, want %v", got, stamp)
	}
}
