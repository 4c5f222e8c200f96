package events

import (
	"sync"
	"testing"
	"time"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()

	// Subscribe to specific event type
	ch := hub.Subscribe(10, EventNodeAdded)

	// Publish event
	hub.Publish(Event{
		Type:   EventNodeAdded,
		Source: "test",
		Data:   NodeData{Node: "n1", Kind: "core:drop"},
	})

	// Should receive
	select {
	case e := <-ch:
		if e.Type != EventNodeAdded {
			t.Errorf("expected EventNodeAdded, got %s", e.Type)
		}
		data, ok := e.Data.(NodeData)
		if !ok {
			t.Fatal("expected NodeData")
		}
		if data.Kind != "core:drop" {
			t.Errorf("expected kind core:drop, got %s", data.Kind)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestHub_GlobalSubscription(t *testing.T) {
	hub := NewHub()

	// Global subscription (no types specified)
	ch := hub.Subscribe(10)

	// Publish different event types
	hub.Publish(Event{Type: EventNodeAdded, Source: "test"})
	hub.Publish(Event{Type: EventConnected, Source: "test"})
	hub.Publish(Event{Type: EventExportDone, Source: "test"})

	// Should receive all 3
	received := 0
	for i := 0; i < 3; i++ {
		select {
		case <-ch:
			received++
		case <-time.After(100 * time.Millisecond):
			break
		}
	}

	if received != 3 {
		t.Errorf("expected 3 events, got %d", received)
	}
}

func TestHub_TypeFiltering(t *testing.T) {
	hub := NewHub()

	// Subscribe only to connection events
	ch := hub.Subscribe(10, EventConnected, EventDisconnected)

	// Publish various types
	hub.Publish(Event{Type: EventNodeAdded, Source: "test"})
	hub.Publish(Event{Type: EventConnected, Source: "test"})
	hub.Publish(Event{Type: EventExportDone, Source: "test"})
	hub.Publish(Event{Type: EventDisconnected, Source: "test"})

	// Should only receive 2 connection events
	received := 0
	for {
		select {
		case <-ch:
			received++
		case <-time.After(50 * time.Millisecond):
			goto done
		}
	}
done:

	if received != 2 {
		t.Errorf("expected 2 connection events, got %d", received)
	}
}

func TestHub_NonBlocking(t *testing.T) {
	hub := NewHub()

	// Subscribe with buffer of 1
	ch := hub.Subscribe(1, EventPathsCollected)
	_ = ch // Consume to avoid unused error

	// Publish more events than buffer
	for i := 0; i < 10; i++ {
		hub.Publish(Event{Type: EventPathsCollected, Source: "test"})
	}

	// Should not block - just drop overflows
	published, dropped := hub.Stats()
	if published != 10 {
		t.Errorf("expected 10 published, got %d", published)
	}
	if dropped < 9 {
		t.Errorf("expected at least 9 dropped, got %d", dropped)
	}
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(1000, EventPathsCollected)

	var wg sync.WaitGroup
	const numPublishers = 10
	const eventsPerPublisher = 100

	// Concurrent publishers
	for i := 0; i < numPublishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerPublisher; j++ {
				hub.Publish(Event{Type: EventPathsCollected, Source: "test"})
			}
		}()
	}

	wg.Wait()

	// Drain channel
	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			goto done
		}
	}
done:

	if received < numPublishers*eventsPerPublisher/2 {
		t.Errorf("expected at least %d events, got %d", numPublishers*eventsPerPublisher/2, received)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(10, EventConnected)

	hub.Publish(Event{Type: EventConnected, Source: "test"})
	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("did not receive before unsubscribe")
	}

	hub.Unsubscribe(ch)
	hub.Publish(Event{Type: EventConnected, Source: "test"})

	select {
	case <-ch:
		t.Error("received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Emitters(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(10)

	hub.EmitNode(EventNodeAdded, "n1", "core:accept", "Accept")
	hub.EmitConnection(EventConnected, "n1", "match", "n2", "in")
	hub.EmitExportDone("nftgraph", 5, 1)

	for i := 0; i < 3; i++ {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("missing event %d", i)
		}
	}
}
