package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestAuditDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		dispatcher.Emit(ctx, newAuditEvent(AuditSignInFailed))
	}
	dispatcher.Close()

	events := sink.snapshot()
	if len(events) != 5 {
		t.Fatalf("delivered %d events, want 5", len(events))
	}
	for _, event := range events {
		if event.EventType != AuditSignInFailed {
			t.Fatalf("event type = %q", event.EventType)
		}
		if event.ID == "" {
			t.Fatal("event has no ID")
		}
	}
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: false}, &recordingSink{})
	if dispatcher != nil {
		t.Fatal("disabled dispatcher should be nil")
	}

	// All methods are nil-safe.
	dispatcher.Emit(context.Background(), newAuditEvent(AuditSignOut))
	dispatcher.Close()
	if dispatcher.Dropped() != 0 {
		t.Fatalf("Dropped() = %d, want 0", dispatcher.Dropped())
	}
}

// blockingSink stalls the consumer so the dispatcher buffer fills up.
type blockingSink struct {
	release chan struct{}
	once    sync.Once
	entered chan struct{}
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
}

func TestAuditDispatcherDropsUnderBackpressure(t *testing.T) {
	sink := &blockingSink{
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	ctx := context.Background()
	dispatcher.Emit(ctx, newAuditEvent(AuditSignInFailed))
	<-sink.entered

	// The consumer is stalled and the buffer holds one event; everything
	// past that must be dropped, not block the caller.
	dispatcher.Emit(ctx, newAuditEvent(AuditSignInFailed))
	deadline := time.After(2 * time.Second)
	for dispatcher.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("no events were dropped with a full buffer")
		default:
		}
		dispatcher.Emit(ctx, newAuditEvent(AuditSignInFailed))
	}

	close(sink.release)
	dispatcher.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	first := newAuditEvent(AuditSignInSucceeded)
	first.UserUUID = "user-1"
	sink.Emit(context.Background(), first)
	sink.Emit(context.Background(), newAuditEvent(AuditSignOut))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2", len(lines))
	}

	var decoded AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("first line is not JSON: %v", err)
	}
	if decoded.EventType != AuditSignInSucceeded || decoded.UserUUID != "user-1" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestAuditEventIDsSortInEmissionOrder(t *testing.T) {
	previous := ""
	for i := 0; i < 10; i++ {
		event := newAuditEvent(AuditSignOut)
		if event.ID <= previous {
			t.Fatalf("event ID %q does not sort after %q", event.ID, previous)
		}
		previous = event.ID
		time.Sleep(2 * time.Millisecond)
	}
}
