package watcher

import (
	"sync"
	"testing"
	"time"
)

func TestNewBatchDebouncer(t *testing.T) {
	b := NewBatchDebouncer(100*time.Millisecond, func(events []Event) {})

	if b == nil {
		t.Fatal("NewBatchDebouncer() returned nil")
	}
	if b.delay != 100*time.Millisecond {
		t.Errorf("delay = %v, want 100ms", b.delay)
	}
	if b.events == nil {
		t.Error("events should be initialized")
	}
}

func TestBatchDebouncerAdd(t *testing.T) {
	var received []Event
	var calls int
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		received = events
		calls++
		mu.Unlock()
	}

	b := NewBatchDebouncer(50*time.Millisecond, emit)

	b.Add(Event{Type: EventModify, Path: "b.go"})
	b.Add(Event{Type: EventCreate, Path: "a.go"})
	b.Add(Event{Type: EventDelete, Path: "c.go"})

	if b.EventCount() != 3 {
		t.Errorf("EventCount() = %d, want 3", b.EventCount())
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("emit called %d times, want 1", calls)
	}
	if len(received) != 3 {
		t.Fatalf("Should have received 3 events, got %d", len(received))
	}
	for i, want := range []string{"a.go", "b.go", "c.go"} {
		if received[i].Path != want {
			t.Errorf("received[%d].Path = %q, want %q", i, received[i].Path, want)
		}
	}
}

func TestBatchDebouncerCollapsesPaths(t *testing.T) {
	var received []Event
	b := NewBatchDebouncer(time.Hour, func(events []Event) { received = events })

	b.Add(Event{Type: EventCreate, Path: "new.go"})
	b.Add(Event{Type: EventModify, Path: "new.go"})
	b.Add(Event{Type: EventModify, Path: "old.go"})
	b.Add(Event{Type: EventDelete, Path: "old.go"})

	if b.EventCount() != 2 {
		t.Errorf("EventCount() = %d, want 2", b.EventCount())
	}
	b.Flush()

	if len(received) != 2 {
		t.Fatalf("Should have received 2 events, got %d", len(received))
	}
	if received[0].Type != EventCreate {
		t.Errorf("new.go type = %v, want create", received[0].Type)
	}
	if received[1].Type != EventDelete {
		t.Errorf("old.go type = %v, want delete", received[1].Type)
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	var called bool
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	}

	b := NewBatchDebouncer(50*time.Millisecond, emit)
	b.Add(Event{Type: EventCreate, Path: "file.go"})
	b.Cancel()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if called {
		t.Error("Emit should not be called after cancel")
	}
	mu.Unlock()

	if b.EventCount() != 0 {
		t.Errorf("EventCount() = %d, want 0 after cancel", b.EventCount())
	}
}

func TestBatchDebouncerFlush(t *testing.T) {
	var received []Event
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		received = events
		mu.Unlock()
	}

	b := NewBatchDebouncer(500*time.Millisecond, emit)
	b.Add(Event{Type: EventCreate, Path: "file.go"})
	b.Flush()

	mu.Lock()
	if len(received) != 1 {
		t.Errorf("Should have received 1 event, got %d", len(received))
	}
	mu.Unlock()

	if b.EventCount() != 0 {
		t.Errorf("EventCount() = %d, want 0 after flush", b.EventCount())
	}
}

func TestBatchDebouncerNoEmitWithNoEvents(t *testing.T) {
	var called bool
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	}

	b := NewBatchDebouncer(10*time.Millisecond, emit)
	b.Flush() // Flush without adding events

	mu.Lock()
	if called {
		t.Error("Emit should not be called with no events")
	}
	mu.Unlock()
}
