package preview

import (
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/storefront/internal/layout"
)

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub(nil)
	conn := &websocket.Conn{}

	frames := hub.Register("viewer-1", conn)
	if hub.Count() != 1 {
		t.Fatalf("Expected 1 viewer, got %d", hub.Count())
	}

	hub.Broadcast(layout.Frame{Sequence: 1, Path: "/(tabs)"})

	select {
	case frame := <-frames:
		if frame.Path != "/(tabs)" {
			t.Errorf("Expected path /(tabs), got %q", frame.Path)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected frame to be delivered")
	}
}

func TestHub_RegisterSameConnKeepsChannel(t *testing.T) {
	hub := NewHub(nil)
	conn := &websocket.Conn{}

	first := hub.Register("viewer-1", conn)
	second := hub.Register("viewer-1", conn)
	if first != second {
		t.Error("Expected the same frame channel for a repeated registration")
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(nil)
	conn := &websocket.Conn{}

	frames := hub.Register("viewer-1", conn)
	hub.Unregister("viewer-1", conn)

	if hub.Count() != 0 {
		t.Errorf("Expected no viewers, got %d", hub.Count())
	}
	if _, ok := <-frames; ok {
		t.Error("Expected frame channel to be closed")
	}
}

func TestHub_UnregisterStale(t *testing.T) {
	hub := NewHub(nil)
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	hub.Register("viewer-1", conn1)
	hub.Register("viewer-2", conn2)

	// A stale unregister must leave other viewers alone.
	hub.Unregister("viewer-2", conn1)
	hub.Unregister("viewer-1", conn1)

	if hub.Count() != 1 {
		t.Errorf("Expected 1 viewer, got %d", hub.Count())
	}
}

func TestHub_SlowViewerKeepsLatest(t *testing.T) {
	hub := NewHub(nil)
	frames := hub.Register("slow", &websocket.Conn{})

	total := viewerBuffer + 5
	for i := 1; i <= total; i++ {
		hub.Broadcast(layout.Frame{Sequence: uint64(i)})
	}

	var last uint64
	for len(frames) > 0 {
		last = (<-frames).Sequence
	}
	if last != uint64(total) {
		t.Errorf("Expected latest frame %d, got %d", total, last)
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.Register("viewer-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()

	for i := 0; i < 500; i++ {
		hub.Broadcast(layout.Frame{Sequence: uint64(i)})
	}
	<-done

	if hub.Count() != 500 {
		t.Errorf("Expected 500 viewers, got %d", hub.Count())
	}
}
