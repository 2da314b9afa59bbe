package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-freshflow/internal/events"
)

type fakeConn struct {
	mu      sync.Mutex
	msgs    [][]byte
	failing bool
	closed  bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("broken pipe")
	}
	f.msgs = append(f.msgs, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHub_DeliversByParty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(nil)
	go h.Run(ctx)

	producer := &fakeConn{}
	market := &fakeConn{}
	admin := &fakeConn{}
	h.Register <- &Client{Conn: producer, PartyID: "p1"}
	h.Register <- &Client{Conn: market, PartyID: "m1"}
	h.Register <- &Client{Conn: admin, SeesAll: true}

	err := h.Publish(ctx, events.Event{
		Type:     events.TypeTransfer,
		Action:   events.ActionTransferCreated,
		PartyIDs: []string{"p1"},
		Message:  "transfer created",
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, func() bool { return producer.count() == 1 && admin.count() == 1 })
	if market.count() != 0 {
		t.Errorf("Expected market to receive nothing, got %d messages", market.count())
	}

	var got map[string]any
	if err := json.Unmarshal(producer.msgs[0], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["action"] != events.ActionTransferCreated {
		t.Errorf("Expected action %q, got %v", events.ActionTransferCreated, got["action"])
	}
}

func TestHub_DropsFailingClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(nil)
	go h.Run(ctx)

	broken := &fakeConn{failing: true}
	h.Register <- &Client{Conn: broken, PartyID: "p1"}
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if err := h.Publish(ctx, events.Event{Action: events.ActionPoolOffered}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, func() bool { return h.ClientCount() == 0 })
	broken.mu.Lock()
	defer broken.mu.Unlock()
	if !broken.closed {
		t.Error("Expected failing connection to be closed")
	}
}

func TestHub_StoppedHubDoesNotBlockClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	conn := &fakeConn{}
	client := &Client{Conn: conn, PartyID: "p1"}
	if !h.Join(client) {
		t.Fatal("Expected running hub to accept client")
	}
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	<-stopped
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("Expected stopped hub to close connections")
	}

	left := make(chan struct{})
	go func() {
		h.Leave(client)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("Leave blocked after hub stopped")
	}
	if h.Join(&Client{Conn: &fakeConn{}}) {
		t.Error("Expected stopped hub to refuse new clients")
	}
}
