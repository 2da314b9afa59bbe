package events

import (
	"context"
	"errors"
	"testing"
)

type failingSink struct{}

func (failingSink) Publish(context.Context, Event) error { return errors.New("sink down") }

func TestFanout_PublishesToEverySink(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	f := Fanout{a, nil, failingSink{}, b}

	err := f.Publish(context.Background(), Event{Type: TypeTransfer, Action: ActionTransferCreated})
	if err == nil {
		t.Fatal("Expected joined error from failing sink")
	}
	if a.Count(ActionTransferCreated) != 1 || b.Count(ActionTransferCreated) != 1 {
		t.Errorf("Expected both memory sinks to receive the event, got %d and %d",
			a.Count(ActionTransferCreated), b.Count(ActionTransferCreated))
	}
}

func TestMemorySink_EventsIsACopy(t *testing.T) {
	s := NewMemorySink()
	_ = s.Publish(context.Background(), Event{Action: ActionPoolOffered})

	got := s.Events()
	got[0].Action = "mutated"

	if s.Events()[0].Action != ActionPoolOffered {
		t.Error("Expected stored events to be unaffected by caller mutation")
	}
}
