package notify

import (
	"testing"
	"time"
)

func TestNotifier_PublishNoSubscribers(t *testing.T) {
	n := NewNotifier(10)
	n.Publish(Event{Type: SourceRefreshed, Table: "vocabulary"})
}

func TestNotifier_SubscribeReceivesEvent(t *testing.T) {
	n := NewNotifier(10)
	sub := n.Subscribe("vocabulary")

	n.Publish(Event{Type: SourceRefreshed, Table: "vocabulary", Origin: "s1"})

	select {
	case ev := <-sub.Ch:
		if ev.Table != "vocabulary" || ev.Origin != "s1" {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Timestamp == 0 {
			t.Error("expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
}

func TestNotifier_FilterExcludesOtherTables(t *testing.T) {
	n := NewNotifier(10)
	sub := n.Subscribe("vocabulary")

	n.Publish(Event{Type: SourceRefreshed, Table: "vocab"})

	select {
	case ev := <-sub.Ch:
		t.Fatalf("received unexpected event: %+v", ev)
	default:
	}
}

func TestNotifier_NoFilterReceivesAll(t *testing.T) {
	n := NewNotifier(10)
	sub := n.Subscribe()

	n.Publish(Event{Table: "a"})
	n.Publish(Event{Table: "b"})

	if got := len(sub.Ch); got != 2 {
		t.Errorf("expected 2 buffered events, got %d", got)
	}
}

func TestNotifier_FullChannelDoesNotBlock(t *testing.T) {
	n := NewNotifier(1)
	sub := n.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			n.Publish(Event{Table: "a"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full channel")
	}
	if got := len(sub.Ch); got != 1 {
		t.Errorf("expected 1 buffered event, got %d", got)
	}
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier(10)
	sub := n.Subscribe()
	n.Unsubscribe(sub.ID)

	if _, ok := <-sub.Ch; ok {
		t.Error("expected channel to be closed")
	}
	n.Publish(Event{Table: "a"})
	n.Unsubscribe(sub.ID)
}
