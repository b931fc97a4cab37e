// Package notify provides an in-process bus announcing that a table's source
// rows changed, so open edit sessions can refetch them.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of source change.
type EventType int

const (
	// SourceRefreshed means rows of a table were written or replaced.
	SourceRefreshed EventType = iota
	// SourceDropped means every row of a table was deleted.
	SourceDropped
)

// Event announces a source change.
type Event struct {
	Type  EventType
	Table string
	// Origin is the session that caused the change, if any. Subscribers
	// may skip their own events.
	Origin    string
	Timestamp int64
}

// Subscriber receives events for the tables it filters on.
type Subscriber struct {
	ID     string
	Tables []string
	Ch     chan Event
}

// Notifier is a non-blocking pub/sub bus.
type Notifier struct {
	subscribers sync.Map
	bufferSize  int
}

// NewNotifier creates a notifier whose subscriber channels hold bufferSize events.
func NewNotifier(bufferSize int) *Notifier {
	return &Notifier{bufferSize: bufferSize}
}

// Publish delivers ev to every matching subscriber. A subscriber whose
// channel is full misses the event.
func (n *Notifier) Publish(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixNano()
	}
	n.subscribers.Range(func(_, value any) bool {
		sub := value.(*Subscriber)
		if matches(sub, ev.Table) {
			select {
			case sub.Ch <- ev:
			default:
			}
		}
		return true
	})
}

// Subscribe registers a subscriber for the given tables; no tables means all.
func (n *Notifier) Subscribe(tables ...string) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.NewString(),
		Tables: tables,
		Ch:     make(chan Event, n.bufferSize),
	}
	n.subscribers.Store(sub.ID, sub)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id string) {
	if value, ok := n.subscribers.LoadAndDelete(id); ok {
		close(value.(*Subscriber).Ch)
	}
}

func matches(sub *Subscriber, table string) bool {
	if len(sub.Tables) == 0 {
		return true
	}
	for _, t := range sub.Tables {
		if t == table {
			return true
		}
	}
	return false
}
