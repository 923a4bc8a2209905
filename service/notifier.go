package service

import "sync"

// EventKind is the kind of a pass notification.
type EventKind int

const (
	PassStarted EventKind = iota
	PassFinished
	PassStale
	PassFailed
)

func (k EventKind) String() string {
	switch k {
	case PassStarted:
		return "started"
	case PassFinished:
		return "finished"
	case PassStale:
		return "stale"
	case PassFailed:
		return "failed"
	}
	return "unknown"
}

// Event tells observers that the context may have changed.
type Event struct {
	Kind  EventKind
	Block uint64
	Err   error
}

// Notifier fans pass events out to subscribers. Each subscriber has a one
// slot buffer: a slow subscriber sees the newest event only.
type Notifier struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]chan Event
}

// NewNotifier returns a notifier without subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a new observer.
func (n *Notifier) Subscribe() (uint64, <-chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	ch := make(chan Event, 1)
	n.subs[n.next] = ch
	return n.next, ch
}

// Unsubscribe removes the observer and closes its channel. Unknown ids are ignored.
func (n *Notifier) Unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every observer without blocking.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// replace the undelivered event
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of observers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
