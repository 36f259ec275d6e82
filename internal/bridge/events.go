package bridge

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies what an Event reports
type EventKind int

const (
	LinkStateChanged EventKind = iota + 1
	ClientConnected
	ClientDisconnected
	ClientDropped
	BytesSerialToClient
	BytesClientToSerial
	WriteRetried
)

func (k EventKind) String() string {
	switch k {
	case LinkStateChanged:
		return "link_state_changed"
	case ClientConnected:
		return "client_connected"
	case ClientDisconnected:
		return "client_disconnected"
	case ClientDropped:
		return "client_dropped"
	case BytesSerialToClient:
		return "bytes_serial_to_client"
	case BytesClientToSerial:
		return "bytes_client_to_serial"
	case WriteRetried:
		return "write_retried"
	default:
		return "unknown"
	}
}

// DropReason says why the bridge evicted a client
type DropReason int

const (
	DropNone DropReason = iota
	BackpressureOverflow
)

func (r DropReason) String() string {
	switch r {
	case BackpressureOverflow:
		return "backpressure_overflow"
	default:
		return "none"
	}
}

// Event is a point-in-time notification from the bridge. Which fields are
// set depends on Kind:
//
//   - LinkStateChanged: State
//   - ClientConnected, ClientDisconnected, ClientDropped: ClientID, Addr; Err or Reason
//   - BytesSerialToClient: N, Data
//   - BytesClientToSerial: ClientID, Seq, N, Data
//   - WriteRetried: ClientID, Seq, N (bytes still pending), Err
//
// Data aliases the chunk in flight and must not be modified.
type Event struct {
	Time     time.Time
	Kind     EventKind
	ClientID uint64
	Addr     string
	State    LinkState
	Reason   DropReason
	Seq      uint64
	N        int
	Data     []byte
	Err      error
}

// Bus fans events out to subscribers without ever blocking the publisher.
// A subscriber whose buffer is full misses the event; the miss is counted.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus returns an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscription is a live feed of events published after Subscribe returned
type Subscription struct {
	bus     *Bus
	ch      chan Event
	dropped atomic.Uint64
}

// Subscribe registers a new subscriber with room for buffer pending events
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{bus: b, ch: make(chan Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscriber that has room
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
	}
}

// Close ends every subscription. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// Events returns the receive side of the subscription. It is closed by
// Close or when the bus shuts down.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped reports how many events this subscriber missed because it was full
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
}
