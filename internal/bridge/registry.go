package bridge

import (
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Conn is one TCP client. Its outbound queue is written by the hub and
// drained by the session; it is never closed, so a late broadcast to a
// removed client is harmless.
type Conn struct {
	id          uint64
	addr        string
	nc          net.Conn
	out         chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	alive       atomic.Bool
	sent        atomic.Uint64
	received    atomic.Uint64
	connectedAt time.Time
}

func newConn(nc net.Conn, capacity int) *Conn {
	c := &Conn{
		addr:        nc.RemoteAddr().String(),
		nc:          nc,
		out:         make(chan []byte, capacity),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
	}
	c.alive.Store(true)
	return c
}

func (c *Conn) ID() uint64             { return c.id }
func (c *Conn) Addr() string           { return c.addr }
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }
func (c *Conn) Alive() bool            { return c.alive.Load() }

// BytesSent counts serial bytes delivered to this client
func (c *Conn) BytesSent() uint64 { return c.sent.Load() }

// BytesReceived counts bytes this client sent toward the device
func (c *Conn) BytesReceived() uint64 { return c.received.Load() }

// enqueue offers chunk without blocking. False means the queue is full.
func (c *Conn) enqueue(chunk []byte) bool {
	if !c.alive.Load() {
		return true
	}
	select {
	case c.out <- chunk:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.nc.Close()
	})
}

// ClientInfo is a copy of a client's observable state
type ClientInfo struct {
	ID          uint64
	Addr        string
	ConnectedAt time.Time
	Sent        uint64
	Received    uint64
	Queued      int
}

func (c *Conn) info() ClientInfo {
	return ClientInfo{
		ID:          c.id,
		Addr:        c.addr,
		ConnectedAt: c.connectedAt,
		Sent:        c.sent.Load(),
		Received:    c.received.Load(),
		Queued:      len(c.out),
	}
}

// Registry tracks live clients. Membership decides who receives broadcasts.
// Writers serialize on mu; readers load an immutable snapshot.
type Registry struct {
	mu    sync.Mutex
	next  uint64
	conns map[uint64]*Conn
	snap  atomic.Pointer[[]*Conn]

	first     chan struct{}
	firstOnce sync.Once

	bus *Bus
	log *logrus.Entry
}

func NewRegistry(bus *Bus, log *logrus.Entry) *Registry {
	r := &Registry{
		conns: make(map[uint64]*Conn),
		first: make(chan struct{}),
		bus:   bus,
		log:   log,
	}
	r.snap.Store(&[]*Conn{})
	return r
}

// republish rebuilds the snapshot; mu must be held
func (r *Registry) republish() {
	s := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		s = append(s, c)
	}
	slices.SortFunc(s, func(a, b *Conn) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	r.snap.Store(&s)
}

// Register assigns c the next id and starts broadcasting to it
func (r *Registry) Register(c *Conn) uint64 {
	r.mu.Lock()
	r.next++
	c.id = r.next
	r.conns[c.id] = c
	r.republish()
	r.mu.Unlock()

	r.firstOnce.Do(func() { close(r.first) })
	r.log.WithFields(logrus.Fields{"client_id": c.id, "remote": c.addr}).Info("client connected")
	r.bus.Publish(Event{Kind: ClientConnected, ClientID: c.id, Addr: c.addr})
	return c.id
}

// Unregister stops broadcasting to id. It reports whether id was present.
func (r *Registry) Unregister(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	r.republish()
	return true
}

// Remove tears c down: unregister, close the socket, report once.
// Later calls for the same client do nothing.
func (r *Registry) Remove(c *Conn, reason DropReason, cause error) {
	if !c.alive.CompareAndSwap(true, false) {
		return
	}
	r.Unregister(c.id)
	c.close()

	fields := logrus.Fields{
		"client_id": c.id,
		"remote":    c.addr,
		"sent":      c.sent.Load(),
		"received":  c.received.Load(),
	}
	if reason != DropNone {
		r.log.WithFields(fields).WithField("reason", reason).Warn("client dropped")
		r.bus.Publish(Event{Kind: ClientDropped, ClientID: c.id, Addr: c.addr, Reason: reason})
		return
	}
	entry := r.log.WithFields(fields)
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Info("client disconnected")
	r.bus.Publish(Event{Kind: ClientDisconnected, ClientID: c.id, Addr: c.addr, Err: cause})
}

// CloseAll removes every client with cause
func (r *Registry) CloseAll(cause error) {
	for _, c := range r.Snapshot() {
		r.Remove(c, DropNone, cause)
	}
}

// Snapshot returns the clients registered at some instant, ordered by id.
// The slice is shared and must not be modified.
func (r *Registry) Snapshot() []*Conn {
	return *r.snap.Load()
}

// Len is the number of registered clients
func (r *Registry) Len() int {
	return len(r.Snapshot())
}

// FirstClient is closed when the first client ever registers
func (r *Registry) FirstClient() <-chan struct{} {
	return r.first
}

// Clients returns a copy of every registered client's counters
func (r *Registry) Clients() []ClientInfo {
	snap := r.Snapshot()
	infos := make([]ClientInfo, len(snap))
	for i, c := range snap {
		infos[i] = c.info()
	}
	return infos
}
