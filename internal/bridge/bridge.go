// Package bridge connects one serial device to any number of TCP clients.
//
// Bytes read from the device are broadcast to every client; bytes from
// clients are written to the device one chunk at a time, in arrival order.
// The device is reopened automatically when it fails, slow clients are
// disconnected instead of stalling the others, and everything observable
// is published on a Bus.
package bridge

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Bridge wires a Link, Hub, Registry and Writer behind a TCP listener
type Bridge struct {
	cfg    Config
	log    *logrus.Entry
	bus    *Bus
	reg    *Registry
	hub    *Hub
	link   *Link
	writer *Writer
	opener Opener

	addr     atomic.Pointer[net.TCPAddr]
	ready    chan struct{}
	sessions sync.WaitGroup
}

// Option customizes a Bridge
type Option func(*Bridge)

// WithLogger sets the log entry components derive theirs from
func WithLogger(log *logrus.Entry) Option {
	return func(b *Bridge) { b.log = log }
}

// WithOpener replaces serial.Open, mostly for tests
func WithOpener(open Opener) Option {
	return func(b *Bridge) { b.opener = open }
}

// WithBus publishes onto an existing bus instead of a private one
func WithBus(bus *Bus) Option {
	return func(b *Bridge) { b.bus = bus }
}

// New validates cfg and assembles a bridge. Nothing is opened until Run.
func New(cfg Config, opts ...Option) (*Bridge, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:    cfg,
		opener: OpenSerial,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if b.bus == nil {
		b.bus = NewBus()
	}

	b.reg = NewRegistry(b.bus, b.log.WithField("component", "registry"))
	b.hub = NewHub(b.reg, b.bus)
	b.link = newLink(cfg, b.opener, b.bus, b.log.WithField("component", "link"), b.hub.Publish)
	if cfg.OpenPolicy == OpenOnDemand {
		b.link.demand = b.reg.FirstClient()
	}
	b.writer = NewWriter(b.link, cfg.WriteQueue, b.bus, b.log.WithField("component", "writer"))
	return b, nil
}

// Run opens the device according to the open policy, listens, and serves
// until ctx is done. It fails early with a *serial.OpenError (eager policy)
// or a *NetError of kind BindFailed; after that it only returns on shutdown.
func (b *Bridge) Run(ctx context.Context) error {
	if b.cfg.OpenPolicy == OpenEager {
		if err := b.link.Open(); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", b.cfg.Listen)
	if err != nil {
		b.link.shutdown()
		return &NetError{Kind: BindFailed, Addr: b.cfg.Listen, Err: err}
	}
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		b.addr.Store(tcp)
	}
	close(b.ready)
	b.log.WithFields(logrus.Fields{
		"listen": ln.Addr().String(),
		"device": b.cfg.Device,
		"line":   b.cfg.Serial.String(),
		"open":   b.cfg.OpenPolicy.String(),
	}).Info("bridge listening")

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { ln.Close() })
	defer stop()

	g.Go(func() error { return b.link.Run(gctx) })
	g.Go(func() error { return b.writer.Run(gctx) })
	g.Go(func() error { return b.accept(gctx, ln) })

	err = g.Wait()
	ln.Close()
	b.reg.CloseAll(ErrShutdown)
	b.sessions.Wait()
	b.log.Info("bridge stopped")
	return err
}

// accept hands every connection to a new session until the listener closes
func (b *Bridge) accept(ctx context.Context, ln net.Listener) error {
	var delay time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// EMFILE and friends: back off like net/http does
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, time.Second)
			}
			b.log.WithError(err).WithField("backoff", delay).Warn("accept failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		if tcp, ok := nc.(*net.TCPConn); ok {
			tcp.SetNoDelay(true)
		}
		c := newConn(nc, b.cfg.QueueCapacity)
		b.reg.Register(c)
		b.sessions.Add(1)
		go func() {
			defer b.sessions.Done()
			b.serve(ctx, c)
		}()
	}
}

// Ready is closed once the listener is bound
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// Addr is the bound listen address, or nil before Ready
func (b *Bridge) Addr() *net.TCPAddr { return b.addr.Load() }

// Bus is the event stream of this bridge
func (b *Bridge) Bus() *Bus { return b.bus }

// Subscribe is shorthand for Bus().Subscribe
func (b *Bridge) Subscribe(buffer int) *Subscription { return b.bus.Subscribe(buffer) }

// LinkState returns the serial link's current state
func (b *Bridge) LinkState() LinkState { return b.link.State() }

// Clients lists connected clients in id order
func (b *Bridge) Clients() []ClientInfo { return b.reg.Clients() }

// Config returns the resolved configuration
func (b *Bridge) Config() Config { return b.cfg }
