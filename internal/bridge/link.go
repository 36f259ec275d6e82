package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/allbin/sergw/serial"
	"github.com/sirupsen/logrus"
)

// Device is an open serial handle. Read may return 0, nil when its timeout
// elapses; any error means the handle is unusable. Close must unblock a
// pending Read.
type Device interface {
	io.ReadWriteCloser
}

// Opener opens path with cfg. Errors should be *serial.OpenError.
type Opener func(path string, cfg serial.Config) (Device, error)

// OpenSerial is the default Opener, backed by serial.Open
func OpenSerial(path string, cfg serial.Config) (Device, error) {
	p, err := serial.Open(path,
		serial.WithBaudRate(cfg.BaudRate),
		serial.WithDataBits(cfg.DataBits),
		serial.WithStopBits(cfg.StopBits),
		serial.WithParity(cfg.Parity),
		serial.WithReadTimeout(cfg.ReadTimeout),
		serial.WithExclusive(cfg.Exclusive),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Link owns the serial device and keeps it open. It is the only code that
// touches the handle; everyone else goes through Write or the sink.
type Link struct {
	path   string
	cfg    serial.Config
	open   Opener
	minBO  time.Duration
	maxBO  time.Duration
	size   int
	bus    *Bus
	log    *logrus.Entry
	sink   func([]byte)
	demand <-chan struct{}

	mu      sync.Mutex
	state   LinkState
	dev     Device
	gen     uint64
	ready   chan struct{} // closed while Connected
	stopped bool          // set by shutdown; no state changes after it
}

func newLink(cfg Config, open Opener, bus *Bus, log *logrus.Entry, sink func([]byte)) *Link {
	return &Link{
		path:  cfg.Device,
		cfg:   cfg.Serial,
		open:  open,
		minBO: cfg.ReconnectMin,
		maxBO: cfg.ReconnectMax,
		size:  cfg.ReadSize,
		bus:   bus,
		log:   log.WithField("device", cfg.Device),
		sink:  sink,
		state: LinkState{Status: Disconnected, Since: time.Now()},
		ready: make(chan struct{}),
	}
}

// State returns the current link state
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// setState records s and publishes it, unless quiet. It is a no-op once
// the link has been shut down.
func (l *Link) setState(s LinkState, quiet bool) {
	s.Since = time.Now()
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.state = s
	l.mu.Unlock()
	if !quiet {
		l.bus.Publish(Event{Kind: LinkStateChanged, State: s})
	}
}

// attach installs dev as the live handle, or closes it if the link is
// already shut down
func (l *Link) attach(dev Device, attempt int) {
	s := LinkState{Status: Connected, Attempt: attempt, Since: time.Now()}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		dev.Close()
		return
	}
	l.gen++
	l.dev = dev
	l.state = s
	close(l.ready)
	l.mu.Unlock()

	l.log.WithField("attempt", attempt).Info("serial connected")
	l.bus.Publish(Event{Kind: LinkStateChanged, State: s})
}

// current returns the live handle and its generation
func (l *Link) current() (Device, uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dev, l.gen, l.dev != nil
}

// drop abandons generation gen after an I/O error. Only the first caller
// for a generation closes the handle and reports the transition.
func (l *Link) drop(gen uint64, err error) {
	s := LinkState{Status: Opening, Err: err, Since: time.Now()}
	l.mu.Lock()
	if gen != l.gen || l.dev == nil {
		l.mu.Unlock()
		return
	}
	dev := l.dev
	l.dev = nil
	l.state = s
	l.ready = make(chan struct{})
	l.mu.Unlock()

	dev.Close()
	l.log.WithError(err).Warn("serial link lost, reconnecting")
	l.bus.Publish(Event{Kind: LinkStateChanged, State: s})
}

// shutdown closes whatever handle is live and marks the link Disconnected
func (l *Link) shutdown() {
	s := LinkState{Status: Disconnected, Since: time.Now()}
	l.mu.Lock()
	l.stopped = true
	dev := l.dev
	l.dev = nil
	changed := l.state.Status != Disconnected
	l.state = s
	if dev != nil {
		l.ready = make(chan struct{})
	}
	l.mu.Unlock()

	if dev != nil {
		dev.Close()
	}
	if changed {
		l.bus.Publish(Event{Kind: LinkStateChanged, State: s})
	}
}

// wait blocks until the link is connected or ctx is done
func (l *Link) wait(ctx context.Context) (Device, uint64, error) {
	for {
		l.mu.Lock()
		dev, gen, ready := l.dev, l.gen, l.ready
		l.mu.Unlock()
		if dev != nil {
			return dev, gen, nil
		}
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-ready:
		}
	}
}

// Write waits for a connected device and writes p to it. On failure the
// link is sent back to reconnecting and n reports how much was written.
func (l *Link) Write(ctx context.Context, p []byte) (int, error) {
	dev, gen, err := l.wait(ctx)
	if err != nil {
		return 0, err
	}
	n, err := dev.Write(p)
	if err != nil {
		l.drop(gen, err)
		return n, err
	}
	return n, nil
}

// Open makes a single open attempt, for the eager policy
func (l *Link) Open() error {
	l.setState(LinkState{Status: Opening}, false)
	dev, err := l.open(l.path, l.cfg)
	if err != nil {
		l.setState(LinkState{Status: Failed, Err: err, Attempt: 1}, false)
		return err
	}
	l.attach(dev, 1)
	return nil
}

// Run keeps the device open and its reads flowing to the sink until ctx is done
func (l *Link) Run(ctx context.Context) error {
	defer l.shutdown()
	stop := context.AfterFunc(ctx, l.shutdown)
	defer stop()

	if l.demand != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-l.demand:
			l.log.Debug("first client connected, opening device")
		}
	}

	wake := l.watch(ctx)
	for ctx.Err() == nil {
		dev, gen, ok := l.current()
		if !ok {
			l.connect(ctx, wake)
			continue
		}
		l.readLoop(ctx, dev, gen)
	}
	return nil
}

// connect retries the open with capped exponential backoff until it
// succeeds or ctx is done. Each failure is reported once as Failed; the
// return to Opening for the next try is silent.
func (l *Link) connect(ctx context.Context, wake <-chan struct{}) {
	if l.State().Status == Disconnected {
		l.setState(LinkState{Status: Opening}, false)
	}

	backoff := l.minBO
	for attempt := 1; ; attempt++ {
		dev, err := l.open(l.path, l.cfg)
		if err == nil {
			l.attach(dev, attempt)
			return
		}
		if ctx.Err() != nil {
			return
		}

		l.setState(LinkState{Status: Failed, Err: err, Attempt: attempt}, false)
		l.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff,
		}).Debug("serial open failed")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-wake:
			t.Stop()
			l.log.Debug("device node appeared, retrying now")
		case <-t.C:
		}

		l.setState(LinkState{Status: Opening, Err: err, Attempt: attempt}, true)
		backoff = min(backoff*2, l.maxBO)
	}
}

// readLoop forwards chunks until the handle fails or ctx is done
func (l *Link) readLoop(ctx context.Context, dev Device, gen uint64) {
	buf := make([]byte, l.size)
	for ctx.Err() == nil {
		n, err := dev.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			l.sink(chunk)
		}
		if err != nil {
			if ctx.Err() == nil {
				l.drop(gen, err)
			}
			return
		}
	}
}
