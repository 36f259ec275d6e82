package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/allbin/sergw/serial"
	"github.com/sirupsen/logrus"
)

var (
	errUnplugged   = errors.New("device unplugged")
	errWriteFailed = errors.New("write failed")
)

// fakeDevice stands in for a serial port. Bytes sent on rx are what the
// "device" transmits; writes are recorded.
type fakeDevice struct {
	rx   chan []byte
	gone chan struct{}
	once sync.Once

	mu        sync.Mutex
	written   []byte
	failAfter int // >= 0: the next write accepts this many bytes, then fails
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		rx:        make(chan []byte, 64),
		gone:      make(chan struct{}),
		failAfter: -1,
	}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	select {
	case b := <-d.rx:
		return copy(p, b), nil
	case <-d.gone:
		return 0, errUnplugged
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.gone:
		return 0, errUnplugged
	default:
	}
	if d.failAfter >= 0 {
		n := min(d.failAfter, len(p))
		d.written = append(d.written, p[:n]...)
		d.failAfter = -1
		return n, errWriteFailed
	}
	d.written = append(d.written, p...)
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.unplug()
	return nil
}

func (d *fakeDevice) unplug() {
	d.once.Do(func() { close(d.gone) })
}

func (d *fakeDevice) failNextWrite(after int) {
	d.mu.Lock()
	d.failAfter = after
	d.mu.Unlock()
}

func (d *fakeDevice) Written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.written)
}

// fakeSerial hands out fakeDevices, failing the first `failures` opens
type fakeSerial struct {
	mu       sync.Mutex
	failures int
	opens    int
	devs     []*fakeDevice
	opened   chan *fakeDevice
}

func newFakeSerial(failures int) *fakeSerial {
	return &fakeSerial{failures: failures, opened: make(chan *fakeDevice, 16)}
}

func (f *fakeSerial) open(path string, cfg serial.Config) (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.failures > 0 {
		f.failures--
		return nil, &serial.OpenError{Kind: serial.OpenErrNotFound, Path: path}
	}
	d := newFakeDevice()
	f.devs = append(f.devs, d)
	select {
	case f.opened <- d:
	default:
	}
	return d, nil
}

func (f *fakeSerial) failNext(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

func (f *fakeSerial) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// next waits for the next device to be opened
func (f *fakeSerial) next(t *testing.T) *fakeDevice {
	t.Helper()
	select {
	case d := <-f.opened:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for device open")
		return nil
	}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testConfig() Config {
	cfg := DefaultConfig("/dev/ttyFAKE0")
	cfg.Listen = "127.0.0.1:0"
	cfg.ReconnectMin = 5 * time.Millisecond
	cfg.ReconnectMax = 20 * time.Millisecond
	return cfg
}

type runningBridge struct {
	*Bridge
	cancel  context.CancelFunc
	stopped chan struct{}
	err     error
}

// startBridge runs a bridge until the test ends
func startBridge(t *testing.T, cfg Config, fs *fakeSerial, opts ...Option) *runningBridge {
	t.Helper()
	opts = append([]Option{WithOpener(fs.open), WithLogger(quietLogger())}, opts...)
	b, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rb := &runningBridge{Bridge: b, cancel: cancel, stopped: make(chan struct{})}
	go func() {
		rb.err = b.Run(ctx)
		close(rb.stopped)
	}()

	select {
	case <-b.Ready():
	case <-rb.stopped:
		t.Fatalf("Run returned before listening: %v", rb.err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("bridge never became ready")
	}

	t.Cleanup(func() { rb.stop(t) })
	return rb
}

// stop cancels the bridge and returns what Run returned
func (rb *runningBridge) stop(t *testing.T) error {
	t.Helper()
	rb.cancel()
	select {
	case <-rb.stopped:
		return rb.err
	case <-time.After(5 * time.Second):
		t.Error("bridge did not stop")
		return nil
	}
}

// dial connects a client and waits until the registry has want clients
func (rb *runningBridge) dial(t *testing.T, want int) net.Conn {
	t.Helper()
	nc, err := net.Dial("tcp", rb.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	eventually(t, func() bool { return rb.reg.Len() == want })
	return nc
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 5s")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func readN(t *testing.T, nc net.Conn, n int) string {
	t.Helper()
	nc.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, n)
	if _, err := io.ReadFull(nc, buf); err != nil {
		t.Fatalf("read %d bytes: %v", n, err)
	}
	return string(buf)
}

// collect gathers events until stop returns true for one of them
func collect(t *testing.T, sub *Subscription, stop func(Event) bool) []Event {
	t.Helper()
	var evs []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub.Events():
			evs = append(evs, ev)
			if stop(ev) {
				return evs
			}
		case <-timeout:
			t.Fatalf("timed out; got %d events", len(evs))
			return evs
		}
	}
}

func linkStates(evs []Event) []LinkStatus {
	var out []LinkStatus
	for _, ev := range evs {
		if ev.Kind == LinkStateChanged {
			out = append(out, ev.State.Status)
		}
	}
	return out
}
