package serial

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaudRate != 115200 {
		t.Errorf("Expected BaudRate 115200, got %d", config.BaudRate)
	}
	if config.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", config.DataBits)
	}
	if config.StopBits != 1 {
		t.Errorf("Expected StopBits 1, got %d", config.StopBits)
	}
	if config.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", config.Parity)
	}
	if config.ReadTimeout != 200*time.Millisecond {
		t.Errorf("Expected ReadTimeout 200ms, got %v", config.ReadTimeout)
	}
	if !config.Exclusive {
		t.Error("Expected Exclusive by default")
	}
}

func TestFunctionalOptions(t *testing.T) {
	config := DefaultConfig()

	if err := WithBaudRate(9600)(&config); err != nil {
		t.Errorf("WithBaudRate failed: %v", err)
	}
	if config.BaudRate != 9600 {
		t.Errorf("Expected BaudRate 9600, got %d", config.BaudRate)
	}

	if err := WithDataBits(7)(&config); err != nil {
		t.Errorf("WithDataBits failed: %v", err)
	}
	if config.DataBits != 7 {
		t.Errorf("Expected DataBits 7, got %d", config.DataBits)
	}

	if err := WithStopBits(2)(&config); err != nil {
		t.Errorf("WithStopBits failed: %v", err)
	}
	if config.StopBits != 2 {
		t.Errorf("Expected StopBits 2, got %d", config.StopBits)
	}

	if err := WithParity(ParityEven)(&config); err != nil {
		t.Errorf("WithParity failed: %v", err)
	}
	if config.Parity != ParityEven {
		t.Errorf("Expected Parity Even, got %v", config.Parity)
	}

	if err := WithParity(Parity(7))(&config); err != ErrInvalidConfig {
		t.Errorf("Expected ErrInvalidConfig for unknown parity, got %v", err)
	}
}

func TestInvalidBaudRate(t *testing.T) {
	config := DefaultConfig()
	err := WithBaudRate(123456)(&config)
	if err != ErrInvalidBaudRate {
		t.Errorf("Expected ErrInvalidBaudRate, got %v", err)
	}
}

func TestInvalidDataBits(t *testing.T) {
	config := DefaultConfig()
	if err := WithDataBits(9)(&config); err != ErrInvalidConfig {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestInvalidStopBits(t *testing.T) {
	config := DefaultConfig()
	if err := WithStopBits(3)(&config); err != ErrInvalidConfig {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestGetBaudRate(t *testing.T) {
	tests := []struct {
		input    int
		hasError bool
	}{
		{115200, false},
		{9600, false},
		{57600, false},
		{123456, true},
	}

	for _, test := range tests {
		result, err := getBaudRate(test.input)
		if test.hasError {
			if err != ErrInvalidBaudRate {
				t.Errorf("Expected ErrInvalidBaudRate for %d, got %v", test.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for baud rate %d: %v", test.input, err)
		}
		if result == 0 {
			t.Errorf("Got zero result for valid baud rate %d", test.input)
		}
	}
}

func TestClassifyOpenError(t *testing.T) {
	tests := []struct {
		err  error
		want OpenErrorKind
		is   error
	}{
		{unix.ENOENT, OpenErrNotFound, ErrDeviceNotFound},
		{unix.ENXIO, OpenErrNotFound, ErrDeviceNotFound},
		{unix.EACCES, OpenErrPermission, ErrPermissionDenied},
		{unix.EBUSY, OpenErrBusy, ErrDeviceInUse},
		{unix.EWOULDBLOCK, OpenErrBusy, ErrDeviceInUse},
		{unix.ENOTTY, OpenErrMisconfigured, ErrInvalidConfig},
		{ErrInvalidBaudRate, OpenErrMisconfigured, ErrInvalidConfig},
		{unix.EIO, OpenErrOther, nil},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			oe := classifyOpenError("/dev/ttyUSB9", tt.err)
			if oe.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", oe.Kind, tt.want)
			}
			if !errors.Is(oe, tt.err) {
				t.Errorf("OpenError does not unwrap to %v", tt.err)
			}
			if tt.is != nil && !errors.Is(oe, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", oe, tt.is)
			}
		})
	}
}

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := Open("/dev/nonexistent")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
	if kind, ok := OpenErrorKindOf(err); !ok || kind != OpenErrNotFound {
		t.Errorf("OpenErrorKindOf = %v, %v", kind, ok)
	}
}

func TestOpenNotATTY(t *testing.T) {
	_, err := Open("/dev/null", WithExclusive(false))
	if kind, _ := OpenErrorKindOf(err); kind != OpenErrMisconfigured {
		t.Errorf("Open(/dev/null) kind = %v, want misconfigured (err %v)", kind, err)
	}
}

func TestOpenInvalidOption(t *testing.T) {
	_, err := Open("/dev/null", WithBaudRate(7))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected wrapped ErrInvalidBaudRate, got %v", err)
	}
}

func openPTY(t *testing.T) (ptmx io.ReadWriteCloser, path string) {
	t.Helper()
	m, s, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(func() {
		m.Close()
		s.Close()
	})
	return m, s.Name()
}

func TestPortRoundTripPTY(t *testing.T) {
	ptmx, path := openPTY(t)

	p, err := Open(path, WithReadTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	defer p.Close()

	if p.Path() != path {
		t.Errorf("Path() = %q, want %q", p.Path(), path)
	}

	if _, err := ptmx.Write([]byte("OK\r\n")); err != nil {
		t.Fatalf("write master: %v", err)
	}
	got := make([]byte, 0, 4)
	buf := make([]byte, 16)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 4 && time.Now().Before(deadline) {
		n, err := p.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "OK\r\n" {
		t.Errorf("Read = %q, want %q", got, "OK\r\n")
	}

	n, err := p.Write([]byte("AT\r\n"))
	if err != nil || n != 4 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	out := make([]byte, 4)
	if _, err := io.ReadFull(ptmx, out); err != nil {
		t.Fatalf("read master: %v", err)
	}
	if string(out) != "AT\r\n" {
		t.Errorf("master read %q, want %q", out, "AT\r\n")
	}
}

func TestReadTimeoutReturnsZero(t *testing.T) {
	_, path := openPTY(t)

	p, err := Open(path, WithReadTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	start := time.Now()
	n, err := p.Read(make([]byte, 8))
	if err != nil || n != 0 {
		t.Fatalf("Read = %d, %v; want 0, nil", n, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Read blocked for %v", elapsed)
	}
}

func TestCloseDuringStalledWrite(t *testing.T) {
	// nobody reads the master, so the slave's output buffer fills up
	_, path := openPTY(t)

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	type result struct {
		n   int
		err error
	}
	res := make(chan result, 1)
	data := make([]byte, 1<<20)
	go func() {
		n, err := p.Write(data)
		res <- result{n, err}
	}()
	time.Sleep(200 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind a stalled Write")
	}

	select {
	case r := <-res:
		if !errors.Is(r.err, ErrPortClosed) {
			t.Errorf("Write error = %v, want ErrPortClosed", r.err)
		}
		if r.n >= len(data) {
			t.Errorf("Write accepted %d bytes into a stalled device", r.n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Write did not return after Close")
	}
}

func TestOpenExclusiveBusy(t *testing.T) {
	_, path := openPTY(t)

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = Open(path)
	if !errors.Is(err, ErrDeviceInUse) {
		t.Errorf("second Open error = %v, want ErrDeviceInUse", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != ErrPortClosed {
		t.Errorf("second Close = %v, want ErrPortClosed", err)
	}

	p2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after Close: %v", err)
	}
	p2.Close()
}

func TestClosedPortOperations(t *testing.T) {
	p := &port{closed: true}

	if _, err := p.Read(make([]byte, 1)); err != ErrPortClosed {
		t.Errorf("Read on closed port = %v", err)
	}
	if _, err := p.Write([]byte("x")); err != ErrPortClosed {
		t.Errorf("Write on closed port = %v", err)
	}
	if err := p.Drain(); err != ErrPortClosed {
		t.Errorf("Drain on closed port = %v", err)
	}
}
