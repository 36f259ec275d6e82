package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// writeSlice bounds how long Write waits for room in the output buffer
// before checking whether the port was closed
const writeSlice = 100 * time.Millisecond

// Port represents an open serial device
type Port interface {
	Close() error
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	Drain() error
	FlushInput() error
	FlushOutput() error
	Path() string
	Config() Config
}

// port is the concrete implementation of the Port interface
type port struct {
	mu     sync.RWMutex
	fd     int
	path   string
	config Config
	closed bool
}

// Ensure port implements Port interface at compile time
var _ Port = (*port)(nil)

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// classifyOpenError maps an errno from open/flock/ioctl onto an OpenErrorKind
func classifyOpenError(path string, err error) *OpenError {
	kind := OpenErrOther
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		kind = OpenErrNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		kind = OpenErrPermission
	case errors.Is(err, unix.EBUSY), errors.Is(err, unix.EWOULDBLOCK):
		kind = OpenErrBusy
	case errors.Is(err, unix.ENOTTY), errors.Is(err, unix.EINVAL),
		errors.Is(err, ErrInvalidBaudRate), errors.Is(err, ErrInvalidConfig):
		kind = OpenErrMisconfigured
	}
	return &OpenError{Kind: kind, Path: path, Err: err}
}

// Open opens a serial port with the given device path and options.
// Failures are always returned as *OpenError.
func Open(device string, opts ...Option) (Port, error) {
	config, err := NewConfig(opts...)
	if err != nil {
		return nil, &OpenError{Kind: OpenErrMisconfigured, Path: device, Err: err}
	}

	// O_NONBLOCK keeps open from waiting on carrier detect. It stays set:
	// reads and writes wait in poll so Close never waits on a blocked syscall.
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, classifyOpenError(device, err)
	}

	fail := func(err error) (Port, error) {
		unix.Close(fd)
		return nil, classifyOpenError(device, err)
	}

	if config.Exclusive {
		if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			return fail(err)
		}
		if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
			return fail(err)
		}
	}

	if err := configurePort(fd, config); err != nil {
		return fail(err)
	}

	// Stale input from before we owned the device is not ours to forward
	_ = unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)

	return &port{
		fd:     fd,
		path:   device,
		config: config,
	}, nil
}

// configurePort puts the line into raw mode with the requested framing
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	// Raw mode, 8N1 by default
	termios.Cflag = unix.CS8 | unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	// Reads are bounded by poll, not VTIME
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	baudRate, err := getBaudRate(config.BaudRate)
	if err != nil {
		return err
	}
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baudRate
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	if config.DataBits != 8 {
		termios.Cflag &^= unix.CSIZE
		switch config.DataBits {
		case 5:
			termios.Cflag |= unix.CS5
		case 6:
			termios.Cflag |= unix.CS6
		case 7:
			termios.Cflag |= unix.CS7
		default:
			return ErrInvalidConfig
		}
	}

	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// Path returns the device path the port was opened with
func (p *port) Path() string { return p.path }

// Config returns the line settings in effect
func (p *port) Config() Config { return p.config }

// Close closes the serial port
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.closed = true

	if p.config.Exclusive {
		// TIOCEXCL outlives our fd while anyone else holds the tty open
		_ = unix.IoctlSetInt(p.fd, unix.TIOCNXCL, 0)
	}
	return unix.Close(p.fd)
}

// wait polls the descriptor for events for at most d. An interrupted
// poll reports not ready.
func (p *port) wait(events int16, d time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: events}}
	n, err := unix.Poll(fds, int(d.Milliseconds()))
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Read reads whatever is available, waiting at most ReadTimeout.
// A zero-length read with a nil error means the timeout elapsed.
// A device that has been unplugged or hung up yields ErrDeviceGone.
func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	ready, err := p.wait(unix.POLLIN, p.config.ReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", p.path, err)
	}
	if !ready {
		return 0, nil
	}

	for {
		n, err := unix.Read(p.fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", p.path, err)
		}
		if n == 0 {
			// A hung-up tty reads as EOF forever; termios calls fail on it
			if _, terr := unix.IoctlGetTermios(p.fd, unix.TCGETS); terr != nil {
				return 0, fmt.Errorf("read %s: %w: %v", p.path, ErrDeviceGone, terr)
			}
		}
		return n, nil
	}
}

// Write writes all of data unless the device fails or the port is closed;
// n reports how much was accepted. The port lock is only held for one
// bounded wait at a time, so Close does not wait for a long write.
func (p *port) Write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := p.writeSome(data[written:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// writeSome makes one non-blocking write, or waits up to writeSlice for room
func (p *port) writeSome(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.Write(p.fd, data)
	switch {
	case err == unix.EINTR:
		return 0, nil
	case err == unix.EAGAIN:
		if _, err := p.wait(unix.POLLOUT, writeSlice); err != nil {
			return 0, fmt.Errorf("write %s: %w", p.path, err)
		}
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("write %s: %w", p.path, err)
	case n == 0:
		return 0, fmt.Errorf("write %s: %w", p.path, ErrDeviceGone)
	}
	return n, nil
}

// Drain waits until all output written to the port has been transmitted
func (p *port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// FlushInput discards any unread input data
func (p *port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)
}

// FlushOutput discards any unwritten output data
func (p *port) FlushOutput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCOFLUSH)
}
