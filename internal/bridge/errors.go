package bridge

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// ErrShutdown is the cause recorded for clients closed because the bridge stopped
var ErrShutdown = errors.New("bridge shutting down")

// NetErrorKind classifies network failures
type NetErrorKind int

const (
	PeerReset NetErrorKind = iota + 1
	PeerClosed
	BindFailed
)

func (k NetErrorKind) String() string {
	switch k {
	case PeerReset:
		return "peer reset"
	case PeerClosed:
		return "peer closed"
	case BindFailed:
		return "bind failed"
	default:
		return "network error"
	}
}

// NetError wraps a socket failure. Only BindFailed is fatal to the bridge.
type NetError struct {
	Kind NetErrorKind
	Addr string
	Err  error
}

func (e *NetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Addr, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Addr, e.Kind, e.Err)
}

func (e *NetError) Unwrap() error { return e.Err }

// classifyNetError turns a session read/write error into a NetError.
// A locally closed socket yields nil: whoever closed it already reported why.
func classifyNetError(addr string, err error) error {
	switch {
	case err == nil, errors.Is(err, net.ErrClosed):
		return nil
	case errors.Is(err, io.EOF):
		return &NetError{Kind: PeerClosed, Addr: addr, Err: err}
	default:
		// ECONNRESET, EPIPE and anything else the kernel reports mid-stream
		return &NetError{Kind: PeerReset, Addr: addr, Err: err}
	}
}
