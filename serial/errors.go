package serial

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound     = errors.New("serial device not found")
	ErrMultipleCandidates = errors.New("multiple serial devices found")
	ErrPermissionDenied   = errors.New("permission denied accessing serial device")
	ErrDeviceInUse        = errors.New("serial device already in use")
	ErrInvalidBaudRate    = errors.New("invalid baud rate")
	ErrInvalidConfig      = errors.New("invalid serial configuration")
	ErrPortClosed         = errors.New("serial port is closed")
	ErrDeviceGone         = errors.New("serial device hung up")
)

// OpenErrorKind classifies why a device could not be opened.
type OpenErrorKind int

const (
	OpenErrOther OpenErrorKind = iota
	OpenErrNotFound
	OpenErrMultipleCandidates
	OpenErrBusy
	OpenErrPermission
	OpenErrMisconfigured
)

func (k OpenErrorKind) String() string {
	switch k {
	case OpenErrNotFound:
		return "not found"
	case OpenErrMultipleCandidates:
		return "multiple candidates"
	case OpenErrBusy:
		return "busy"
	case OpenErrPermission:
		return "permission denied"
	case OpenErrMisconfigured:
		return "misconfigured"
	default:
		return "other"
	}
}

// OpenError is returned by Open and SelectPort. Callers branch on Kind,
// or use errors.Is with the matching sentinel (ErrDeviceNotFound, ErrDeviceInUse, ...).
type OpenError struct {
	Kind       OpenErrorKind
	Path       string
	Candidates []string // set for OpenErrMultipleCandidates
	Err        error
}

func (e *OpenError) Error() string {
	switch e.Kind {
	case OpenErrNotFound:
		if e.Path == "" {
			return "no serial ports found; pass --serial <PORT> or run 'ports --all' to inspect"
		}
	case OpenErrMultipleCandidates:
		return fmt.Sprintf("multiple serial ports detected: %s; pass --serial <PORT>", strings.Join(e.Candidates, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("open %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("open %s: %s", e.Path, e.Kind)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Is lets errors.Is match an OpenError against the package sentinels.
func (e *OpenError) Is(target error) bool {
	switch e.Kind {
	case OpenErrNotFound:
		return target == ErrDeviceNotFound
	case OpenErrMultipleCandidates:
		return target == ErrMultipleCandidates
	case OpenErrBusy:
		return target == ErrDeviceInUse
	case OpenErrPermission:
		return target == ErrPermissionDenied
	case OpenErrMisconfigured:
		return target == ErrInvalidConfig
	}
	return false
}

// OpenErrorKindOf returns the kind of the first OpenError in err's chain.
func OpenErrorKindOf(err error) (OpenErrorKind, bool) {
	var oe *OpenError
	if errors.As(err, &oe) {
		return oe.Kind, true
	}
	return OpenErrOther, false
}
