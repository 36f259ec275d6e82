/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"

	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/serial"
)

// Process exit statuses
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitNoPorts       = 2
	ExitMultiplePorts = 3
	ExitBindError     = 4
	ExitSerialError   = 5
)

// ExitCode maps an error returned by a command to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var netErr *bridge.NetError
	if errors.As(err, &netErr) && netErr.Kind == bridge.BindFailed {
		return ExitBindError
	}

	var openErr *serial.OpenError
	if errors.As(err, &openErr) {
		switch {
		case openErr.Kind == serial.OpenErrNotFound && openErr.Path == "":
			return ExitNoPorts
		case openErr.Kind == serial.OpenErrMultipleCandidates:
			return ExitMultiplePorts
		default:
			return ExitSerialError
		}
	}

	return ExitFailure
}
