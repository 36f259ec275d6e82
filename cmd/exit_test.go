package cmd

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/serial"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"generic", errors.New("boom"), ExitFailure},
		{"no ports", &serial.OpenError{Kind: serial.OpenErrNotFound}, ExitNoPorts},
		{"multiple ports", &serial.OpenError{Kind: serial.OpenErrMultipleCandidates, Candidates: []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}}, ExitMultiplePorts},
		{"explicit device missing", &serial.OpenError{Kind: serial.OpenErrNotFound, Path: "/dev/ttyUSB9"}, ExitSerialError},
		{"busy", &serial.OpenError{Kind: serial.OpenErrBusy, Path: "/dev/ttyUSB0"}, ExitSerialError},
		{"permission", &serial.OpenError{Kind: serial.OpenErrPermission, Path: "/dev/ttyUSB0"}, ExitSerialError},
		{"bind", &bridge.NetError{Kind: bridge.BindFailed, Addr: "127.0.0.1:5656", Err: syscall.EADDRINUSE}, ExitBindError},
		{"wrapped bind", fmt.Errorf("listen: %w", &bridge.NetError{Kind: bridge.BindFailed}), ExitBindError},
		{"peer reset is not fatal", &bridge.NetError{Kind: bridge.PeerReset}, ExitFailure},
		{"wrapped open error", fmt.Errorf("startup: %w", &serial.OpenError{Kind: serial.OpenErrMultipleCandidates}), ExitMultiplePorts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
