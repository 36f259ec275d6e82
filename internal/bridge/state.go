package bridge

import (
	"fmt"
	"time"
)

// LinkStatus is the tag of the serial link state machine
type LinkStatus int

const (
	Disconnected LinkStatus = iota
	Opening
	Connected
	Failed
)

func (s LinkStatus) String() string {
	switch s {
	case Opening:
		return "opening"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// LinkState is a snapshot of the serial link. Err is the cause of the last
// transition away from Connected, or the last open failure. Attempt counts
// open attempts since the link was last connected.
type LinkState struct {
	Status  LinkStatus
	Err     error
	Attempt int
	Since   time.Time
}

func (s LinkState) String() string {
	switch {
	case s.Status == Failed && s.Err != nil:
		return fmt.Sprintf("failed (attempt %d): %v", s.Attempt, s.Err)
	case s.Status == Opening && s.Err != nil:
		return fmt.Sprintf("opening after: %v", s.Err)
	default:
		return s.Status.String()
	}
}
