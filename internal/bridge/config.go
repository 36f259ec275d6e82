package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/sergw/serial"
)

// OpenPolicy decides when the serial device is first opened
type OpenPolicy int

const (
	// OpenEager opens at startup; failure aborts Run
	OpenEager OpenPolicy = iota
	// OpenLazy starts listening immediately and retries the device in the background
	OpenLazy
	// OpenOnDemand leaves the device closed until the first client connects
	OpenOnDemand
)

func (p OpenPolicy) String() string {
	switch p {
	case OpenLazy:
		return "lazy"
	case OpenOnDemand:
		return "on-demand"
	default:
		return "eager"
	}
}

// ParseOpenPolicy accepts eager, lazy or on-demand
func ParseOpenPolicy(s string) (OpenPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eager":
		return OpenEager, nil
	case "lazy":
		return OpenLazy, nil
	case "on-demand", "ondemand":
		return OpenOnDemand, nil
	}
	return OpenEager, fmt.Errorf("invalid open policy %q (valid: eager, lazy, on-demand)", s)
}

const (
	DefaultListen        = "127.0.0.1:5656"
	DefaultQueueCapacity = 4096
	DefaultWriteQueue    = 4096
	DefaultReconnectMin  = 250 * time.Millisecond
	DefaultReconnectMax  = 5 * time.Second
	DefaultReadSize      = 4096
)

// Config is everything the bridge needs once the CLI has resolved its inputs
type Config struct {
	Device string
	Serial serial.Config
	Listen string

	// QueueCapacity is the per-client outbound queue length, in chunks
	QueueCapacity int
	// WriteQueue is the shared client-to-serial queue length, in chunks
	WriteQueue int
	OpenPolicy OpenPolicy

	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// ReadSize bounds a single read from the device or a socket
	ReadSize int
}

// DefaultConfig returns a Config for device with every other field defaulted
func DefaultConfig(device string) Config {
	return Config{
		Device:        device,
		Serial:        serial.DefaultConfig(),
		Listen:        DefaultListen,
		QueueCapacity: DefaultQueueCapacity,
		WriteQueue:    DefaultWriteQueue,
		OpenPolicy:    OpenEager,
		ReconnectMin:  DefaultReconnectMin,
		ReconnectMax:  DefaultReconnectMax,
		ReadSize:      DefaultReadSize,
	}
}

// withDefaults fills zero values
func (c Config) withDefaults() Config {
	if c.Serial == (serial.Config{}) {
		c.Serial = serial.DefaultConfig()
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.WriteQueue == 0 {
		c.WriteQueue = DefaultWriteQueue
	}
	if c.ReconnectMin == 0 {
		c.ReconnectMin = DefaultReconnectMin
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = DefaultReconnectMax
	}
	if c.ReadSize == 0 {
		c.ReadSize = DefaultReadSize
	}
	return c
}

// Validate reports the first unusable setting
func (c Config) Validate() error {
	switch {
	case c.Device == "":
		return fmt.Errorf("%w: no device", serial.ErrInvalidConfig)
	case c.Serial.ReadTimeout <= 0:
		// zero makes device reads non-blocking
		return fmt.Errorf("%w: serial read timeout must be positive, got %v", serial.ErrInvalidConfig, c.Serial.ReadTimeout)
	case c.QueueCapacity < 1:
		return fmt.Errorf("%w: queue capacity must be at least 1, got %d", serial.ErrInvalidConfig, c.QueueCapacity)
	case c.WriteQueue < 1:
		return fmt.Errorf("%w: write queue must be at least 1, got %d", serial.ErrInvalidConfig, c.WriteQueue)
	case c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin:
		return fmt.Errorf("%w: reconnect backoff %v..%v", serial.ErrInvalidConfig, c.ReconnectMin, c.ReconnectMax)
	case c.ReadSize < 1:
		return fmt.Errorf("%w: read size must be positive", serial.ErrInvalidConfig)
	}
	return nil
}
