package serial

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "none"
	}
}

// letter is the single-character form used in "8N1" notation
func (p Parity) letter() string {
	switch p {
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	default:
		return "N"
	}
}

// Config holds the line parameters for a serial port
type Config struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	ReadTimeout time.Duration // multiples of 100ms, max 25.5s
	Exclusive   bool          // take an advisory lock and TIOCEXCL on open
}

// String renders the line settings as e.g. "115200 8N1".
func (c Config) String() string {
	return fmt.Sprintf("%d %d%s%d", c.BaudRate, c.DataBits, c.Parity.letter(), c.StopBits)
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		ReadTimeout: 200 * time.Millisecond,
		Exclusive:   true,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) (Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return Config{}, err
		}
	}
	return config, nil
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if _, err := getBaudRate(rate); err != nil {
			return err
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		switch parity {
		case ParityNone, ParityOdd, ParityEven:
		default:
			return ErrInvalidConfig
		}
		c.Parity = parity
		return nil
	}
}

// WithReadTimeout sets how long a single Read may wait for data.
// A zero timeout makes reads non-blocking.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 || timeout > 25500*time.Millisecond || timeout%(100*time.Millisecond) != 0 {
			return ErrInvalidConfig
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithExclusive controls whether Open claims the device exclusively.
func WithExclusive(exclusive bool) Option {
	return func(c *Config) error {
		c.Exclusive = exclusive
		return nil
	}
}

// ParseParity accepts none, odd or even (case-insensitive, n/o/e also work).
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "n", "":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	}
	return ParityNone, fmt.Errorf("%w: parity %q (valid: none, odd, even)", ErrInvalidConfig, s)
}

var bitWords = map[string]int{"one": 1, "two": 2, "five": 5, "six": 6, "seven": 7, "eight": 8}

func parseBits(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, ok := bitWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// ParseDataBits accepts 5-8 either as digits or words ("seven").
func ParseDataBits(s string) (int, error) {
	n, ok := parseBits(s)
	if !ok || n < 5 || n > 8 {
		return 0, fmt.Errorf("%w: data bits %q (valid: 5, 6, 7, 8)", ErrInvalidConfig, s)
	}
	return n, nil
}

// ParseStopBits accepts 1 or 2 either as digits or words ("two").
func ParseStopBits(s string) (int, error) {
	n, ok := parseBits(s)
	if !ok || (n != 1 && n != 2) {
		return 0, fmt.Errorf("%w: stop bits %q (valid: 1, 2)", ErrInvalidConfig, s)
	}
	return n, nil
}
