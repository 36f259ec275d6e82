package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/sergw/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// DumpFormat selects how sample bytes are rendered
type DumpFormat int

const (
	DumpHex DumpFormat = iota
	DumpASCII
	DumpDec
)

func (f DumpFormat) String() string {
	switch f {
	case DumpASCII:
		return "ascii"
	case DumpDec:
		return "dec"
	default:
		return "hex"
	}
}

// Next cycles hex -> ascii -> dec -> hex
func (f DumpFormat) Next() DumpFormat {
	return (f + 1) % 3
}

// Source says where a sample came from. The zero value is the serial device.
type Source struct {
	ClientID uint64
	Addr     string
}

func (s Source) IsSerial() bool { return s.ClientID == 0 }

func (s Source) String() string {
	if s.IsSerial() {
		return "serial"
	}
	return s.Addr
}

// Sample is one chunk seen on the bridge
type Sample struct {
	Time   time.Time
	Source Source
	Data   []byte
}

// Dump renders at most max bytes of data in format f. ASCII drops CR and
// LF and shows other non-printable bytes as '.'.
func Dump(data []byte, f DumpFormat, max int) string {
	truncated := 0
	if max > 0 && len(data) > max {
		truncated = len(data) - max
		data = data[:max]
	}

	var b strings.Builder
	switch f {
	case DumpASCII:
		for _, c := range data {
			switch {
			case c == '\r' || c == '\n':
			case c >= 32 && c <= 126:
				b.WriteByte(c)
			default:
				b.WriteByte('.')
			}
		}
	case DumpDec:
		for i, c := range data {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%03d", c)
		}
	default:
		for i, c := range data {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%02x", c)
		}
	}

	if truncated > 0 {
		fmt.Fprintf(&b, " …(+%d)", truncated)
	}
	return b.String()
}

type DataFormatter struct {
	format DumpFormat
	max    int
}

func NewDataFormatter(format DumpFormat, max int) *DataFormatter {
	return &DataFormatter{format: format, max: max}
}

func (df *DataFormatter) Format() DumpFormat { return df.format }

func (df *DataFormatter) SetFormat(f DumpFormat) { df.format = f }

func (df *DataFormatter) CycleFormat() DumpFormat {
	df.format = df.format.Next()
	return df.format
}

func (df *DataFormatter) FormatSample(s Sample) string {
	timestamp := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Render(fmt.Sprintf("[%s]", s.Time.Format("15:04:05.000")))

	// serial data flows down to clients, client data flows up to the device
	var indicator string
	if s.Source.IsSerial() {
		indicator = lipgloss.NewStyle().
			Foreground(styles.Sky).
			Bold(true).
			Render("↙ serial")
	} else {
		indicator = lipgloss.NewStyle().
			Foreground(styles.Peach).
			Bold(true).
			Render("↗ " + s.Source.Addr)
	}

	return fmt.Sprintf("%s %s: %s", timestamp, indicator, Dump(s.Data, df.format, df.max))
}

func (df *DataFormatter) FormatSamples(samples []Sample) []string {
	formatted := make([]string, len(samples))
	for i, s := range samples {
		formatted[i] = df.FormatSample(s)
	}
	return formatted
}
