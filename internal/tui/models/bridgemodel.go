package models

import (
	"fmt"
	"time"

	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/internal/metrics"
	"github.com/allbin/sergw/internal/tui/components"
)

const (
	EventLogLimit = 100
	CaptureLimit  = 2048

	// bytes of each sample shown in the inspector
	dumpLimit = 256
)

type LogLevel int

const (
	LogInfo LogLevel = iota
	LogWarn
	LogError
)

type LogEntry struct {
	Time  time.Time
	Level LogLevel
	Text  string
}

// sourceFilter is one entry of the inspector's source selector
type sourceFilter struct {
	all    bool
	source components.Source
}

func (f sourceFilter) label() string {
	if f.all {
		return "all"
	}
	return f.source.String()
}

func (f sourceFilter) matches(s components.Source) bool {
	return f.all || f.source.ClientID == s.ClientID
}

// BridgeModel is the state behind the listen UI. It is fed bridge events and
// client snapshots and is only touched from the UI goroutine.
type BridgeModel struct {
	device string
	line   string
	listen string

	link    bridge.LinkState
	clients []bridge.ClientInfo
	events  []LogEntry

	capture   []components.Sample
	paused    bool
	filters   []sourceFilter
	selected  int
	formatter *components.DataFormatter

	throughput    *metrics.Throughput
	inBps, outBps float64
}

func NewBridgeModel(device, line, listen string) *BridgeModel {
	return &BridgeModel{
		device: device,
		line:   line,
		listen: listen,
		filters: []sourceFilter{
			{all: true},
			{source: components.Source{}},
		},
		formatter:  components.NewDataFormatter(components.DumpHex, dumpLimit),
		throughput: metrics.NewThroughput(metrics.DefaultTau),
	}
}

func (m *BridgeModel) Device() string { return m.device }

func (m *BridgeModel) Line() string { return m.line }

func (m *BridgeModel) Listen() string { return m.listen }

func (m *BridgeModel) SetListen(addr string) { m.listen = addr }

func (m *BridgeModel) Link() bridge.LinkState { return m.link }

func (m *BridgeModel) SetLink(s bridge.LinkState) { m.link = s }

func (m *BridgeModel) Clients() []bridge.ClientInfo { return m.clients }

// SetClients replaces the polled client snapshot
func (m *BridgeModel) SetClients(clients []bridge.ClientInfo) { m.clients = clients }

// Apply folds one bridge event into the model
func (m *BridgeModel) Apply(ev bridge.Event) {
	switch ev.Kind {
	case bridge.LinkStateChanged:
		m.link = ev.State
		level := LogInfo
		switch ev.State.Status {
		case bridge.Failed:
			level = LogError
		case bridge.Opening, bridge.Disconnected:
			level = LogWarn
		}
		m.log(ev.Time, level, "Serial: %s", ev.State)

	case bridge.ClientConnected:
		m.log(ev.Time, LogInfo, "Connected: %s", ev.Addr)
		m.filters = append(m.filters, sourceFilter{
			source: components.Source{ClientID: ev.ClientID, Addr: ev.Addr},
		})

	case bridge.ClientDisconnected:
		m.log(ev.Time, LogInfo, "Disconnected: %s", ev.Addr)
		m.removeFilter(ev.ClientID)

	case bridge.ClientDropped:
		m.log(ev.Time, LogWarn, "Dropped: %s (%s)", ev.Addr, ev.Reason)
		m.removeFilter(ev.ClientID)

	case bridge.WriteRetried:
		m.log(ev.Time, LogWarn, "Write retry: client #%d, %d bytes pending: %v", ev.ClientID, ev.N, ev.Err)

	case bridge.BytesSerialToClient:
		m.throughput.AddOut(ev.N)
		m.record(components.Sample{Time: ev.Time, Data: ev.Data})

	case bridge.BytesClientToSerial:
		m.throughput.AddIn(ev.N)
		m.record(components.Sample{
			Time:   ev.Time,
			Source: components.Source{ClientID: ev.ClientID, Addr: m.addrOf(ev.ClientID)},
			Data:   ev.Data,
		})
	}
}

func (m *BridgeModel) log(at time.Time, level LogLevel, format string, args ...any) {
	if at.IsZero() {
		at = time.Now()
	}
	m.events = append(m.events, LogEntry{Time: at, Level: level, Text: fmt.Sprintf(format, args...)})
	if len(m.events) > EventLogLimit {
		m.events = m.events[len(m.events)-EventLogLimit:]
	}
}

func (m *BridgeModel) record(s components.Sample) {
	if m.paused {
		return
	}
	if len(m.capture) == CaptureLimit {
		copy(m.capture, m.capture[1:])
		m.capture[len(m.capture)-1] = s
		return
	}
	m.capture = append(m.capture, s)
}

func (m *BridgeModel) addrOf(id uint64) string {
	for _, f := range m.filters {
		if !f.all && f.source.ClientID == id {
			return f.source.Addr
		}
	}
	return fmt.Sprintf("#%d", id)
}

// removeFilter drops a departed client from the selector, keeping the
// current selection on the same source where possible
func (m *BridgeModel) removeFilter(id uint64) {
	for i, f := range m.filters {
		if f.all || f.source.IsSerial() || f.source.ClientID != id {
			continue
		}
		m.filters = append(m.filters[:i], m.filters[i+1:]...)
		switch {
		case m.selected == i:
			m.selected = 0
		case m.selected > i:
			m.selected--
		}
		return
	}
}

func (m *BridgeModel) EventLog() []LogEntry { return m.events }

func (m *BridgeModel) ClearEvents() { m.events = nil }

// Capture returns every retained sample, oldest first
func (m *BridgeModel) Capture() []components.Sample { return m.capture }

func (m *BridgeModel) ClearCapture() { m.capture = nil }

// Filtered returns the retained samples from the selected source
func (m *BridgeModel) Filtered() []components.Sample {
	f := m.filters[m.selected]
	if f.all {
		return m.capture
	}
	out := make([]components.Sample, 0, len(m.capture))
	for _, s := range m.capture {
		if f.matches(s.Source) {
			out = append(out, s)
		}
	}
	return out
}

func (m *BridgeModel) FormattedCapture() []string {
	return m.formatter.FormatSamples(m.Filtered())
}

func (m *BridgeModel) Paused() bool { return m.paused }

func (m *BridgeModel) TogglePause() bool {
	m.paused = !m.paused
	return m.paused
}

func (m *BridgeModel) Format() components.DumpFormat { return m.formatter.Format() }

func (m *BridgeModel) CycleFormat() components.DumpFormat { return m.formatter.CycleFormat() }

// Sources lists the selector labels: all, serial, then each client address
func (m *BridgeModel) Sources() []string {
	labels := make([]string, len(m.filters))
	for i, f := range m.filters {
		labels[i] = f.label()
	}
	return labels
}

func (m *BridgeModel) Selected() int { return m.selected }

func (m *BridgeModel) SelectedLabel() string { return m.filters[m.selected].label() }

func (m *BridgeModel) NextSource() {
	m.selected = (m.selected + 1) % len(m.filters)
}

func (m *BridgeModel) PrevSource() {
	m.selected = (m.selected + len(m.filters) - 1) % len(m.filters)
}

// Tick samples the smoothed throughput
func (m *BridgeModel) Tick(now time.Time) {
	m.inBps, m.outBps = m.throughput.Sample(now)
}

// Throughput returns the last sampled rates: client->serial, serial->client
func (m *BridgeModel) Throughput() (inBps, outBps float64) {
	return m.inBps, m.outBps
}
