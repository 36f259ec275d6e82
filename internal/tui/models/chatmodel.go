package models

import (
	"time"

	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/internal/metrics"
	"github.com/allbin/sergw/internal/tui/components"
)

// ChatLogLimit bounds the chat transcript
const ChatLogLimit = 200

// sentSource tags lines typed locally in the transcript
var sentSource = components.Source{ClientID: ^uint64(0), Addr: "you"}

// ChatModel is the state behind the chat client
type ChatModel struct {
	addr      string
	status    bridge.LinkStatus
	err       error
	attempt   int
	log       []components.Sample
	inputMode InputMode
	formatter *components.DataFormatter

	throughput    *metrics.Throughput
	inBps, outBps float64
}

func NewChatModel(addr string) *ChatModel {
	return &ChatModel{
		addr:       addr,
		status:     bridge.Opening,
		formatter:  components.NewDataFormatter(components.DumpASCII, 0),
		throughput: metrics.NewThroughput(metrics.DefaultTau),
	}
}

func (m *ChatModel) Addr() string { return m.addr }

func (m *ChatModel) Status() bridge.LinkStatus { return m.status }

func (m *ChatModel) Err() error { return m.err }

func (m *ChatModel) Attempt() int { return m.attempt }

func (m *ChatModel) SetConnecting(attempt int, err error) {
	m.status = bridge.Opening
	m.attempt = attempt
	m.err = err
}

func (m *ChatModel) SetConnected() {
	m.status = bridge.Connected
	m.attempt = 0
	m.err = nil
}

func (m *ChatModel) SetDisconnected(err error) {
	m.status = bridge.Disconnected
	m.err = err
}

// Received appends bytes read from the bridge
func (m *ChatModel) Received(at time.Time, data []byte) {
	m.throughput.AddIn(len(data))
	m.append(components.Sample{Time: at, Data: data})
}

// Sent appends bytes written to the bridge
func (m *ChatModel) Sent(at time.Time, data []byte) {
	m.throughput.AddOut(len(data))
	m.append(components.Sample{Time: at, Source: sentSource, Data: data})
}

func (m *ChatModel) append(s components.Sample) {
	m.log = append(m.log, s)
	if len(m.log) > ChatLogLimit {
		m.log = m.log[len(m.log)-ChatLogLimit:]
	}
}

func (m *ChatModel) Transcript() []components.Sample { return m.log }

func (m *ChatModel) FormattedTranscript() []string {
	return m.formatter.FormatSamples(m.log)
}

func (m *ChatModel) Clear() { m.log = nil }

func (m *ChatModel) CycleFormat() components.DumpFormat { return m.formatter.CycleFormat() }

func (m *ChatModel) Format() components.DumpFormat { return m.formatter.Format() }

func (m *ChatModel) InputMode() InputMode { return m.inputMode }

func (m *ChatModel) SetInputMode(mode InputMode) { m.inputMode = mode }

func (m *ChatModel) IsInInsertMode() bool { return m.inputMode == InputModeInsert }

// Tick samples the smoothed throughput
func (m *ChatModel) Tick(now time.Time) {
	m.inBps, m.outBps = m.throughput.Sample(now)
}

// Throughput returns the last sampled rates: received, sent
func (m *ChatModel) Throughput() (inBps, outBps float64) {
	return m.inBps, m.outBps
}
