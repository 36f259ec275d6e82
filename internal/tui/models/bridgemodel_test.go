package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/allbin/sergw/internal/bridge"
)

func connected(id uint64, addr string) bridge.Event {
	return bridge.Event{Kind: bridge.ClientConnected, ClientID: id, Addr: addr}
}

func TestBridgeModelEventLog(t *testing.T) {
	m := NewBridgeModel("/dev/ttyUSB0", "115200 8N1", "127.0.0.1:5656")

	m.Apply(connected(1, "10.0.0.1:4000"))
	m.Apply(bridge.Event{Kind: bridge.ClientDisconnected, ClientID: 1, Addr: "10.0.0.1:4000"})
	m.Apply(bridge.Event{Kind: bridge.ClientDropped, ClientID: 2, Addr: "10.0.0.2:4000", Reason: bridge.BackpressureOverflow})

	log := m.EventLog()
	want := []string{
		"Connected: 10.0.0.1:4000",
		"Disconnected: 10.0.0.1:4000",
		"Dropped: 10.0.0.2:4000 (backpressure_overflow)",
	}
	if len(log) != len(want) {
		t.Fatalf("got %d log entries, want %d", len(log), len(want))
	}
	for i := range want {
		if log[i].Text != want[i] {
			t.Errorf("entry %d = %q, want %q", i, log[i].Text, want[i])
		}
	}
	if log[2].Level != LogWarn {
		t.Errorf("drop should log as a warning")
	}
}

func TestBridgeModelEventLogIsBounded(t *testing.T) {
	m := NewBridgeModel("", "", "")
	for i := 0; i < EventLogLimit+25; i++ {
		m.Apply(connected(uint64(i+1), fmt.Sprintf("h:%d", i)))
	}
	log := m.EventLog()
	if len(log) != EventLogLimit {
		t.Fatalf("log length = %d, want %d", len(log), EventLogLimit)
	}
	if log[0].Text != "Connected: h:25" {
		t.Errorf("oldest retained entry = %q", log[0].Text)
	}
}

func TestBridgeModelTracksLinkState(t *testing.T) {
	m := NewBridgeModel("", "", "")
	m.Apply(bridge.Event{Kind: bridge.LinkStateChanged, State: bridge.LinkState{Status: bridge.Connected}})
	if m.Link().Status != bridge.Connected {
		t.Fatalf("link = %v", m.Link())
	}

	m.Apply(bridge.Event{Kind: bridge.LinkStateChanged, State: bridge.LinkState{
		Status: bridge.Failed, Attempt: 2, Err: errors.New("no such device"),
	}})
	log := m.EventLog()
	last := log[len(log)-1]
	if last.Level != LogError || last.Text != "Serial: failed (attempt 2): no such device" {
		t.Errorf("last entry = %+v", last)
	}
}

func TestBridgeModelCaptureRing(t *testing.T) {
	m := NewBridgeModel("", "", "")
	for i := 0; i < CaptureLimit+10; i++ {
		m.Apply(bridge.Event{Kind: bridge.BytesSerialToClient, N: 1, Data: []byte{byte(i)}})
	}
	c := m.Capture()
	if len(c) != CaptureLimit {
		t.Fatalf("capture length = %d, want %d", len(c), CaptureLimit)
	}
	if c[0].Data[0] != byte(10) {
		t.Errorf("oldest sample = %d, want 10", c[0].Data[0])
	}
	newest := CaptureLimit + 9
	if c[len(c)-1].Data[0] != byte(newest) {
		t.Errorf("newest sample = %d", c[len(c)-1].Data[0])
	}
}

func TestBridgeModelPause(t *testing.T) {
	m := NewBridgeModel("", "", "")
	m.Apply(bridge.Event{Kind: bridge.BytesSerialToClient, N: 2, Data: []byte("OK")})
	if !m.TogglePause() {
		t.Fatal("TogglePause should report paused")
	}
	m.Apply(bridge.Event{Kind: bridge.BytesSerialToClient, N: 2, Data: []byte("OK")})
	if len(m.Capture()) != 1 {
		t.Errorf("paused capture grew to %d", len(m.Capture()))
	}
	m.TogglePause()
	m.Apply(bridge.Event{Kind: bridge.BytesSerialToClient, N: 2, Data: []byte("OK")})
	if len(m.Capture()) != 2 {
		t.Errorf("resumed capture = %d, want 2", len(m.Capture()))
	}
}

func TestBridgeModelSourceFilter(t *testing.T) {
	m := NewBridgeModel("", "", "")
	m.Apply(connected(1, "a:1"))
	m.Apply(connected(2, "b:2"))
	m.Apply(bridge.Event{Kind: bridge.BytesClientToSerial, ClientID: 1, N: 2, Data: []byte("AT")})
	m.Apply(bridge.Event{Kind: bridge.BytesSerialToClient, N: 2, Data: []byte("OK")})
	m.Apply(bridge.Event{Kind: bridge.BytesClientToSerial, ClientID: 2, N: 1, Data: []byte("Z")})

	if got := m.Sources(); len(got) != 4 || got[0] != "all" || got[1] != "serial" || got[2] != "a:1" || got[3] != "b:2" {
		t.Fatalf("sources = %v", got)
	}

	tests := []struct {
		label string
		want  int
	}{
		{"all", 3},
		{"serial", 1},
		{"a:1", 1},
		{"b:2", 1},
	}
	for _, tt := range tests {
		if m.SelectedLabel() != tt.label {
			t.Fatalf("selected %q, want %q", m.SelectedLabel(), tt.label)
		}
		if got := len(m.Filtered()); got != tt.want {
			t.Errorf("%s: %d samples, want %d", tt.label, got, tt.want)
		}
		m.NextSource()
	}
	if m.SelectedLabel() != "all" {
		t.Errorf("NextSource should wrap to all, got %q", m.SelectedLabel())
	}

	m.PrevSource()
	if m.SelectedLabel() != "b:2" {
		t.Fatalf("PrevSource should wrap to b:2, got %q", m.SelectedLabel())
	}
	if addr := m.Filtered()[0].Source.Addr; addr != "b:2" {
		t.Errorf("client sample addr = %q", addr)
	}

	// selection falls back to all when the selected client leaves
	m.Apply(bridge.Event{Kind: bridge.ClientDisconnected, ClientID: 2, Addr: "b:2"})
	if m.SelectedLabel() != "all" {
		t.Errorf("selected after disconnect = %q", m.SelectedLabel())
	}
	if len(m.Sources()) != 3 {
		t.Errorf("sources after disconnect = %v", m.Sources())
	}
}

func TestBridgeModelSelectionFollowsRemoval(t *testing.T) {
	m := NewBridgeModel("", "", "")
	m.Apply(connected(1, "a:1"))
	m.Apply(connected(2, "b:2"))
	m.NextSource()
	m.NextSource()
	m.NextSource()
	if m.SelectedLabel() != "b:2" {
		t.Fatalf("selected = %q", m.SelectedLabel())
	}
	m.Apply(bridge.Event{Kind: bridge.ClientDropped, ClientID: 1, Addr: "a:1", Reason: bridge.BackpressureOverflow})
	if m.SelectedLabel() != "b:2" {
		t.Errorf("selection moved to %q after another client left", m.SelectedLabel())
	}
}

func TestBridgeModelThroughput(t *testing.T) {
	m := NewBridgeModel("", "", "")
	m.Apply(bridge.Event{Kind: bridge.BytesClientToSerial, ClientID: 1, N: 500, Data: make([]byte, 500)})
	m.Apply(bridge.Event{Kind: bridge.BytesSerialToClient, N: 1000, Data: make([]byte, 1000)})
	m.Tick(time.Now().Add(time.Second))

	in, out := m.Throughput()
	if in <= 0 || out <= 0 {
		t.Fatalf("throughput = %v/%v, want positive", in, out)
	}
	if out <= in {
		t.Errorf("serial->client rate %v should exceed client->serial %v", out, in)
	}
}

func TestChatModelTranscriptBounded(t *testing.T) {
	m := NewChatModel("127.0.0.1:5656")
	now := time.Now()
	for i := 0; i < ChatLogLimit+5; i++ {
		m.Received(now, []byte("OK"))
	}
	m.Sent(now, []byte("AT\n"))
	if got := len(m.Transcript()); got != ChatLogLimit {
		t.Fatalf("transcript length = %d, want %d", got, ChatLogLimit)
	}
	last := m.Transcript()[ChatLogLimit-1]
	if last.Source.IsSerial() || last.Source.Addr != "you" {
		t.Errorf("last line source = %+v", last.Source)
	}
}

func TestChatModelConnectionState(t *testing.T) {
	m := NewChatModel("127.0.0.1:5656")
	if m.Status() != bridge.Opening {
		t.Fatalf("initial status = %v", m.Status())
	}
	m.SetConnecting(3, errors.New("refused"))
	if m.Attempt() != 3 || m.Err() == nil {
		t.Errorf("connecting state = %d %v", m.Attempt(), m.Err())
	}
	m.SetConnected()
	if m.Status() != bridge.Connected || m.Err() != nil || m.Attempt() != 0 {
		t.Errorf("connected state = %v %v %d", m.Status(), m.Err(), m.Attempt())
	}
}
