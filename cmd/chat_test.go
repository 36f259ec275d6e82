package cmd

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/allbin/sergw/internal/bridge"
	tea "github.com/charmbracelet/bubbletea"
)

func nextMsg(t *testing.T, msgs <-chan tea.Msg) tea.Msg {
	t.Helper()
	select {
	case msg := <-msgs:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for chat message")
		return nil
	}
}

func TestChatConnReceivesAndReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan tea.Msg, 64)
	conn := newChatConn(ln.Addr().String())
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.run(ctx, func(msg tea.Msg) { msgs <- msg })
	}()

	server, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}

	if msg, ok := nextMsg(t, msgs).(chatStatusMsg); !ok || msg.status != bridge.Connected {
		t.Fatalf("first message = %#v, want connected", msg)
	}

	server.Write([]byte("OK\r\n"))
	data, ok := nextMsg(t, msgs).(chatDataMsg)
	if !ok || string(data.data) != "OK\r\n" {
		t.Fatalf("data message = %#v", data)
	}

	if err := conn.write([]byte("AT\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 3)
	server.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := server.Read(buf); err != nil || string(buf) != "AT\n" {
		t.Fatalf("server read %q, %v", buf, err)
	}

	// the bridge dropping us is followed by a redial
	server.Close()
	if msg, ok := nextMsg(t, msgs).(chatStatusMsg); !ok || msg.status != bridge.Disconnected {
		t.Fatalf("after close = %#v, want disconnected", msg)
	}
	server, err = ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	if msg, ok := nextMsg(t, msgs).(chatStatusMsg); !ok || msg.status != bridge.Connected {
		t.Fatalf("after redial = %#v, want connected", msg)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if err := conn.write([]byte("x")); !errors.Is(err, errNotConnected) {
		t.Errorf("write after shutdown = %v, want errNotConnected", err)
	}
}

func TestChatConnRetriesUntilBridgeIsUp(t *testing.T) {
	// reserve a port, then free it so the first dials are refused
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan tea.Msg, 64)
	conn := newChatConn(addr)
	go conn.run(ctx, func(msg tea.Msg) { msgs <- msg })

	msg, ok := nextMsg(t, msgs).(chatStatusMsg)
	if !ok || msg.status != bridge.Opening || msg.attempt != 1 || msg.err == nil {
		t.Fatalf("first message = %#v, want failed attempt 1", msg)
	}
	if err := conn.write([]byte("x")); !errors.Is(err, errNotConnected) {
		t.Errorf("write while disconnected = %v", err)
	}

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		t.Skipf("could not rebind %s: %v", addr, err)
	}
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			defer c.Close()
			<-ctx.Done()
		}
	}()

	for {
		msg, ok := nextMsg(t, msgs).(chatStatusMsg)
		if !ok {
			t.Fatalf("unexpected message %#v", msg)
		}
		if msg.status == bridge.Connected {
			return
		}
		if msg.status != bridge.Opening {
			t.Fatalf("status = %v while retrying", msg.status)
		}
	}
}
