package components

import (
	"bytes"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		mode    SendingMode
		want    []byte
		wantErr bool
	}{
		{"ascii appends newline", "AT", SendingModeASCII, []byte("AT\n"), false},
		{"empty ascii is a bare newline", "", SendingModeASCII, []byte("\n"), false},
		{"hex compact", "41540d0a", SendingModeHex, []byte("AT\r\n"), false},
		{"hex spaced", "41 54 0D 0A", SendingModeHex, []byte("AT\r\n"), false},
		{"hex odd length", "415", SendingModeHex, nil, true},
		{"hex garbage", "zz", SendingModeHex, nil, true},
		{"hex empty", "  ", SendingModeHex, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.text, tt.mode)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Encode(%q) expected error, got %q", tt.text, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode(%q) error: %v", tt.text, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestInputHistory(t *testing.T) {
	in := NewInput()
	in.AddToHistory("one")
	in.AddToHistory("two")
	in.AddToHistory("two")
	in.AddToHistory("   ")

	in.SetValue("draft")
	in.NavigateHistoryUp()
	if in.Value() != "two" {
		t.Fatalf("after up = %q, want two", in.Value())
	}
	in.NavigateHistoryUp()
	if in.Value() != "one" {
		t.Fatalf("after up up = %q, want one", in.Value())
	}
	in.NavigateHistoryUp()
	if in.Value() != "one" {
		t.Fatalf("history should stop at oldest entry, got %q", in.Value())
	}
	in.NavigateHistoryDown()
	in.NavigateHistoryDown()
	if in.Value() != "draft" {
		t.Errorf("down past newest should restore draft, got %q", in.Value())
	}
}

func TestToggleSendingMode(t *testing.T) {
	in := NewInput()
	if in.SendingMode() != SendingModeASCII {
		t.Fatalf("default mode = %v", in.SendingMode())
	}
	in.ToggleSendingMode()
	if in.SendingMode() != SendingModeHex {
		t.Errorf("toggled mode = %v", in.SendingMode())
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{12*time.Minute + 3*time.Second, "12m03s"},
		{3*time.Hour + 4*time.Minute + 59*time.Second, "3h04m"},
	}
	for _, tt := range tests {
		if got := FormatUptime(tt.d); got != tt.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
