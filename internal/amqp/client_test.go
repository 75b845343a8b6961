package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestReportExportMessageRoundTrip(t *testing.T) {
	msg := NewReportExportMessage("whatsapp:+628123456789", "monthly")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := ReportExportMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.Owner != msg.Owner {
		t.Errorf("owner = %q, want %q", got.Owner, msg.Owner)
	}
	if got.Window != msg.Window {
		t.Errorf("window = %q, want %q", got.Window, msg.Window)
	}
	if !got.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, msg.Timestamp)
	}
}

func TestReportExportMessageFromJSONInvalid(t *testing.T) {
	if _, err := ReportExportMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{20, 30 * time.Second},
		{63, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := exponentialBackoff(tt.attempt); got != tt.want {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("unknown window")

	if IsPermanent(nil) {
		t.Error("nil must not be permanent")
	}
	if IsPermanent(base) {
		t.Error("plain errors must default to transient")
	}
	if !IsPermanent(Permanent(base)) {
		t.Error("wrapped error must be permanent")
	}
	// The marker survives further wrapping up the call chain.
	wrapped := fmt.Errorf("handle message: %w", Permanent(base))
	if !IsPermanent(wrapped) {
		t.Error("permanent marker lost through wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Error("original error lost through Permanent")
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:5672: connection refused"), true},
		{"closed", errors.New("Exception (504) Reason: \"channel/connection is not open\": connection closed"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"unrelated", errors.New("access refused for user"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
