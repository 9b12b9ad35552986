package pubsub

import (
	"context"
	"testing"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(EventMessageCreated, "chat-1", MessagePayload{MessageID: "m1", ChatID: "chat-1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.Type != EventMessageCreated || ev.Key != "chat-1" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	var p MessagePayload
	if err := ev.UnmarshalPayload(&p); err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	if p.MessageID != "m1" {
		t.Errorf("payload messageId = %q, want m1", p.MessageID)
	}
}

func TestChannel(t *testing.T) {
	tests := []struct {
		prefix, suffix, want string
	}{
		{"messenger", ChannelMessages, "messenger.messages"},
		{"", ChannelCalls, "calls"},
	}
	for _, tt := range tests {
		if got := Channel(tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("Channel(%q, %q) = %q, want %q", tt.prefix, tt.suffix, got, tt.want)
		}
	}
	if got := len(Channels("x")); got != 4 {
		t.Errorf("len(Channels) = %d, want 4", got)
	}
}

func TestNewPublisher_None(t *testing.T) {
	p, err := NewPublisher(Config{Driver: "none"})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if err := p.Publish(context.Background(), "c", &Event{}); err != nil {
		t.Errorf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewPublisher_Unknown(t *testing.T) {
	if _, err := NewPublisher(Config{Driver: "nats"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
