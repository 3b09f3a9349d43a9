package channels

import (
	"context"
	"testing"

	"github.com/tinyland-inc/relaybot/pkg/bus"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"empty list allows everyone", nil, "12345", true},
		{"plain id match", []string{"12345"}, "12345", true},
		{"plain id mismatch", []string{"12345"}, "99999", false},
		{"compound sender, id in list", []string{"12345"}, "12345|alice", true},
		{"compound sender, username in list", []string{"@alice"}, "12345|alice", true},
		{"compound both sides", []string{"12345|alice"}, "12345|alice", true},
		{"compound list, plain id sender", []string{"12345|alice"}, "12345", true},
		{"username only, wrong user", []string{"@bob"}, "12345|alice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("test", "https://test.example", bus.NewMessageBus(), tt.allowList)
			if got := c.IsAllowed(tt.senderID); got != tt.want {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.senderID, got, tt.want)
			}
		})
	}
}

func TestHandleMessagePublishesInbound(t *testing.T) {
	b := bus.NewMessageBus()
	c := NewBaseChannel("webchat", "ws://localhost", b, nil)

	c.HandleMessage("m1", "a1", "alice", "w1", "hello", "bot", "relaybot", []string{"bot"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("no inbound message published")
	}
	if msg.Channel != "webchat" || msg.Sender.AccountID != "a1" || msg.Content != "hello" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Recipient.AccountID != "bot" || len(msg.Mentions) != 1 {
		t.Errorf("recipient/mentions = %+v", msg)
	}
	if msg.Sender.ConversationID != "w1" || msg.Recipient.ConversationID != "w1" {
		t.Errorf("conversation IDs = %+v", msg)
	}
}

func TestHandleDisconnectPublishesEvent(t *testing.T) {
	b := bus.NewMessageBus()
	c := NewBaseChannel("webchat", "ws://localhost", b, nil)

	c.HandleDisconnect("a1", "alice", "w1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("no disconnect event published")
	}
	if msg.Event != bus.EventDisconnect {
		t.Errorf("event = %q, want %q", msg.Event, bus.EventDisconnect)
	}
	if msg.Channel != "webchat" || msg.Sender.AccountID != "a1" || msg.Sender.ConversationID != "w1" {
		t.Errorf("sender identity = %+v", msg)
	}
	if msg.Content != "" {
		t.Errorf("content = %q, want empty", msg.Content)
	}
}

func TestHandleMessageRespectsAllowlist(t *testing.T) {
	b := bus.NewMessageBus()
	c := NewBaseChannel("webchat", "ws://localhost", b, []string{"someone-else"})

	c.HandleMessage("m1", "a1", "alice", "w1", "hello", "bot", "relaybot", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Error("blocked sender's message was published")
	}
}
