// Package channels connects the router to chat platforms. Each channel
// adapter turns platform events into bus messages and delivers outbound
// text; the Manager multiplexes them and implements routing.Transport.
package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/tinyland-inc/relaybot/pkg/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Send delivers text to a conversation and returns the platform
	// message ID.
	Send(conversationID, text string) (string, error)
	// CreateDirectConversation opens or resolves a 1:1 conversation with
	// the account and returns its conversation ID.
	CreateDirectConversation(accountID string) (string, error)
	IsRunning() bool
	IsAllowed(senderID string) bool
}

type BaseChannel struct {
	bus       *bus.MessageBus
	running   atomic.Bool
	name      string
	endpoint  string
	allowList []string
}

func NewBaseChannel(name, endpoint string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		bus:       msgBus,
		name:      name,
		endpoint:  endpoint,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	// Extract parts from compound senderID like "123456|username"
	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID := trimmed
		allowedUser := ""
		if idx := strings.Index(trimmed, "|"); idx > 0 {
			allowedID = trimmed[:idx]
			allowedUser = trimmed[idx+1:]
		}

		// Either side may use the "id|username" compound form.
		if senderID == allowed ||
			idPart == allowed ||
			senderID == trimmed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && senderID == allowedUser) ||
			(userPart != "" && (userPart == allowed || userPart == trimmed || userPart == allowedUser)) {
			return true
		}
	}

	return false
}

// HandleMessage publishes an inbound platform message onto the bus after
// the allowlist check.
func (c *BaseChannel) HandleMessage(
	messageID, senderID, senderName, conversationID, content string,
	botID, botName string,
	mentions []string,
) {
	if !c.IsAllowed(senderID) {
		return
	}

	msg := bus.InboundMessage{
		Channel: c.name,
		Sender: bus.Identity{
			ServiceEndpoint: c.endpoint,
			ChannelID:       c.name,
			ConversationID:  conversationID,
			AccountID:       senderID,
			AccountName:     senderName,
		},
		Recipient: bus.Identity{
			ServiceEndpoint: c.endpoint,
			ChannelID:       c.name,
			ConversationID:  conversationID,
			AccountID:       botID,
			AccountName:     botName,
		},
		Content:   content,
		Mentions:  mentions,
		MessageID: messageID,
	}

	c.bus.PublishInbound(context.TODO(), msg)
}

// HandleDisconnect publishes a disconnect event for a sender whose session
// on the channel ended, so the router can drop the party.
func (c *BaseChannel) HandleDisconnect(senderID, senderName, conversationID string) {
	msg := bus.InboundMessage{
		Channel: c.name,
		Sender: bus.Identity{
			ServiceEndpoint: c.endpoint,
			ChannelID:       c.name,
			ConversationID:  conversationID,
			AccountID:       senderID,
			AccountName:     senderName,
		},
		Event: bus.EventDisconnect,
	}

	c.bus.PublishInbound(context.TODO(), msg)
}
