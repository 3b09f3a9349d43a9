package bus

// Identity describes one endpoint of an inbound event as reported by a
// channel adapter: where replies must be sent and who is speaking there.
type Identity struct {
	ServiceEndpoint string `json:"service_endpoint"`
	ChannelID       string `json:"channel_id"`
	ConversationID  string `json:"conversation_id"`
	AccountID       string `json:"account_id,omitempty"`
	AccountName     string `json:"account_name,omitempty"`
}

// EventDisconnect marks an inbound event reporting that the sender's
// session or membership on the channel ended. Content is empty.
const EventDisconnect = "disconnect"

// InboundMessage is one normalized chat event published by a channel adapter.
// Sender is the account that wrote the message; Recipient is the bot identity
// the message was addressed to on that channel.
type InboundMessage struct {
	Channel   string   `json:"channel"`
	Sender    Identity `json:"sender"`
	Recipient Identity `json:"recipient"`
	Content   string   `json:"content"`
	Mentions  []string `json:"mentions,omitempty"` // account IDs mentioned in the message
	MessageID string   `json:"message_id,omitempty"`
	Event     string   `json:"event,omitempty"` // empty for ordinary messages
}
