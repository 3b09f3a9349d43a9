// Package routing implements the engagement state machine that pairs
// customers with agents across chat channels: identity tracking, the
// pending-request queue, aggregation-channel authorization, and 1:1
// relay pairings.
package routing

import "fmt"

// Account identifies a user account on a channel. Parties that stand for a
// whole channel or conversation (aggregation endpoints) carry no account.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Conversation identifies a conversation scoped to a service endpoint and
// channel.
type Conversation struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Party identifies one participant instance: the address outbound messages
// for it must be sent to, plus the channel, conversation and (optionally)
// the account speaking there.
type Party struct {
	ServiceEndpoint string       `json:"service_endpoint"`
	ChannelID       string       `json:"channel_id"`
	Account         *Account     `json:"account,omitempty"`
	Conversation    Conversation `json:"conversation"`
}

// NewParty builds a conversation-scoped party for an account. Pass a nil
// account for a party that stands for the conversation itself.
func NewParty(serviceEndpoint, channelID string, account *Account, conversation Conversation) Party {
	return Party{
		ServiceEndpoint: serviceEndpoint,
		ChannelID:       channelID,
		Account:         account,
		Conversation:    conversation,
	}
}

// SameIdentity reports full identity equality: channel, conversation,
// service endpoint, and account ID (or both accounts absent).
func (p Party) SameIdentity(other Party) bool {
	if p.ChannelID != other.ChannelID ||
		p.ServiceEndpoint != other.ServiceEndpoint ||
		p.Conversation.ID != other.Conversation.ID {
		return false
	}
	return p.accountID() == other.accountID() && (p.Account == nil) == (other.Account == nil)
}

// SameChannelIdentity reports equality of the underlying account on a
// channel, ignoring the conversation. Used to find every conversation
// instance of the same account, e.g. across channel reconnections.
func (p Party) SameChannelIdentity(other Party) bool {
	return p.ChannelID == other.ChannelID &&
		p.ServiceEndpoint == other.ServiceEndpoint &&
		p.accountID() == other.accountID()
}

// HasAccount reports whether the party names a specific account.
func (p Party) HasAccount() bool { return p.Account != nil }

// Name returns the party's display name: the account name when present,
// otherwise the conversation name, otherwise the conversation ID.
func (p Party) Name() string {
	if p.Account != nil && p.Account.Name != "" {
		return p.Account.Name
	}
	if p.Conversation.Name != "" {
		return p.Conversation.Name
	}
	return p.Conversation.ID
}

func (p Party) accountID() string {
	if p.Account == nil {
		return ""
	}
	return p.Account.ID
}

// String renders the party for logs and listings.
func (p Party) String() string {
	if p.Account != nil {
		return fmt.Sprintf("%s@%s/%s (%s)", p.Account.ID, p.ChannelID, p.Conversation.ID, p.Name())
	}
	return fmt.Sprintf("%s/%s", p.ChannelID, p.Conversation.ID)
}
