package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tinyland-inc/relaybot/pkg/bus"
	"github.com/tinyland-inc/relaybot/pkg/logger"
)

// Reply texts the coordinator sends back to users. Kept as constants so
// channel adapters and tests agree on the wording.
const (
	ReplyNotInitialized       = "Not initialized: no channel is receiving conversation requests yet"
	ReplyAggregationSet       = "This channel is now where the requests are aggregated"
	ReplyAggregationAlready   = "This channel is already receiving requests"
	ReplyRequestPending       = "Please wait for your request to be accepted"
	ReplyRequestAccepted      = "Your request has been accepted"
	ReplyRequestRejected      = "Your request was rejected"
	ReplyConversationClosed   = "The other party left the conversation"
	ReplyRequestNotForwarded  = "No agent channel could be reached right now, your request stays queued"
	ReplyNotAllowed           = "Sorry, you are not allowed to do that"
	ReplyNotInConversation    = "You are not in a conversation"
	ReplyOnlyOwnerCloses      = "Only the party that accepted the conversation can close it"
	ReplyCommandNotRecognized = "Command not recognized"
)

const (
	defaultBroadcastTimeout = 10 * time.Second
	maxTranscriptLines      = 20
	summaryTimeout          = 30 * time.Second
)

// Options configures the coordinator's request handling.
type Options struct {
	// AggregationRequired gates request creation on at least one
	// aggregation channel being registered.
	AggregationRequired bool
	// AutoAccept engages new requesters immediately with the bot of the
	// first aggregation channel instead of queueing them.
	AutoAccept bool
	// BroadcastTimeout bounds each per-recipient delivery during a
	// request broadcast.
	BroadcastTimeout time.Duration
}

// CommandHandler lets the coordinator hand messages that look like
// commands to the interpreter without importing it. TryHandle returns
// true when the message was consumed as a command; addressed tells the
// handler the message was explicitly directed at the bot, in which case
// unknown input should be answered rather than passed back.
type CommandHandler interface {
	TryHandle(sender Party, text string, addressed bool) bool
}

// Summarizer produces a short digest of the messages a requester sent
// while waiting, delivered to the accepting agent.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []string) (string, error)
}

// Coordinator drives the engagement state machine: it registers parties
// from inbound traffic, creates and broadcasts pending requests, engages
// and disengages pairs, and relays messages between engaged parties. All
// routing state sits behind one mutex; transport I/O happens outside it.
type Coordinator struct {
	registry    *PartyRegistry
	engagements *EngagementTable
	aggregation *AggregationAuthority
	st          *state
	transport   Transport
	opts        Options

	commands   CommandHandler
	storage    Storage
	summarizer Summarizer

	trMu        sync.Mutex
	transcripts map[string][]string
}

// NewCoordinator wires a coordinator around the given transport.
func NewCoordinator(transport Transport, opts Options) *Coordinator {
	if opts.BroadcastTimeout <= 0 {
		opts.BroadcastTimeout = defaultBroadcastTimeout
	}
	st := newState()
	return &Coordinator{
		registry:    newPartyRegistry(st),
		engagements: newEngagementTable(st, nil),
		aggregation: newAggregationAuthority(st, opts.AggregationRequired),
		st:          st,
		transport:   transport,
		opts:        opts,
		transcripts: make(map[string][]string),
	}
}

// SetCommandHandler installs the command interpreter.
func (c *Coordinator) SetCommandHandler(h CommandHandler) { c.commands = h }

// SetStorage installs persistence. Mutating operations save after they
// complete; call LoadState to restore at startup.
func (c *Coordinator) SetStorage(s Storage) { c.storage = s }

// SetSummarizer installs an optional transcript summarizer used on accept.
func (c *Coordinator) SetSummarizer(s Summarizer) { c.summarizer = s }

// Registry exposes the party registry view.
func (c *Coordinator) Registry() *PartyRegistry { return c.registry }

// Engagements exposes the engagement table view.
func (c *Coordinator) Engagements() *EngagementTable { return c.engagements }

// Aggregation exposes the aggregation authority view.
func (c *Coordinator) Aggregation() *AggregationAuthority { return c.aggregation }

// Snapshot returns a copy of the current routing data.
func (c *Coordinator) Snapshot() RoutingData { return c.st.snapshot() }

// LoadState restores persisted routing data, replacing the current state.
func (c *Coordinator) LoadState() error {
	if c.storage == nil {
		return nil
	}
	data, err := c.storage.Load()
	if err != nil {
		return err
	}
	c.st.restore(data)
	logger.InfoCF("routing", "Routing state restored", map[string]any{
		"users":       len(data.UserParties),
		"requests":    len(data.PendingRequests),
		"engagements": len(data.Engagements),
	})
	return nil
}

// PartyFromIdentity maps a channel identity onto a routing party.
func PartyFromIdentity(channel string, id bus.Identity) Party {
	var account *Account
	if id.AccountID != "" {
		account = &Account{ID: id.AccountID, Name: id.AccountName}
	}
	return Party{
		ServiceEndpoint: id.ServiceEndpoint,
		ChannelID:       channel,
		Account:         account,
		Conversation:    Conversation{ID: id.ConversationID},
	}
}

// HandleInbound is the single entry point for messages arriving from any
// channel. It registers the endpoints, then routes the message: commands
// from aggregation channels and engaged owners, relay between engaged
// pairs, request initiation for everyone else.
func (c *Coordinator) HandleInbound(msg bus.InboundMessage) {
	sender := PartyFromIdentity(msg.Channel, msg.Sender)
	if !sender.HasAccount() || sender.Conversation.ID == "" {
		logger.WarnCF("routing", "Dropping message without sender identity", map[string]any{
			"channel": msg.Channel,
		})
		return
	}
	logger.DebugCF("routing", "Inbound message", map[string]any{
		"channel":      msg.Channel,
		"conversation": sender.Conversation.ID,
		"sender":       sender.Name(),
	})
	if msg.Event == bus.EventDisconnect {
		c.RemoveParty(sender)
		return
	}
	bot := PartyFromIdentity(msg.Channel, msg.Recipient)
	bot.Conversation = sender.Conversation
	_ = c.registry.AddBot(bot)
	_ = c.registry.AddUser(sender)

	addressed := mentionsAccount(msg.Mentions, msg.Recipient.AccountID)

	if c.aggregation.IsAggregationChannel(sender) {
		if c.commands != nil && c.commands.TryHandle(sender, msg.Content, true) {
			return
		}
		// Plain chatter in the agent channel is not routed anywhere.
		return
	}

	if m, ok := c.engagements.FindEngagedCounterpart(sender); ok {
		if m.Role == RoleOwner {
			if c.commands != nil && c.commands.TryHandle(sender, msg.Content, addressed) {
				return
			}
			c.relay(sender, m.Other, msg.Content, false)
			return
		}
		c.relay(sender, m.Other, msg.Content, true)
		return
	}

	if addressed && c.commands != nil && c.commands.TryHandle(sender, msg.Content, true) {
		return
	}

	c.initiateRequest(sender, msg.Content)
}

// SendTo delivers text to a party through the transport.
func (c *Coordinator) SendTo(p Party, text string) DeliveryResult {
	result := c.transport.Send(p, text)
	if !result.Success {
		logger.WarnCF("routing", "Delivery failed", map[string]any{
			"channel":      p.ChannelID,
			"conversation": p.Conversation.ID,
			"error":        fmt.Sprint(result.Err),
		})
	}
	return result
}

// relay forwards text inside an engagement. Messages from the counterpart
// are prefixed with the sender's name so the owner sees who is talking;
// messages from the owner go through verbatim.
func (c *Coordinator) relay(from, to Party, text string, prefix bool) {
	out := text
	if prefix {
		out = fmt.Sprintf("%s says: %s", from.Name(), text)
	}
	if result := c.transport.Send(to, out); !result.Success {
		logger.ErrorCF("routing", "Relay delivery failed", map[string]any{
			"from": from.String(),
			"to":   to.String(),
		})
		c.SendTo(from, "Failed to deliver your message, please try again")
	}
}

// initiateRequest puts an unengaged sender into the pending queue and
// notifies the aggregation channels.
func (c *Coordinator) initiateRequest(sender Party, content string) {
	if !c.aggregation.RequirementSatisfied() {
		c.SendTo(sender, ReplyNotInitialized)
		return
	}

	err := c.engagements.AddRequest(sender)
	if err == ErrAlreadyExists {
		// Already waiting; keep the text for the accept-time summary.
		c.appendTranscript(sender, content)
		c.SendTo(sender, ReplyRequestPending)
		return
	}
	if err != nil {
		logger.WarnCF("routing", "Request not created", map[string]any{
			"party": sender.String(),
			"error": err.Error(),
		})
		return
	}
	c.appendTranscript(sender, content)
	logger.InfoCF("routing", "Conversation request created", map[string]any{
		"party": sender.String(),
	})

	if c.opts.AutoAccept && c.tryAutoAccept(sender) {
		c.persist()
		return
	}
	c.persist()

	if !c.aggregation.AggregationRequired() {
		c.SendTo(sender, ReplyRequestPending)
		return
	}

	notice := fmt.Sprintf("%s is requesting a conversation. Reply \"accept %s\" to accept.",
		sender.Name(), sender.Name())
	if c.broadcast(notice) {
		c.SendTo(sender, ReplyRequestPending)
	} else {
		c.SendTo(sender, ReplyRequestNotForwarded)
	}
}

// broadcast delivers the notice to every aggregation channel in parallel,
// bounding each attempt by the configured timeout. One success is enough.
func (c *Coordinator) broadcast(text string) bool {
	targets := c.aggregation.AggregationParties()
	if len(targets) == 0 {
		return false
	}
	results := make(chan bool, len(targets))
	for _, target := range targets {
		go func(p Party) {
			done := make(chan DeliveryResult, 1)
			go func() { done <- c.transport.Send(p, text) }()
			select {
			case r := <-done:
				results <- r.Success
			case <-time.After(c.opts.BroadcastTimeout):
				logger.WarnCF("routing", "Broadcast recipient timed out", map[string]any{
					"channel":      p.ChannelID,
					"conversation": p.Conversation.ID,
				})
				results <- false
			}
		}(target)
	}
	ok := false
	for range targets {
		if <-results {
			ok = true
		}
	}
	return ok
}

// tryAutoAccept engages the requester with the bot of the first
// aggregation channel, so agents watching that channel see the relayed
// conversation without an explicit accept.
func (c *Coordinator) tryAutoAccept(requester Party) bool {
	for _, agg := range c.aggregation.AggregationParties() {
		bot, ok := c.registry.FindBotFor(agg.ChannelID, agg.Conversation.ID)
		if !ok || !bot.HasAccount() {
			continue
		}
		if err := c.engagements.Engage(bot, requester); err != nil {
			logger.WarnCF("routing", "Auto-accept failed", map[string]any{
				"party": requester.String(),
				"error": err.Error(),
			})
			return false
		}
		c.SendTo(requester, ReplyRequestAccepted)
		c.SendTo(agg, fmt.Sprintf("%s connected, messages will be relayed here", requester.Name()))
		logger.InfoCF("routing", "Request auto-accepted", map[string]any{
			"party": requester.String(),
		})
		return true
	}
	return false
}

// Accept engages the accepting sender with the named pending requester.
// It returns the text to show the sender.
func (c *Coordinator) Accept(sender Party, name string) string {
	if !c.aggregation.IsAggregationChannel(sender) {
		return ReplyNotAllowed
	}
	if !sender.HasAccount() {
		return ReplyNotAllowed
	}
	if m, ok := c.engagements.FindEngagedCounterpart(sender); ok && m.Role == RoleOwner {
		return fmt.Sprintf("You are still in a conversation with %s, close it first", m.Other.Name())
	}

	target, err := c.engagements.FindRequestByName(name)
	if err != nil {
		// Ambiguous names fail closed the same as a miss; never pick one.
		return fmt.Sprintf("No pending request from %q", name)
	}

	conv, err := c.transport.CreateDirectConversation(sender)
	if err != nil {
		logger.ErrorCF("routing", "Failed to open direct conversation", map[string]any{
			"party": sender.String(),
			"error": err.Error(),
		})
		return "Could not open a direct conversation for you, request not accepted"
	}
	owner := Party{
		ServiceEndpoint: sender.ServiceEndpoint,
		ChannelID:       sender.ChannelID,
		Account:         sender.Account,
		Conversation:    conv,
	}
	if err := c.engagements.Engage(owner, target); err != nil {
		return fmt.Sprintf("Could not accept %s: %s", name, err)
	}
	c.persist()
	logger.InfoCF("routing", "Request accepted", map[string]any{
		"owner":       owner.String(),
		"counterpart": target.String(),
	})

	c.SendTo(target, ReplyRequestAccepted)
	c.SendTo(owner, fmt.Sprintf("You are now chatting with %s", target.Name()))
	c.deliverSummary(owner, target)
	return fmt.Sprintf("Accepted the request from %s", target.Name())
}

// Reject drops the named pending request and notifies the requester.
func (c *Coordinator) Reject(sender Party, name string) string {
	if !c.aggregation.IsAggregationChannel(sender) {
		return ReplyNotAllowed
	}
	target, err := c.engagements.FindRequestByName(name)
	if err != nil {
		return fmt.Sprintf("No pending request from %q", name)
	}
	if err := c.engagements.RemoveRequest(target); err != nil {
		return fmt.Sprintf("No pending request from %q", name)
	}
	c.dropTranscript(target)
	c.persist()
	c.SendTo(target, ReplyRequestRejected)
	return fmt.Sprintf("Rejected the request from %s", target.Name())
}

// Close ends the engagement the sender owns and notifies the counterpart.
func (c *Coordinator) Close(sender Party) string {
	m, ok := c.engagements.FindEngagedCounterpart(sender)
	if !ok {
		// Auto-accepted engagements are owned by the bot; let agents in
		// that conversation close them.
		return c.closeByConversation(sender)
	}
	if m.Role != RoleOwner {
		return ReplyOnlyOwnerCloses
	}
	if _, err := c.engagements.Disengage(m.Self); err != nil {
		return ReplyNotInConversation
	}
	c.dropTranscript(m.Other)
	c.persist()
	c.SendTo(m.Other, ReplyConversationClosed)
	logger.InfoCF("routing", "Engagement closed", map[string]any{
		"owner":       m.Self.String(),
		"counterpart": m.Other.String(),
	})
	return fmt.Sprintf("You ended the conversation with %s", m.Other.Name())
}

func (c *Coordinator) closeByConversation(sender Party) string {
	for _, e := range c.engagements.Engagements() {
		if e.Owner.ChannelID == sender.ChannelID &&
			e.Owner.ServiceEndpoint == sender.ServiceEndpoint &&
			e.Owner.Conversation.ID == sender.Conversation.ID {
			if _, err := c.engagements.Disengage(e.Owner); err != nil {
				continue
			}
			c.dropTranscript(e.Counterpart)
			c.persist()
			c.SendTo(e.Counterpart, ReplyConversationClosed)
			return fmt.Sprintf("You ended the conversation with %s", e.Counterpart.Name())
		}
	}
	return ReplyNotInConversation
}

// InitializeAggregation marks the sender's conversation as an aggregation
// channel.
func (c *Coordinator) InitializeAggregation(sender Party) string {
	err := c.aggregation.RegisterAggregationChannel(sender)
	if err == ErrAlreadyExists {
		return ReplyAggregationAlready
	}
	if err != nil {
		return ReplyCommandNotRecognized
	}
	c.persist()
	logger.InfoCF("routing", "Aggregation channel registered", map[string]any{
		"channel":      sender.ChannelID,
		"conversation": sender.Conversation.ID,
	})
	return ReplyAggregationSet
}

// DeinitializeAggregation removes the sender's conversation from the
// aggregation set.
func (c *Coordinator) DeinitializeAggregation(sender Party) string {
	if err := c.aggregation.DeregisterAggregationChannel(sender); err != nil {
		return "This channel is not receiving requests"
	}
	c.persist()
	logger.InfoCF("routing", "Aggregation channel removed", map[string]any{
		"channel":      sender.ChannelID,
		"conversation": sender.Conversation.ID,
	})
	return "This channel no longer receives requests"
}

// SetAggregationRequired toggles whether requests need an aggregation
// channel.
func (c *Coordinator) SetAggregationRequired(required bool) string {
	c.aggregation.SetAggregationRequired(required)
	if required {
		return "Aggregation is now required for new requests"
	}
	return "Aggregation is no longer required for new requests"
}

// Reset clears all routing state: parties, requests, and engagements.
func (c *Coordinator) Reset() string {
	c.st.restore(RoutingData{})
	c.trMu.Lock()
	c.transcripts = make(map[string][]string)
	c.trMu.Unlock()
	c.persist()
	logger.InfoC("routing", "Routing state reset")
	return "Routing state cleared"
}

// RemoveParty drops the party everywhere and notifies counterparts of any
// engagement this dissolved. Used when a channel reports a user as gone.
func (c *Coordinator) RemoveParty(p Party) {
	orphaned := c.registry.RemoveParty(p)
	c.dropTranscript(p)
	c.persist()
	for _, other := range orphaned {
		c.SendTo(other, ReplyConversationClosed)
	}
}

func (c *Coordinator) deliverSummary(owner, requester Party) {
	if c.summarizer == nil {
		return
	}
	transcript := c.takeTranscript(requester)
	if len(transcript) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
		defer cancel()
		summary, err := c.summarizer.Summarize(ctx, transcript)
		if err != nil {
			logger.WarnCF("routing", "Summary unavailable", map[string]any{
				"error": err.Error(),
			})
			return
		}
		c.SendTo(owner, fmt.Sprintf("Before you joined, %s wrote:\n%s", requester.Name(), summary))
	}()
}

func (c *Coordinator) appendTranscript(p Party, content string) {
	if content == "" {
		return
	}
	key := transcriptKey(p)
	c.trMu.Lock()
	defer c.trMu.Unlock()
	lines := c.transcripts[key]
	if len(lines) >= maxTranscriptLines {
		return
	}
	c.transcripts[key] = append(lines, content)
}

func (c *Coordinator) takeTranscript(p Party) []string {
	key := transcriptKey(p)
	c.trMu.Lock()
	defer c.trMu.Unlock()
	lines := c.transcripts[key]
	delete(c.transcripts, key)
	return lines
}

func (c *Coordinator) dropTranscript(p Party) {
	c.trMu.Lock()
	defer c.trMu.Unlock()
	delete(c.transcripts, transcriptKey(p))
}

func transcriptKey(p Party) string {
	return fmt.Sprintf("%s|%s|%s|%s", p.ServiceEndpoint, p.ChannelID, p.accountID(), p.Conversation.ID)
}

func (c *Coordinator) persist() {
	if c.storage == nil {
		return
	}
	if err := c.storage.Save(c.st.snapshot()); err != nil {
		logger.ErrorCF("routing", "Failed to persist routing state", map[string]any{
			"error": err.Error(),
		})
	}
}

func mentionsAccount(mentions []string, accountID string) bool {
	if accountID == "" {
		return false
	}
	for _, m := range mentions {
		if m == accountID {
			return true
		}
	}
	return false
}
