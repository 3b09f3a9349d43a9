package e2e

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinyland-inc/relaybot/pkg/bus"
	"github.com/tinyland-inc/relaybot/pkg/commands"
	"github.com/tinyland-inc/relaybot/pkg/routing"
)

// memTransport records every delivery so the scenarios below can assert on
// the exact conversation each reply lands in.
type memTransport struct {
	mu        sync.Mutex
	sent      map[string][]string
	failConvs map[string]bool
	directSeq int
}

func newMemTransport() *memTransport {
	return &memTransport{
		sent:      make(map[string][]string),
		failConvs: make(map[string]bool),
	}
}

func (m *memTransport) Send(p routing.Party, text string) routing.DeliveryResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConvs[p.Conversation.ID] {
		return routing.DeliveryResult{Success: false, Err: errors.New("unreachable")}
	}
	m.sent[p.Conversation.ID] = append(m.sent[p.Conversation.ID], text)
	return routing.DeliveryResult{Success: true, MessageID: fmt.Sprintf("m%d", len(m.sent))}
}

func (m *memTransport) CreateDirectConversation(p routing.Party) (routing.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directSeq++
	return routing.Conversation{ID: fmt.Sprintf("direct-%d", m.directSeq)}, nil
}

func (m *memTransport) messages(conversationID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent[conversationID]))
	copy(out, m.sent[conversationID])
	return out
}

func (m *memTransport) last(t *testing.T, conversationID string) string {
	t.Helper()
	msgs := m.messages(conversationID)
	if len(msgs) == 0 {
		t.Fatalf("no messages delivered to %s", conversationID)
	}
	return msgs[len(msgs)-1]
}

func (m *memTransport) contains(conversationID, substr string) bool {
	for _, msg := range m.messages(conversationID) {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// newStack wires the coordinator and the command interpreter the same way
// the gateway does at startup.
func newStack(tr routing.Transport) *routing.Coordinator {
	coord := routing.NewCoordinator(tr, routing.Options{
		AggregationRequired: true,
		BroadcastTimeout:    time.Second,
	})
	interp := commands.NewInterpreter(coord, ".", []string{"relaybot"})
	coord.SetCommandHandler(interp)
	return coord
}

func msg(channel, accountID, name, conv, content string, mentioned bool) bus.InboundMessage {
	m := bus.InboundMessage{
		Channel: channel,
		Sender: bus.Identity{
			ServiceEndpoint: "https://" + channel + ".example",
			ChannelID:       channel,
			ConversationID:  conv,
			AccountID:       accountID,
			AccountName:     name,
		},
		Recipient: bus.Identity{
			ServiceEndpoint: "https://" + channel + ".example",
			ChannelID:       channel,
			ConversationID:  conv,
			AccountID:       "bot",
			AccountName:     "relaybot",
		},
		Content: content,
	}
	if mentioned {
		m.Mentions = []string{"bot"}
	}
	return m
}

// initAgents makes the slack "agents" conversation the aggregation channel
// by sending "@relaybot init" the way a real agent would.
func initAgents(t *testing.T, coord *routing.Coordinator, tr *memTransport) {
	t.Helper()
	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "init", true))
	if got := tr.last(t, "agents"); got != routing.ReplyAggregationSet {
		t.Fatalf("init reply = %q", got)
	}
}

func TestHandoffLifecycle(t *testing.T) {
	tr := newMemTransport()
	coord := newStack(tr)

	// A customer writing before any agent channel exists gets turned away.
	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "hello?", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyNotInitialized {
		t.Fatalf("pre-init reply = %q", got)
	}

	initAgents(t, coord, tr)

	// The same customer writes again. The request is queued and the agent
	// channel sees the notice.
	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "I need help", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyRequestPending {
		t.Fatalf("request reply = %q", got)
	}
	if !tr.contains("agents", "alice is requesting a conversation") {
		t.Fatalf("agent channel never saw the request notice: %v", tr.messages("agents"))
	}

	// Writing again while queued repeats the pending reply, no second notice.
	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "anyone there?", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyRequestPending {
		t.Fatalf("repeat request reply = %q", got)
	}

	// The agent accepts from the aggregation channel.
	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "accept alice", false))
	if !tr.contains("agents", "Accepted the request from") {
		t.Fatalf("agent never saw accept confirmation: %v", tr.messages("agents"))
	}
	if got := tr.last(t, "web-1"); got != routing.ReplyRequestAccepted {
		t.Fatalf("customer accept reply = %q", got)
	}

	// Customer to agent: prefixed with the customer's name. The agent now
	// talks from the direct conversation the transport created.
	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "my order is stuck", false))
	if got := tr.last(t, "direct-1"); got != "alice says: my order is stuck" {
		t.Fatalf("relay to agent = %q", got)
	}

	// Agent to customer: verbatim.
	coord.HandleInbound(msg("slack", "u-mika", "mika", "direct-1", "let me check", false))
	if got := tr.last(t, "web-1"); got != "let me check" {
		t.Fatalf("relay to customer = %q", got)
	}

	// The customer typing "close" is just relayed text.
	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "close", false))
	if got := tr.last(t, "direct-1"); got != "alice says: close" {
		t.Fatalf("counterpart close should relay, got %q", got)
	}

	// The agent closing ends the engagement and tells the customer.
	coord.HandleInbound(msg("slack", "u-mika", "mika", "direct-1", "close", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyConversationClosed {
		t.Fatalf("close reply to customer = %q", got)
	}
	if len(coord.Engagements().Engagements()) != 0 {
		t.Fatal("engagement survived close")
	}

	// A message after close starts a fresh request.
	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "one more thing", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyRequestPending {
		t.Fatalf("post-close reply = %q", got)
	}
}

func TestRejectFlow(t *testing.T) {
	tr := newMemTransport()
	coord := newStack(tr)
	initAgents(t, coord, tr)

	coord.HandleInbound(msg("telegram", "9001", "bob", "tg-9001", "hi", false))
	if got := tr.last(t, "tg-9001"); got != routing.ReplyRequestPending {
		t.Fatalf("request reply = %q", got)
	}

	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "reject bob", false))
	if got := tr.last(t, "tg-9001"); got != routing.ReplyRequestRejected {
		t.Fatalf("reject reply = %q", got)
	}
	if len(coord.Engagements().Requests()) != 0 {
		t.Fatal("request survived rejection")
	}

	// Rejecting a name nobody queued reports the miss to the agent.
	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "reject ghost", false))
	if !tr.contains("agents", "No pending request") {
		t.Fatalf("missing-request reply not seen: %v", tr.messages("agents"))
	}
}

func TestUnknownCommandOnlyWhenAddressed(t *testing.T) {
	tr := newMemTransport()
	coord := newStack(tr)
	initAgents(t, coord, tr)

	// Addressed gibberish from an unengaged user gets the unknown reply
	// instead of queueing a request.
	coord.HandleInbound(msg("webchat", "guest-2", "carol", "web-2", "@relaybot frobnicate", true))
	if got := tr.last(t, "web-2"); got != routing.ReplyCommandNotRecognized {
		t.Fatalf("addressed gibberish reply = %q", got)
	}
	if len(coord.Engagements().Requests()) != 0 {
		t.Fatal("gibberish should not queue a request")
	}

	// The same text without addressing the bot is a normal request.
	coord.HandleInbound(msg("webchat", "guest-2", "carol", "web-2", "frobnicate", false))
	if got := tr.last(t, "web-2"); got != routing.ReplyRequestPending {
		t.Fatalf("plain text reply = %q", got)
	}
}

func TestDeinitStopsAggregation(t *testing.T) {
	tr := newMemTransport()
	coord := newStack(tr)
	initAgents(t, coord, tr)

	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "deinit", false))
	if !tr.contains("agents", "no longer receives") {
		t.Fatalf("deinit reply not seen: %v", tr.messages("agents"))
	}

	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "help", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyNotInitialized {
		t.Fatalf("post-deinit reply = %q", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	tr := newMemTransport()
	coord := newStack(tr)
	initAgents(t, coord, tr)

	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "help", false))
	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "accept alice", false))
	coord.HandleInbound(msg("telegram", "9001", "bob", "tg-9001", "help", false))

	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "reset", false))

	snap := coord.Snapshot()
	if len(snap.Engagements) != 0 || len(snap.PendingRequests) != 0 || len(snap.AggregationParties) != 0 {
		t.Fatalf("reset left state behind: %+v", snap)
	}

	// After a reset the system behaves like a fresh start.
	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "still there?", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyNotInitialized {
		t.Fatalf("post-reset reply = %q", got)
	}
}

func TestBroadcastFailureKeepsRequest(t *testing.T) {
	tr := newMemTransport()
	coord := newStack(tr)
	initAgents(t, coord, tr)
	tr.mu.Lock()
	tr.failConvs["agents"] = true
	tr.mu.Unlock()

	coord.HandleInbound(msg("webchat", "guest-1", "alice", "web-1", "help", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyRequestNotForwarded {
		t.Fatalf("unreachable-agents reply = %q", got)
	}
	if len(coord.Engagements().Requests()) != 1 {
		t.Fatal("request should stay queued when the notice cannot be delivered")
	}

	// Once the agent channel is back, the queued request is still acceptable.
	tr.mu.Lock()
	delete(tr.failConvs, "agents")
	tr.mu.Unlock()
	coord.HandleInbound(msg("slack", "u-mika", "mika", "agents", "accept alice", false))
	if got := tr.last(t, "web-1"); got != routing.ReplyRequestAccepted {
		t.Fatalf("late accept reply = %q", got)
	}
}
