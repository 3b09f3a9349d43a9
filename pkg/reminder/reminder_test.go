package reminder

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinyland-inc/relaybot/pkg/routing"
)

type captureTransport struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (c *captureTransport) Send(p routing.Party, text string) routing.DeliveryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[p.Conversation.ID] = append(c.sent[p.Conversation.ID], text)
	return routing.DeliveryResult{Success: true}
}

func (c *captureTransport) CreateDirectConversation(p routing.Party) (routing.Conversation, error) {
	return routing.Conversation{ID: "dm"}, nil
}

func setup(t *testing.T) (*Service, *routing.Coordinator, *captureTransport) {
	t.Helper()
	tr := &captureTransport{sent: make(map[string][]string)}
	coord := routing.NewCoordinator(tr, routing.Options{AggregationRequired: true})
	agg := routing.Party{
		ServiceEndpoint: "https://slack.example",
		ChannelID:       "slack",
		Conversation:    routing.Conversation{ID: "agents"},
	}
	if err := coord.Aggregation().RegisterAggregationChannel(agg); err != nil {
		t.Fatal(err)
	}
	svc, err := New(coord, "*/5 * * * *", 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return svc, coord, tr
}

func TestNewRejectsBadSchedule(t *testing.T) {
	coord := routing.NewCoordinator(&captureTransport{sent: map[string][]string{}}, routing.Options{})
	if _, err := New(coord, "not a cron", time.Minute); err == nil {
		t.Error("invalid schedule accepted")
	}
	if _, err := New(coord, "* * * * *", 0); err == nil {
		t.Error("zero threshold accepted")
	}
}

func TestOverdue(t *testing.T) {
	svc, coord, _ := setup(t)

	fresh := routing.Party{
		ServiceEndpoint: "ws://web",
		ChannelID:       "webchat",
		Account:         &routing.Account{ID: "a1", Name: "alice"},
		Conversation:    routing.Conversation{ID: "w1"},
	}
	if err := coord.Engagements().AddRequest(fresh); err != nil {
		t.Fatal(err)
	}

	if got := svc.Overdue(time.Now()); len(got) != 0 {
		t.Errorf("fresh request counted overdue: %v", got)
	}
	if got := svc.Overdue(time.Now().Add(10 * time.Minute)); len(got) != 1 {
		t.Errorf("overdue = %v, want 1 entry", got)
	}
}

func TestSweepNotifiesAggregationChannels(t *testing.T) {
	svc, coord, tr := setup(t)

	alice := routing.Party{
		ServiceEndpoint: "ws://web",
		ChannelID:       "webchat",
		Account:         &routing.Account{ID: "a1", Name: "alice"},
		Conversation:    routing.Conversation{ID: "w1"},
	}
	if err := coord.Engagements().AddRequest(alice); err != nil {
		t.Fatal(err)
	}

	svc.Sweep(time.Now().Add(10 * time.Minute))

	tr.mu.Lock()
	defer tr.mu.Unlock()
	msgs := tr.sent["agents"]
	if len(msgs) != 1 || !strings.Contains(msgs[0], "alice is still waiting") {
		t.Errorf("notices = %v", msgs)
	}
}

func TestSweepSkipsWhenNothingOverdue(t *testing.T) {
	svc, _, tr := setup(t)
	svc.Sweep(time.Now())
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.sent) != 0 {
		t.Errorf("unexpected notices: %v", tr.sent)
	}
}
