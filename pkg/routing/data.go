package routing

import (
	"sync"
	"time"
)

// PendingRequest is a customer waiting in the FIFO queue for an agent to
// accept the conversation.
type PendingRequest struct {
	Party       Party     `json:"party"`
	RequestedAt time.Time `json:"requested_at"`
}

// Engagement pairs the accepting side (owner, typically the agent) with
// the requesting side (counterpart, typically the customer).
type Engagement struct {
	Owner       Party     `json:"owner"`
	Counterpart Party     `json:"counterpart"`
	Since       time.Time `json:"since"`
}

// RoutingData is the complete routing state. It is what gets persisted
// between restarts.
type RoutingData struct {
	UserParties        []Party          `json:"user_parties"`
	BotParties         []Party          `json:"bot_parties"`
	AggregationParties []Party          `json:"aggregation_parties"`
	PendingRequests    []PendingRequest `json:"pending_requests"`
	Engagements        []Engagement     `json:"engagements"`
}

// state holds the routing data behind a single mutex. PartyRegistry,
// EngagementTable and AggregationAuthority are views over the same state,
// so any combination of their operations is serialized.
type state struct {
	mu   sync.Mutex
	data RoutingData
}

func newState() *state {
	return &state{}
}

// snapshot returns a deep copy of the routing data for persistence and
// read-only listings.
func (s *state) snapshot() RoutingData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.clone()
}

// restore replaces the routing data wholesale, used when loading
// persisted state at startup.
func (s *state) restore(data RoutingData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data.clone()
}

func (d RoutingData) clone() RoutingData {
	out := RoutingData{
		UserParties:        append([]Party(nil), d.UserParties...),
		BotParties:         append([]Party(nil), d.BotParties...),
		AggregationParties: append([]Party(nil), d.AggregationParties...),
		PendingRequests:    append([]PendingRequest(nil), d.PendingRequests...),
		Engagements:        append([]Engagement(nil), d.Engagements...),
	}
	return out
}

func containsParty(list []Party, p Party) bool {
	for _, q := range list {
		if q.SameIdentity(p) {
			return true
		}
	}
	return false
}

func removeParty(list []Party, p Party) ([]Party, bool) {
	for i, q := range list {
		if q.SameIdentity(p) {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// removeChannelMatches drops every entry sharing p's channel identity,
// regardless of conversation.
func removeChannelMatches(list []Party, p Party) ([]Party, bool) {
	kept := list[:0]
	removed := false
	for _, q := range list {
		if q.SameChannelIdentity(p) {
			removed = true
			continue
		}
		kept = append(kept, q)
	}
	return kept, removed
}
