package routing

import "time"

// Role tells which side of an engagement a party sits on.
type Role int

const (
	// RoleOwner is the side that accepted the conversation, typically
	// the agent.
	RoleOwner Role = iota
	// RoleCounterpart is the side that requested the conversation,
	// typically the customer.
	RoleCounterpart
)

func (r Role) String() string {
	if r == RoleOwner {
		return "owner"
	}
	return "counterpart"
}

// EngagementMatch is the result of an engagement lookup: the role the
// queried party plays and the party on the other side.
type EngagementMatch struct {
	Role  Role
	Self  Party
	Other Party
}

// EngagementTable manages the pending-request queue and the 1:1
// owner/counterpart pairings. A party appears in at most one engagement
// and never in the pending queue while engaged.
type EngagementTable struct {
	st  *state
	now func() time.Time
}

func newEngagementTable(st *state, now func() time.Time) *EngagementTable {
	if now == nil {
		now = time.Now
	}
	return &EngagementTable{st: st, now: now}
}

// AddRequest enqueues the party at the tail of the pending queue. A party
// already waiting or already engaged is rejected.
func (t *EngagementTable) AddRequest(p Party) error {
	if !p.HasAccount() {
		return ErrInvalidArgument
	}
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	for _, req := range t.st.data.PendingRequests {
		if req.Party.SameIdentity(p) {
			return ErrAlreadyExists
		}
	}
	if t.matchLocked(p) != nil {
		return ErrAlreadyEngaged
	}
	t.st.data.PendingRequests = append(t.st.data.PendingRequests, PendingRequest{
		Party:       p,
		RequestedAt: t.now().UTC(),
	})
	return nil
}

// RemoveRequest drops the party from the pending queue.
func (t *EngagementTable) RemoveRequest(p Party) error {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	return t.removeRequestLocked(p)
}

func (t *EngagementTable) removeRequestLocked(p Party) error {
	for i, req := range t.st.data.PendingRequests {
		if req.Party.SameIdentity(p) {
			t.st.data.PendingRequests = append(t.st.data.PendingRequests[:i], t.st.data.PendingRequests[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// FindRequestByName resolves a pending request by exact display name.
// ErrAmbiguous when several requesters share the name, ErrNotFound when
// none do. Ambiguity never picks a winner.
func (t *EngagementTable) FindRequestByName(name string) (Party, error) {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	var found []Party
	for _, req := range t.st.data.PendingRequests {
		if req.Party.Name() == name {
			found = append(found, req.Party)
		}
	}
	switch len(found) {
	case 0:
		return Party{}, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return Party{}, ErrAmbiguous
	}
}

// Requests returns a copy of the pending queue in FIFO order.
func (t *EngagementTable) Requests() []PendingRequest {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	return append([]PendingRequest(nil), t.st.data.PendingRequests...)
}

// Engage pairs owner with counterpart, registers the owner party as a user
// party if it is new, and removes the counterpart's pending request. Fails
// with ErrAlreadyEngaged if either side is already paired.
func (t *EngagementTable) Engage(owner, counterpart Party) error {
	if !owner.HasAccount() || !counterpart.HasAccount() {
		return ErrInvalidArgument
	}
	if owner.SameIdentity(counterpart) {
		return ErrInvalidArgument
	}
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if t.matchLocked(owner) != nil || t.matchLocked(counterpart) != nil {
		return ErrAlreadyEngaged
	}
	if !containsParty(t.st.data.UserParties, owner) {
		t.st.data.UserParties = append(t.st.data.UserParties, owner)
	}
	_ = t.removeRequestLocked(counterpart)
	t.st.data.Engagements = append(t.st.data.Engagements, Engagement{
		Owner:       owner,
		Counterpart: counterpart,
		Since:       t.now().UTC(),
	})
	return nil
}

// Disengage removes the engagement the party belongs to and returns the
// party on the other side.
func (t *EngagementTable) Disengage(p Party) (EngagementMatch, error) {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	for i, e := range t.st.data.Engagements {
		if m := matchEngagement(e, p); m != nil {
			t.st.data.Engagements = append(t.st.data.Engagements[:i], t.st.data.Engagements[i+1:]...)
			return *m, nil
		}
	}
	return EngagementMatch{}, ErrNotFound
}

// FindEngagedCounterpart looks the party up in the engagement table and
// reports which side it is on together with the other side. The lookup
// matches the full party identity first, then falls back to channel
// identity so an account is found regardless of which conversation it
// writes from.
func (t *EngagementTable) FindEngagedCounterpart(p Party) (EngagementMatch, bool) {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	if m := t.matchLocked(p); m != nil {
		return *m, true
	}
	for _, e := range t.st.data.Engagements {
		if p.HasAccount() && e.Owner.SameChannelIdentity(p) {
			return EngagementMatch{Role: RoleOwner, Self: e.Owner, Other: e.Counterpart}, true
		}
		if p.HasAccount() && e.Counterpart.SameChannelIdentity(p) {
			return EngagementMatch{Role: RoleCounterpart, Self: e.Counterpart, Other: e.Owner}, true
		}
	}
	return EngagementMatch{}, false
}

// IsEngaged reports whether the party is part of any engagement.
func (t *EngagementTable) IsEngaged(p Party) bool {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	return t.matchLocked(p) != nil
}

// Engagements returns a copy of the engagement rows.
func (t *EngagementTable) Engagements() []Engagement {
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	return append([]Engagement(nil), t.st.data.Engagements...)
}

func (t *EngagementTable) matchLocked(p Party) *EngagementMatch {
	for _, e := range t.st.data.Engagements {
		if m := matchEngagement(e, p); m != nil {
			return m
		}
	}
	return nil
}

func matchEngagement(e Engagement, p Party) *EngagementMatch {
	if e.Owner.SameIdentity(p) {
		return &EngagementMatch{Role: RoleOwner, Self: e.Owner, Other: e.Counterpart}
	}
	if e.Counterpart.SameIdentity(p) {
		return &EngagementMatch{Role: RoleCounterpart, Self: e.Counterpart, Other: e.Owner}
	}
	return nil
}
