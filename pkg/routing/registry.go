package routing

// PartyRegistry tracks the user and bot parties the router has seen. It
// shares one lock with EngagementTable and AggregationAuthority so cross
// collection operations stay consistent.
type PartyRegistry struct {
	st *state
}

func newPartyRegistry(st *state) *PartyRegistry {
	return &PartyRegistry{st: st}
}

// AddUser registers a user party. Parties without an account or without a
// conversation are rejected. Returns ErrAlreadyExists for duplicates.
func (r *PartyRegistry) AddUser(p Party) error {
	if !p.HasAccount() || p.Conversation.ID == "" {
		return ErrInvalidArgument
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.addUserLocked(p)
}

func (r *PartyRegistry) addUserLocked(p Party) error {
	if containsParty(r.st.data.UserParties, p) {
		return ErrAlreadyExists
	}
	r.st.data.UserParties = append(r.st.data.UserParties, p)
	return nil
}

// AddBot registers a bot party for a conversation. A bot must carry an
// account; without one it cannot be addressed as a relay endpoint.
func (r *PartyRegistry) AddBot(p Party) error {
	if !p.HasAccount() || p.Conversation.ID == "" {
		return ErrInvalidArgument
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if containsParty(r.st.data.BotParties, p) {
		return ErrAlreadyExists
	}
	r.st.data.BotParties = append(r.st.data.BotParties, p)
	return nil
}

// RemoveParty removes every presence of the party's channel identity from
// users, bots, pending requests, and engagements, across all conversations.
// It returns the counterparts of any engagements dissolved so the caller
// can notify them.
func (r *PartyRegistry) RemoveParty(p Party) []Party {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	d := &r.st.data
	d.UserParties, _ = removeChannelMatches(d.UserParties, p)
	d.BotParties, _ = removeChannelMatches(d.BotParties, p)

	kept := d.PendingRequests[:0]
	for _, req := range d.PendingRequests {
		if !req.Party.SameChannelIdentity(p) {
			kept = append(kept, req)
		}
	}
	d.PendingRequests = kept

	var orphaned []Party
	engs := d.Engagements[:0]
	for _, e := range d.Engagements {
		switch {
		case e.Owner.SameChannelIdentity(p):
			orphaned = append(orphaned, e.Counterpart)
		case e.Counterpart.SameChannelIdentity(p):
			orphaned = append(orphaned, e.Owner)
		default:
			engs = append(engs, e)
		}
	}
	d.Engagements = engs
	return orphaned
}

// FindUserByAccountAndConversation returns the unique user party with the
// given account in the given conversation. Multiple matches report not
// found rather than picking one.
func (r *PartyRegistry) FindUserByAccountAndConversation(accountID, conversationID string) (Party, bool) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var found Party
	matches := 0
	for _, u := range r.st.data.UserParties {
		if u.accountID() == accountID && u.Conversation.ID == conversationID {
			found = u
			matches++
		}
	}
	if matches != 1 {
		return Party{}, false
	}
	return found, true
}

// FindBotFor returns the bot party registered for the given channel and
// conversation.
func (r *PartyRegistry) FindBotFor(channelID, conversationID string) (Party, bool) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, b := range r.st.data.BotParties {
		if b.ChannelID == channelID && b.Conversation.ID == conversationID {
			return b, true
		}
	}
	return Party{}, false
}

// FindUser returns the registered user party with the exact identity of p.
func (r *PartyRegistry) FindUser(p Party) (Party, bool) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, u := range r.st.data.UserParties {
		if u.SameIdentity(p) {
			return u, true
		}
	}
	return Party{}, false
}

// FindMatchingUsers returns every registered user party sharing p's channel
// identity, across all conversations.
func (r *PartyRegistry) FindMatchingUsers(p Party) []Party {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []Party
	for _, u := range r.st.data.UserParties {
		if u.SameChannelIdentity(p) {
			out = append(out, u)
		}
	}
	return out
}

// UserParties returns a copy of the registered user parties.
func (r *PartyRegistry) UserParties() []Party {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]Party(nil), r.st.data.UserParties...)
}

// BotParties returns a copy of the registered bot parties.
func (r *PartyRegistry) BotParties() []Party {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]Party(nil), r.st.data.BotParties...)
}
