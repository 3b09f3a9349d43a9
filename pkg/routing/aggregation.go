package routing

// AggregationAuthority tracks the conversations designated to receive
// incoming conversation requests and answers authorization questions
// about them.
type AggregationAuthority struct {
	st       *state
	required bool
}

func newAggregationAuthority(st *state, required bool) *AggregationAuthority {
	return &AggregationAuthority{st: st, required: required}
}

// RegisterAggregationChannel designates the conversation behind p as an
// aggregation endpoint. Account information on p is ignored; the channel
// itself becomes the recipient.
func (a *AggregationAuthority) RegisterAggregationChannel(p Party) error {
	if p.Conversation.ID == "" {
		return ErrInvalidArgument
	}
	channel := Party{
		ServiceEndpoint: p.ServiceEndpoint,
		ChannelID:       p.ChannelID,
		Conversation:    p.Conversation,
	}
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	if containsParty(a.st.data.AggregationParties, channel) {
		return ErrAlreadyExists
	}
	a.st.data.AggregationParties = append(a.st.data.AggregationParties, channel)
	return nil
}

// DeregisterAggregationChannel removes the conversation from the
// aggregation set.
func (a *AggregationAuthority) DeregisterAggregationChannel(p Party) error {
	channel := Party{
		ServiceEndpoint: p.ServiceEndpoint,
		ChannelID:       p.ChannelID,
		Conversation:    p.Conversation,
	}
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	var removed bool
	a.st.data.AggregationParties, removed = removeParty(a.st.data.AggregationParties, channel)
	if !removed {
		return ErrNotFound
	}
	return nil
}

// IsAggregationChannel reports whether p's conversation is a registered
// aggregation endpoint. The sender's account does not matter, only where
// the message was written.
func (a *AggregationAuthority) IsAggregationChannel(p Party) bool {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	for _, ch := range a.st.data.AggregationParties {
		if ch.ChannelID == p.ChannelID &&
			ch.ServiceEndpoint == p.ServiceEndpoint &&
			ch.Conversation.ID == p.Conversation.ID {
			return true
		}
	}
	return false
}

// AggregationRequired reports whether requests must be broadcast to an
// aggregation channel before anyone can wait in the queue.
func (a *AggregationAuthority) AggregationRequired() bool {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	return a.required
}

// SetAggregationRequired flips the aggregation requirement at runtime.
func (a *AggregationAuthority) SetAggregationRequired(required bool) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	a.required = required
}

// RequirementSatisfied reports whether new requests may be created: either
// aggregation is not required, or at least one aggregation channel exists.
func (a *AggregationAuthority) RequirementSatisfied() bool {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	if !a.required {
		return true
	}
	return len(a.st.data.AggregationParties) > 0
}

// AggregationParties returns a copy of the registered aggregation
// endpoints.
func (a *AggregationAuthority) AggregationParties() []Party {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	return append([]Party(nil), a.st.data.AggregationParties...)
}
