package routing

// DeliveryResult reports the outcome of one outbound delivery attempt.
type DeliveryResult struct {
	Success   bool
	MessageID string
	Err       error
}

// Transport delivers outbound messages to parties. The channel manager
// implements it; the coordinator never touches channel SDKs directly and
// never holds the routing lock across a Transport call.
type Transport interface {
	// Send delivers text to the party's conversation and reports the
	// outcome synchronously.
	Send(p Party, text string) DeliveryResult

	// CreateDirectConversation opens (or resolves) a 1:1 conversation
	// between the bot on p's channel and p's account, returning the
	// conversation outbound messages for it must target.
	CreateDirectConversation(p Party) (Conversation, error)
}
