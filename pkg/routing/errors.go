package routing

import "errors"

var (
	// ErrNotFound is returned when a party, request or engagement does
	// not exist in the routing data.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a party or request is added twice.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyEngaged is returned when either side of a new engagement
	// is still part of an existing one.
	ErrAlreadyEngaged = errors.New("already engaged")

	// ErrInvalidArgument is returned for malformed parties or arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAmbiguous is returned when a name matches more than one pending
	// request.
	ErrAmbiguous = errors.New("ambiguous match")

	// ErrDeliveryFailed marks transport-level failures: unknown or
	// stopped channels, unreachable recipients.
	ErrDeliveryFailed = errors.New("delivery failed")
)
