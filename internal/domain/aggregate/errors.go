package aggregate

import "errors"

// Sentinel kinds for payloads the aggregator refuses to sum.
var (
	ErrUnexpectedPayload = errors.New("unexpected payload type")
	ErrMissingPayload    = errors.New("missing payload")
	ErrInvalidPayload    = errors.New("payload failed structural checks")
)
