package source

import "errors"

// Sentinel kinds for source failures.
var (
	ErrAuthRequired     = errors.New("source requires authentication")
	ErrMalformedPayload = errors.New("malformed source payload")
	ErrUpstream         = errors.New("upstream source failure")
	ErrUnknownSource    = errors.New("unknown source")
	ErrNoFixture        = errors.New("fixture not found")
	ErrNilCapability    = errors.New("capability must not be nil")
	ErrEmptyEndpoint    = errors.New("endpoint must not be empty")
)
