package narrative

import "errors"

var (
	// ErrNilModels is returned when the Gemini generator has no model client.
	ErrNilModels = errors.New("narrative: nil models client")

	// ErrEmptyResponse is returned when the model answers without usable text.
	ErrEmptyResponse = errors.New("narrative: empty model response")
)
