package dedupe

import "errors"

var (
	// ErrBuildInProgress is returned when the session already has a build running.
	ErrBuildInProgress = errors.New("build already in progress")

	// ErrTooManyBuilds is returned when the guard is at capacity.
	ErrTooManyBuilds = errors.New("too many builds in flight")
)
