package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need the worker pool.
	ErrNotStarted = errors.New("service not started")

	// ErrNoFetchers is returned by Start when no source fetchers are configured.
	ErrNoFetchers = errors.New("no source fetchers configured")

	// ErrInvalidRequest is returned for a build request that fails validation.
	ErrInvalidRequest = errors.New("invalid build request")

	// ErrBuildCancelled is returned when the caller's context ends while sources
	// are being collected. Nothing is recorded or stored for such a run.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrRankingUnsupported is returned when the store cannot answer ranking queries.
	ErrRankingUnsupported = errors.New("store does not support ranking queries")
)
