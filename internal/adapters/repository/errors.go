package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound       = errors.New("profile not found")
	ErrInvalidLimit   = errors.New("invalid limit")
	ErrInvalidRange   = errors.New("invalid discipline range")
	ErrInvalidSession = errors.New("session id must not be empty")
	ErrEmptyTable     = errors.New("table name must not be empty")
)
