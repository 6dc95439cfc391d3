package services

import "errors"

// Service errors
var (
	// ErrEmptyQuery is returned by callers that require a search term
	ErrEmptyQuery = errors.New("empty query")

	// ErrInstrumentNotFound marks a lookup that matched nothing
	ErrInstrumentNotFound = errors.New("instrument not found")
)
