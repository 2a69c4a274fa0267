package models

import "errors"

var (
	// ErrNotFound means the upstream has no such market or quote.
	ErrNotFound = errors.New("not found")

	// ErrMarketNotFound means discovery exhausted every candidate slug.
	ErrMarketNotFound = errors.New("no active market found")

	// ErrValidation means an upstream response was malformed.
	ErrValidation = errors.New("invalid upstream response")

	// ErrTransient means a network or server failure that may succeed on a later cycle.
	ErrTransient = errors.New("transient upstream failure")

	ErrRateLimited = errors.New("rate limited")
)
