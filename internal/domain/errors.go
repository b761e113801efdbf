package domain

import "errors"

var (
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrUpstreamFetch marks a network, timeout or non-2xx failure of an upstream call.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrCacheUnavailable marks an unreachable cache store.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrPersistence marks a store write failure other than a uniqueness conflict.
	ErrPersistence = errors.New("persistence failed")
	ErrNotFound    = errors.New("not found")
)
