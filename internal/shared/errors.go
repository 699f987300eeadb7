package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Upstream errors (metadata catalog, search proxy, network)
	ErrAuthFailed          = fmt.Errorf("authentication failed")
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrTrackNotFound       = fmt.Errorf("track not found")

	// Resolution and extraction errors
	ErrNoResults        = fmt.Errorf("no results")
	ErrExtractionFailed = fmt.Errorf("extraction failed")
	ErrQueryTooShort    = fmt.Errorf("query too short")

	// Cache errors
	ErrCacheCorrupt = fmt.Errorf("cache snapshot corrupt")
	ErrCacheMiss    = fmt.Errorf("cache miss")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
