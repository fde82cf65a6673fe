package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrSearchAPIFailure is returned when the search-results provider request fails
	ErrSearchAPIFailure = errors.New("search API request failed")

	// ErrInvalidPayload is returned when the provider response is not a JSON object
	ErrInvalidPayload = errors.New("invalid search payload")

	// ErrNormalizationFailed is returned when the reconciliation service fails or
	// answers with something that is not a JSON array of offers
	ErrNormalizationFailed = errors.New("offer normalization failed")

	// ErrNormalizerUnavailable is returned when normalization is requested but no
	// reconciliation service is configured
	ErrNormalizerUnavailable = errors.New("offer normalizer not configured")
)
