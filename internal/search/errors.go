package search

import "errors"

var (
	// ErrUnsupportedProvider is returned for unknown provider types.
	ErrUnsupportedProvider = errors.New("unsupported search provider")

	// ErrBlocked is returned when the provider refuses the request with a
	// CAPTCHA or similar block page.
	ErrBlocked = errors.New("search blocked by provider")
)
