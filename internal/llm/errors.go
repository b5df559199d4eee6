package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/genai"
)

// ErrorClass separates failures that are worth retrying from configuration
// problems that are not.
type ErrorClass int

const (
	// ErrorTransient covers rate limits, timeouts and server-side failures.
	// Callers retry these with backoff.
	ErrorTransient ErrorClass = iota
	// ErrorFatal covers auth and malformed-request failures. Callers abort
	// the run immediately.
	ErrorFatal
)

// Classify sorts a model-call error into a retry class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return ErrorTransient
		case apiErr.Code >= 500:
			return ErrorTransient
		case apiErr.Code == 400 || apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Code == 404:
			return ErrorFatal
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTransient
	}

	// String fallback for errors the SDK does not type.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "permission"):
		return ErrorFatal
	case strings.Contains(msg, "invalid argument") || strings.Contains(msg, "malformed"):
		return ErrorFatal
	}

	// Unknown network-level failures are treated as transient.
	return ErrorTransient
}
