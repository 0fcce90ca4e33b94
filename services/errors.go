package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized covers both an explicit gatekeeper rejection and a
	// transport-level failure. An unreachable endpoint and a rejected secret
	// are indistinguishable symptoms of a deployment that is not permitted to
	// call the service, so they are intentionally one category.
	ErrUnauthorized = errors.New("gatekeeper rejected the request")

	// ErrServiceUnavailable means a remote endpoint is still a placeholder.
	ErrServiceUnavailable = errors.New("remote service is not configured")

	ErrInvalidModelOutput = errors.New("model returned invalid structured output")
	ErrEmptyResponse      = errors.New("model returned no candidates")
	ErrNoImageReturned    = errors.New("model returned no image")
	ErrMissingResultURI   = errors.New("video URI not found in operation response")
)

// UpstreamError carries a remote-reported failure message verbatim.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// GenerationError is a terminal video-operation failure that is not a content
// policy rejection.
type GenerationError struct {
	Message string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("video generation failed: %s", e.Message)
}

// SafetyViolationError is a content-policy rejection, detected by substring
// match on the remote error text.
type SafetyViolationError struct {
	Message string
}

func (e *SafetyViolationError) Error() string {
	return fmt.Sprintf("safety violation: %s", e.Message)
}

// DownloadError is a non-success HTTP status while fetching a finished video.
type DownloadError struct {
	Status int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download video file, status: %d", e.Status)
}

func IsSafetyMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "safety") ||
		strings.Contains(lower, "policy") ||
		strings.Contains(lower, "blocked")
}
