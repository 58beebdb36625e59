package screenshot

import "errors"

var (
	// ErrNoTarget is returned by Normalize for an empty or whitespace-only URL.
	// Resolve treats it as the idle state rather than a failure.
	ErrNoTarget = errors.New("screenshot: no target url")

	// ErrSuperseded is returned when a resolution attempt is abandoned because
	// its context was cancelled by a newer request or a teardown.
	ErrSuperseded = errors.New("screenshot: resolution superseded")

	ErrSessionNotFound = errors.New("screenshot: session not found")
	ErrSessionClosed   = errors.New("screenshot: session closed")
	ErrTooManySessions = errors.New("screenshot: session limit reached")
	ErrUnknownProvider = errors.New("screenshot: unknown provider")
	ErrProviderConfig  = errors.New("screenshot: provider is missing required settings")
)
