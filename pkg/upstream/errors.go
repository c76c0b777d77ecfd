// Package upstream defines the error types shared by the external API clients.
package upstream

import (
	"fmt"
	"time"
)

// Error is a non-2xx response from an external API. It carries the status
// code and the response body so callers can log the failure verbatim.
type Error struct {
	Op     string
	Status int
	Body   string
}

func (e *Error) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.Status, body)
}

// TimeoutError is an explicit deadline exceeded on a bounded call.
// Callers treat it as recoverable ("no data" for billing lookups).
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.Elapsed)
}
