package domain

import (
	"errors"
	"fmt"
)

// NotFoundError reports a schedule or instalment missing from a fetched
// payment plan. It must propagate: silently skipping the mutation would leave
// the plan inconsistent with the quoted premium.
type NotFoundError struct {
	Kind string // "schedule" or "instalment"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found in payment plan", e.Kind, e.ID)
}

// UpstreamError reports a non-2xx response from a required dependency.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
