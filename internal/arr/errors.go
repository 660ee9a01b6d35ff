package arr

import (
	"fmt"
	"net/http"

	"micromanagerr/internal/services"
)

// UnavailableError reports an instance that could not be reached or refused
// the API key. It matches services.ErrRemoteStateUnavailable.
type UnavailableError struct {
	App    Kind
	Op     string
	Status int
	Err    error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: unreachable: %v", e.App, e.Op, e.Err)
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return fmt.Sprintf("%s %s: authentication failed (%d)", e.App, e.Op, e.Status)
	default:
		return fmt.Sprintf("%s %s: server returned %d", e.App, e.Op, e.Status)
	}
}

func (e *UnavailableError) Unwrap() []error {
	if e.Err != nil {
		return []error{services.ErrRemoteStateUnavailable, e.Err}
	}
	return []error{services.ErrRemoteStateUnavailable}
}

// StatusError reports any other non-success response. A 404 matches
// services.ErrNotFound.
type StatusError struct {
	App    Kind
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s returned %d: %s", e.App, e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s returned %d", e.App, e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return services.ErrNotFound
	}
	return nil
}
