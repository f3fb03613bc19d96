// Package v1 holds the error taxonomy shared by the questd store, planner
// and HTTP layers. Errors are wrapped with fmt.Errorf("%w: ...") where they
// are detected and matched with errors.Is where they are mapped.
package v1

import "errors"

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrServiceMisconfigured = errors.New("service misconfigured")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
)
