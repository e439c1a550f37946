package operator

import (
	"context"
	"errors"
)

var (
	ErrList                 = errors.New("operator: list failed")
	ErrNotFound             = errors.New("operator: resource not found")
	ErrAmbiguousOwnership   = errors.New("operator: ambiguous ownership")
	ErrPatch                = errors.New("operator: patch failed")
	ErrUpstreamRegistration = errors.New("operator: upstream registration failed")
	ErrUpstreamQuery        = errors.New("operator: upstream query failed")
	ErrConfigNotAvailable   = errors.New("operator: game credentials not available")
)

// ErrorKind labels err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAmbiguousOwnership):
		return "ambiguous_ownership"
	case errors.Is(err, ErrConfigNotAvailable):
		return "config_not_available"
	case errors.Is(err, ErrUpstreamRegistration):
		return "upstream_registration"
	case errors.Is(err, ErrUpstreamQuery):
		return "upstream_query"
	case errors.Is(err, ErrPatch):
		return "patch_failure"
	case errors.Is(err, ErrList):
		return "list_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "unknown"
}
