package notion

import (
	"errors"
	"fmt"
)

// Error codes returned by the Notion API that the sync pipeline cares about.
const (
	CodeConflict       = "conflict_error"
	CodeObjectNotFound = "object_not_found"
	CodeUnauthorized   = "unauthorized"
	CodeRateLimited    = "rate_limited"
)

// APIError is a structured error response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsConflict reports whether err is the benign idempotent-conflict error kind.
// Conflicts are expected when concurrent saves race and are not worth logging.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeConflict
}

// IsNotFound reports whether err is an object_not_found API error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeObjectNotFound
}
