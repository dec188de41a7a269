package gateway

import (
	"errors"
	"net/http"
)

// APIError is a failure the backend reported with an HTTP status. Anything
// else returned from Do is a transport-level error.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return e.Detail
}

// IsUnauthorized reports whether err is a credential rejection, the signal
// for the session store to tear the session down.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
