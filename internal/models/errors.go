package models

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError carries an upstream HTTP status through the pipeline so the
// orchestrator can tell quota signals apart from ordinary failures.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.Code)
}

func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

func IsPaymentRequired(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusPaymentRequired
}

// IsQuotaError reports whether err is one of the two upstream signals that are
// surfaced to users as a notice instead of a failure.
func IsQuotaError(err error) bool {
	return IsRateLimited(err) || IsPaymentRequired(err)
}
