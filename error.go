package handbook

import (
	"errors"
	"fmt"
	"time"
)

// Application error codes.
const (
	EINVALID     = "invalid"
	ENOTFOUND    = "not_found"
	EMALFORMED   = "malformed"
	EUNAVAILABLE = "unavailable"
	ERATELIMIT   = "rate_limited"
	EUPSTREAM    = "upstream"
	EINTERNAL    = "internal"
)

// DefaultRetryAfter is reported for rate limit errors that carry no delay.
const DefaultRetryAfter = 60 * time.Second

// Error represents an application-specific error. Messages are safe to show
// to the end user; they never contain file system paths.
type Error struct {
	Code    string
	Message string

	// RetryAfter is set for ERATELIMIT errors.
	RetryAfter time.Duration
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	return fmt.Sprintf("handbook error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// RateLimitf returns an ERATELIMIT error that can be retried after d.
func RateLimitf(d time.Duration, format string, args ...any) *Error {
	e := Errorf(ERATELIMIT, format, args...)
	e.RetryAfter = d
	return e
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// RetryAfter returns how long the caller should wait before retrying err.
// It returns zero for errors that are not rate limits and DefaultRetryAfter
// for rate limits that did not carry a delay.
func RetryAfter(err error) time.Duration {
	var e *Error
	if !errors.As(err, &e) || e.Code != ERATELIMIT {
		return 0
	}
	if e.RetryAfter <= 0 {
		return DefaultRetryAfter
	}
	return e.RetryAfter
}
