package overkiz

import (
	"errors"
	"fmt"
)

// Sentinel errors the API maps server rejections to. Match with errors.Is.
var (
	ErrBadCredentials        = errors.New("bad credentials")
	ErrNotSuchToken          = errors.New("no such token")
	ErrTooManyRequests       = errors.New("too many requests, try again later")
	ErrTooManyAttemptsBanned = errors.New("too many attempts with an invalid token, temporarily banned")
	ErrUnknownUser           = errors.New("unknown user")
	ErrMaintenance           = errors.New("server is down for maintenance")
	ErrNoRegisteredListener  = errors.New("no registered event listener")
	ErrNotAuthenticated      = errors.New("not authenticated")
)

// APIError is returned for a response the server rejected. It unwraps to one
// of the sentinel errors above when the rejection is a known one.
type APIError struct {
	Status  int
	Code    string
	Message string
	err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// IsNotFound reports whether err is an APIError with HTTP status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
