package appgrowth

import "github.com/pkg/errors"

var (
	// ErrAuthTokenMissing means the login page carried no csrf_token input.
	ErrAuthTokenMissing = errors.New("csrf token not found on login page")
	// ErrAuthRejected means the login POST did not redirect.
	ErrAuthRejected = errors.New("login rejected")
	// ErrTransport covers network failures, timeouts and unreadable bodies.
	ErrTransport = errors.New("transport error")

	ErrSegmentTokenMissing = errors.New("csrf token not found on segment form")
	ErrSegmentRejected     = errors.New("segment rejected")
	ErrInvalidSegment      = errors.New("invalid segment request")
)
