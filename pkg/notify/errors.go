package notify

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("notify: empty connection URL")
	ErrFailedToParseURL   = errors.New("notify: failed to parse connection URL")
	ErrConnectionFailed   = errors.New("notify: failed to establish connection")
)
