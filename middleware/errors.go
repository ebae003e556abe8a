package middleware

import "errors"

var (
	// ErrInputTooLong indicates the turn input exceeded the configured limit
	ErrInputTooLong = errors.New("input too long")

	// ErrInvalidEncoding indicates the turn input was not valid UTF-8
	ErrInvalidEncoding = errors.New("input is not valid UTF-8")

	// ErrInvalidContext indicates middleware context is invalid
	ErrInvalidContext = errors.New("invalid middleware context")
)
