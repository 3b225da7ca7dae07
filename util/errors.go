package util

import "errors"

// Sentinel errors for dockerfs.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Path resolution errors
	ErrNotFound = errors.New("no such entry")

	// Content errors
	ErrUnsupported = errors.New("operation not supported on inventory entry")

	// Inventory errors
	ErrUnavailable     = errors.New("inventory temporarily unavailable")
	ErrMalformedRecord = errors.New("malformed listing record")
	ErrMalformedDetail = errors.New("malformed inspect output")
	ErrBadTimestamp    = errors.New("unparseable timestamp")
)
