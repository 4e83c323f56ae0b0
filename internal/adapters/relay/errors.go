package relay

import "errors"

// Sentinel kinds for relay errors.
var (
	// ErrRelay wraps every dispatch failure.
	ErrRelay = errors.New("relay dispatch failed")
	// ErrUnsupportedScheme is returned when the target URL is not http or https.
	ErrUnsupportedScheme = errors.New("unsupported dispatch URL scheme")
)
