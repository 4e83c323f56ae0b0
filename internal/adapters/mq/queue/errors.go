package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("relay queue full")
	ErrClosed = errors.New("relay queue closed")
)
