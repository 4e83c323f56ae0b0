package types

import "errors"

// ErrInvalidPayload marks a submission whose line is missing or not a JSON object.
var ErrInvalidPayload = errors.New("invalid payload")
