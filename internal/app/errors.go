package service

import (
	"errors"

	"github.com/okian/scoreboard/internal/domain/types"
)

// Sentinel kinds for service errors.
var (
	ErrInvalidPayload = types.ErrInvalidPayload
	ErrNotStarted     = errors.New("service not started")
)
