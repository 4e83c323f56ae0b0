package forwarder

import "errors"

// Sentinel kinds for forwarder errors.
var (
	// ErrNoPayload is returned when neither PAYLOAD_LINE nor PAYLOAD is set.
	ErrNoPayload = errors.New("no payload provided")
	// ErrEmptyPayload is returned when the resolved line is blank.
	ErrEmptyPayload = errors.New("payload is empty")
	// ErrInvalidPayload is returned when the payload cannot be decoded or is not JSON.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNoWebhook is returned when the webhook URL is not configured.
	ErrNoWebhook = errors.New("webhook URL is not set")
	// ErrUnsupportedScheme is returned when the webhook URL is not http or https.
	ErrUnsupportedScheme = errors.New("unsupported webhook URL scheme")
	// ErrForward wraps every failed delivery.
	ErrForward = errors.New("forward failed")
)
