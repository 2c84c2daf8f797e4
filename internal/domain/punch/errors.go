package punch

import "errors"

var (
	// ErrMalformedPayload marks a device payload that could not be parsed.
	// Malformed payloads are dropped and counted, never returned to a device.
	ErrMalformedPayload = errors.New("malformed device payload")

	ErrEventNotFound = errors.New("raw punch event not found")
)
