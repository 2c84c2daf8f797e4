package identity

import "errors"

var (
	ErrIdentityNotFound = errors.New("employee identity not found")

	// ErrIdentityAmbiguous reports multiple active identities matching one
	// token. Resolution proceeds with the first deterministic match; the
	// error is logged for operator review, never returned to a device.
	ErrIdentityAmbiguous = errors.New("multiple active identities match token")
)
