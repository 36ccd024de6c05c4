package generate

import "errors"

// The gateway's failure taxonomy. Callers branch on these with errors.Is to
// choose the message and status surfaced to the user; no retries happen here.
var (
	// ErrNoCredential means no service credential is configured. Raised
	// before any network call is attempted.
	ErrNoCredential = errors.New("no generation credential configured")

	// ErrCredentialRejected means the service refused the configured
	// credential.
	ErrCredentialRejected = errors.New("generation credential rejected by the service")

	// ErrUnparseable means the service responded, but the text was not the
	// JSON shape the request's schema demanded.
	ErrUnparseable = errors.New("generation response did not match the expected shape")
)
