package credential

import "errors"

// Error kinds for the transient-external and permission error taxonomy
// (spec §7). Callers use errors.Is against these sentinels.
var (
	ErrIdentityUnavailable    = errors.New("credential: identity service unavailable")
	ErrIdentityUnauthorized   = errors.New("credential: identity service rejected the request")
	ErrIdentityTimeout        = errors.New("credential: identity acquisition timed out")
	ErrIdentityMalformedToken = errors.New("credential: identity service returned an invalid or already-expired token")
)
