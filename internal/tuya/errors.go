package tuya

import (
	"errors"
	"fmt"
)

// Sentinel errors for Tuya OpenAPI operations.
var (
	// ErrMissingCredentials is returned when the access ID or secret is empty.
	ErrMissingCredentials = errors.New("tuya: missing API credentials")

	// ErrUnknownRegion is returned for a region code with no known endpoint.
	ErrUnknownRegion = errors.New("tuya: unknown region")

	// ErrRequestFailed wraps transport failures and unreadable responses.
	ErrRequestFailed = errors.New("tuya: request failed")

	// ErrTokenFailed is returned when no access token could be obtained.
	ErrTokenFailed = errors.New("tuya: token request failed")
)

// Token error codes; the cached token is dropped when one is seen.
const (
	codeTokenInvalid = 1010
	codeTokenExpired = 1011
)

// APIError is an error envelope returned by the OpenAPI ({"success":false}).
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tuya: api error %d: %s", e.Code, e.Msg)
}

// IsTokenError reports whether err is an API error about the access token.
func IsTokenError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeTokenInvalid || apiErr.Code == codeTokenExpired
}
