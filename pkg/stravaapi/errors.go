package stravaapi

import "fmt"

// AuthError means the token refresh exchange was rejected by the provider.
// The upstream status and response body are carried for diagnosability.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token refresh failed: status %d: %s", e.StatusCode, e.Body)
}

// FetchError means a data request failed after a valid token was ensured.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, e.Body)
}
