package domain

import "fmt"

// Error types for consistent error handling across the daemon.

// APIError indicates the bank API answered with a non-2xx status.
// Body carries the response body verbatim.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request failed with status %d: %s", e.Status, e.Body)
}

// AuthError indicates the OAuth2 token endpoint rejected the grant.
// Body carries the response body verbatim.
type AuthError struct {
	Body string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Body)
}

// DecodeError indicates a response body could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an external service call
// (search provider, LLM provider).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
