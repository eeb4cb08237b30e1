package domain

import (
	"errors"
	"fmt"
)

// ErrNoCachedImages is returned when an operation needs a cached capture
// but the image store is empty.
var ErrNoCachedImages = errors.New("no cached images")

// InvalidInputError reports malformed or missing caller input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

// AuthenticationError reports a failed token exchange with the imagery
// provider. Err is set when the endpoint was unreachable, Status and Detail
// when it answered with something other than a token.
type AuthenticationError struct {
	Status int
	Detail string
	Err    error
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("imagery provider token exchange: %v", e.Err)
	case e.Detail != "":
		return fmt.Sprintf("imagery provider token exchange: HTTP %d: %s", e.Status, e.Detail)
	default:
		return fmt.Sprintf("imagery provider token exchange: HTTP %d", e.Status)
	}
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ProviderRequestError carries the imagery provider's error response
// unmodified, so scene availability, bbox and quota problems stay
// diagnosable downstream.
type ProviderRequestError struct {
	Status int
	Body   string
	Err    error
}

func (e *ProviderRequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("imagery provider request: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("imagery provider returned HTTP %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("imagery provider returned HTTP %d", e.Status)
	}
}

func (e *ProviderRequestError) Unwrap() error { return e.Err }

// PersistenceError reports a local storage failure while caching an image.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InferenceUnavailableError reports that the wildfire classifier was
// unreachable, rejected the request, or returned output the service could
// not interpret.
type InferenceUnavailableError struct {
	Detail string
	Err    error
}

func (e *InferenceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wildfire classifier: %v", e.Err)
	}
	return fmt.Sprintf("wildfire classifier: %s", e.Detail)
}

func (e *InferenceUnavailableError) Unwrap() error { return e.Err }
