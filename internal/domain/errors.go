package domain

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when no bearer token is available.
// No request is attempted in that case.
var ErrSessionExpired = errors.New("session expired, please log in again")

// ErrViewNotFound is returned for an unknown view id
var ErrViewNotFound = errors.New("view not found")

// ResourceLoadError means the map library or its stylesheet could not be
// loaded. Calling EnsureLoaded again retries.
type ResourceLoadError struct {
	Resource string
	Err      error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("failed to load map resource %s: %v", e.Resource, e.Err)
}

func (e *ResourceLoadError) Unwrap() error {
	return e.Err
}

// FetchError covers transport failures and non-success responses from the
// report API. Message is what the view shows.
type FetchError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text to surface for any error coming out of a
// fetch, falling back to fallback for unexpected errors.
func UserMessage(err error, fallback string) string {
	var fe *FetchError
	var rl *ResourceLoadError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionExpired):
		return ErrSessionExpired.Error()
	case errors.As(err, &fe) && fe.Message != "":
		return fe.Message
	case errors.As(err, &rl):
		return "The map could not be loaded. Retry to try again."
	default:
		return fallback
	}
}
