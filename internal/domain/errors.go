package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrTransport      = errors.New("provisioning backend unavailable")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrLoadInProgress = errors.New("load already in progress")
	ErrDiscarded      = errors.New("circuit was discarded")
	ErrEndpointIndex  = errors.New("endpoint index out of range")
)

// RejectedError is a non-success answer from the provisioning backend, as
// opposed to a transport failure. Message is meant for the user.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "circuit was rejected by the provisioning backend"
	}
	return fmt.Sprintf("circuit was rejected: %s", e.Message)
}

// IsRejected reports whether err is a backend rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
