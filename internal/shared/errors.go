package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrConfig        = fmt.Errorf("configuration error")
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrCallback      = fmt.Errorf("authorization callback failed")
	ErrTokenExchange = fmt.Errorf("token exchange failed")
	ErrNoSession     = fmt.Errorf("no valid Spotify session")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// Storage errors
	ErrStore = fmt.Errorf("auth store error")

	// API and transport errors
	ErrNetwork = fmt.Errorf("network error")

	// Input validation errors
	ErrValidation      = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// TokenExchangeError is returned when the token endpoint rejects a grant.
//
// Description carries the provider's error_description, falling back to its error code or raw body.
type TokenExchangeError struct {
	Grant       string // authorization_code or refresh_token
	Status      int
	Code        string
	Description string
	Cause       error
}

func (e *TokenExchangeError) Error() string {
	msg := ErrTokenExchange.Error()
	if e.Grant != "" {
		msg += " (" + e.Grant + ")"
	}
	switch {
	case e.Description != "":
		msg += ": " + e.Description
	case e.Code != "":
		msg += ": " + e.Code
	case e.Cause != nil:
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match [ErrTokenExchange] for every TokenExchangeError.
func (e *TokenExchangeError) Is(target error) bool {
	return target == ErrTokenExchange
}

// Message returns the text shown to the user for err.
//
// Errors from this package already read well, so the message is the error text itself;
// anything outside the taxonomy is reported as unexpected.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if Classified(err) {
		return err.Error()
	}
	return "unexpected error: " + err.Error()
}

// Classified reports whether err belongs to the known error taxonomy.
func Classified(err error) bool {
	for _, target := range []error{
		ErrConfig, ErrMissingConfig, ErrInvalidConfig,
		ErrCallback, ErrTokenExchange, ErrNoSession, ErrTimeout,
		ErrStore, ErrNetwork, ErrValidation, ErrMissingArgument,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
