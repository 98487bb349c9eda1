// Package apierror defines the error values surfaced by the WHOOP access layer.
//
// Every failure the core reports is an *Error carrying a Kind. Callers inspect
// it with errors.As and switch on Kind instead of matching concrete types:
//
//	var apiErr *apierror.Error
//	if errors.As(err, &apiErr) {
//		switch apiErr.Kind {
//		case apierror.KindConfiguration:
//			// prompt for login
//		case apierror.KindAPI:
//			// apiErr.Status, apiErr.Path
//		}
//	}
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	// KindConfiguration means required credential fields are absent.
	KindConfiguration Kind = "configuration"

	// KindTokenExchange means the OAuth token endpoint rejected the request
	// or answered with something that is not a usable token.
	KindTokenExchange Kind = "token_exchange"

	// KindAPI means a data endpoint answered with a non-2xx status.
	KindAPI Kind = "api"

	// KindShape means a response body does not match the expected contract.
	KindShape Kind = "shape"
)

// Error is the single error type returned by the access layer.
type Error struct {
	Kind   Kind
	Status int    // HTTP status, 0 when not applicable
	Path   string // request path or token endpoint
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindAPI:
		msg = fmt.Sprintf("whoop api error (%d) for %s: %s", e.Status, e.Path, e.Detail)
	case KindTokenExchange:
		if e.Status > 0 {
			msg = fmt.Sprintf("token request failed (%d): %s", e.Status, e.Detail)
		} else {
			msg = fmt.Sprintf("token request failed: %s", e.Detail)
		}
	case KindShape:
		msg = fmt.Sprintf("unexpected whoop response shape for %s: %s", e.Path, e.Detail)
	default:
		msg = e.Detail
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration returns a KindConfiguration error.
func Configuration(detail string) *Error {
	return &Error{Kind: KindConfiguration, Detail: detail}
}

// TokenExchange returns a KindTokenExchange error.
func TokenExchange(status int, endpoint, detail string, err error) *Error {
	return &Error{Kind: KindTokenExchange, Status: status, Path: endpoint, Detail: detail, Err: err}
}

// API returns a KindAPI error.
func API(status int, path, detail string) *Error {
	return &Error{Kind: KindAPI, Status: status, Path: path, Detail: detail}
}

// Shape returns a KindShape error.
func Shape(path, detail string) *Error {
	return &Error{Kind: KindShape, Path: path, Detail: detail}
}

// KindOf reports the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsStatus reports whether err is a KindAPI error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAPI && e.Status == status
}
