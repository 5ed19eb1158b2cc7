// Package apperr is the error taxonomy shared by the chat services, the REST
// handlers and the live gateway.
//
// Services return errors built with E (or wrap a store sentinel with Wrap);
// transports classify them with KindOf and never inspect driver errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Compare with errors.Is or KindOf.
var (
	NotFound    = errors.New("not found")
	Forbidden   = errors.New("forbidden")
	CrossTenant = errors.New("cross-tenant access")
	BadRequest  = errors.New("bad request")
	Conflict    = errors.New("conflict")
)

var kinds = []error{NotFound, Forbidden, CrossTenant, BadRequest, Conflict}

// Error carries a kind and a caller-safe message.
type Error struct {
	Kind error
	Msg  string
	Err  error // optional cause (e.g. a store sentinel)
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// E builds an error of kind with a caller-safe message.
func E(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Ef is E with formatting.
func Ef(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause as kind, keeping cause reachable through errors.Is.
func Wrap(kind error, cause error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the kind of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Is reports whether err is of kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// HTTPStatus maps err to a response status. Unclassified errors are 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Forbidden, CrossTenant:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show a client. Unclassified errors are
// reported generically; their detail belongs in the log.
func PublicMessage(err error) string {
	if KindOf(err) == nil {
		return "internal error"
	}
	return err.Error()
}
