package server

import (
	"errors"
	"fmt"
)

type Error struct {
	orig error
	msg  string
	code error
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}

	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

func WrapErrorf(orig error, code error, format string, a ...interface{}) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

func (e *Error) Code() error {
	return e.code
}

// Message is the user facing part of the error, without the wrapped cause.
func (e *Error) Message() string {
	return e.msg
}

// CodeOf returns the code of the outermost *Error in err's chain, or nil.
func CodeOf(err error) error {
	var ierr *Error
	if !errors.As(err, &ierr) {
		return nil
	}
	return ierr.Code()
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code error) bool {
	for err != nil {
		var ierr *Error
		if !errors.As(err, &ierr) {
			return false
		}
		if ierr.code == code {
			return true
		}
		err = ierr.orig
	}
	return false
}

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("your requested Item is not found")
	// ErrConflict will throw if the current action already exists
	ErrConflict = errors.New("your Item already exist")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("given Param is not valid")

	// ErrNoPathFound labels a search that finished inside the hop bound without any solution.
	// It is never returned by the resolver itself, an empty itinerary list is.
	ErrNoPathFound = errors.New("no path found")
	// ErrGeometryComputationFailed will throw if the geometry engine cannot produce a closest point, fraction, length or intersection
	ErrGeometryComputationFailed = errors.New("geometry computation failed")
	// ErrCatalogUnavailable will throw if the route catalog cannot be read
	ErrCatalogUnavailable = errors.New("route catalog unavailable")
	// ErrTimeout will throw if the search or the geometry calls exceed the request budget
	ErrTimeout = errors.New("timeout")
)

var MessageInternalServerError string = "internal server error"
