package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies the failures the pipelines know how to react to
type Kind string

const (
	KindConfig       Kind = "config"
	KindHTTP         Kind = "http"
	KindDuplicateKey Kind = "duplicate_key"
	KindStorage      Kind = "storage"
	KindNetwork      Kind = "network"
	KindParsing      Kind = "parsing"
)

// Error is the error type shared by the API client, the stores and the pipelines
type Error struct {
	Kind    Kind
	Message string
	// Code is the HTTP status code for KindHTTP and the number of
	// rejected records for KindDuplicateKey.
	Code   int
	Status string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
	case KindDuplicateKey:
		return fmt.Sprintf("duplicate key (%d records): %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config reports a missing or invalid setting
func Config(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// HTTP reports a non-2xx upstream response
func HTTP(code int, status string) *Error {
	return &Error{Kind: KindHTTP, Code: code, Status: status, Message: status}
}

// DuplicateKey reports that count records of an insert were rejected
// because their key already exists
func DuplicateKey(count int, err error) *Error {
	return &Error{Kind: KindDuplicateKey, Code: count, Message: "records already exist", Err: err}
}

// Storage wraps a store failure
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// Network wraps a transport failure
func Network(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// Parsing wraps a decode failure
func Parsing(message string, err error) *Error {
	return &Error{Kind: KindParsing, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As is errors.As for callers that import this package under its own name
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
