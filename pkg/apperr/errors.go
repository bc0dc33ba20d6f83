// Package apperr defines the closed set of error kinds shared by every stage of
// the translation pipeline. Transports map a Kind to a status code in one place.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags an Error with the pipeline stage that produced it.
type Kind string

const (
	// KindInvalidRequest marks caller input that cannot be processed.
	KindInvalidRequest Kind = "invalid_request"
	// KindConfiguration marks a missing or invalid setting such as an API key.
	KindConfiguration Kind = "configuration"
	// KindLanguageDetection marks a failure while detecting the source language.
	KindLanguageDetection Kind = "language_detection"
	// KindTranslation marks a failure in the mandatory translation stage.
	KindTranslation Kind = "translation"
	// KindCompletion marks a failure reported by the completion backend.
	KindCompletion Kind = "completion"
)

// Error is a tagged error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind and a message describing the failing step.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or an empty Kind when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether any *Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
