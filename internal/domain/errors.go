package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable machine-readable error category.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindMessageTooLong    ErrorKind = "message_too_long"
	KindPromptInjection   ErrorKind = "prompt_injection"
	KindInvalidFrequency  ErrorKind = "invalid_frequency"
	KindInvalidFilename   ErrorKind = "invalid_filename"
	KindPathTraversal     ErrorKind = "path_traversal"
	KindConversationFull  ErrorKind = "conversation_full"
	KindCredentialMissing ErrorKind = "credential_missing"
	KindStorage           ErrorKind = "storage"
	KindProvider          ErrorKind = "provider"
	KindSearch            ErrorKind = "search"
	KindConfig            ErrorKind = "config"
)

// Error carries a category, a human-readable message, and structured
// details so callers can log or display failures without re-deriving
// the offending values. Details never contain credentials.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed domain error. Details may be nil.
func NewError(kind ErrorKind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// WrapError builds a typed domain error around an underlying cause.
func WrapError(kind ErrorKind, message string, details map[string]any, err error) *Error {
	return &Error{Kind: kind, Message: message, Details: details, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a domain error
// of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// Kind returns the error kind, or empty string for non-domain errors.
func Kind(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Detail returns a single detail value from a domain error, if present.
func Detail(err error, key string) (any, bool) {
	var de *Error
	if !errors.As(err, &de) || de.Details == nil {
		return nil, false
	}
	v, ok := de.Details[key]
	return v, ok
}

// validationKinds is the family of failures produced by input gates.
var validationKinds = map[ErrorKind]bool{
	KindValidation:       true,
	KindMessageTooLong:   true,
	KindPromptInjection:  true,
	KindInvalidFrequency: true,
	KindInvalidFilename:  true,
	KindConversationFull: true,
}

// IsValidation reports whether err belongs to the validation family,
// including injection, length, frequency, filename, and capacity
// failures.
func IsValidation(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return validationKinds[de.Kind]
	}
	return false
}
