package flows

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure Execute can return.
type ErrorKind string

const (
	KindUnknownFlow           ErrorKind = "UnknownFlow"
	KindInvalidInput          ErrorKind = "InvalidInput"
	KindInvalidOutput         ErrorKind = "InvalidOutput"
	KindEmptyGenerationResult ErrorKind = "EmptyGenerationResult"
	KindModelUnavailable      ErrorKind = "ModelUnavailable"
)

// Retryable reports whether the user may usefully retry the same request.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindModelUnavailable, KindInvalidOutput, KindEmptyGenerationResult:
		return true
	default:
		return false
	}
}

// Transient reports whether a caller may retry automatically with backoff.
func (k ErrorKind) Transient() bool {
	return k == KindModelUnavailable
}

// Error is the structured failure returned by Execute.
type Error struct {
	Kind   ErrorKind
	Flow   string
	Detail string
	Fields []FieldError // populated for InvalidInput and InvalidOutput
	Err    error
}

var (
	ErrUnknownFlow           = &Error{Kind: KindUnknownFlow}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrInvalidOutput         = &Error{Kind: KindInvalidOutput}
	ErrEmptyGenerationResult = &Error{Kind: KindEmptyGenerationResult}
	ErrModelUnavailable      = &Error{Kind: KindModelUnavailable}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Flow != "" {
		fmt.Fprintf(&b, "flow %s: ", e.Flow)
	}
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	for _, f := range e.Fields {
		b.WriteString("; ")
		b.WriteString(f.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrInvalidInput)
// works regardless of flow or detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind from err, or "" if err is not a flow error.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// FieldsOf returns the field errors carried by err, if any.
func FieldsOf(err error) []FieldError {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}

func invalidInput(flow string, err error) *Error {
	e := &Error{Kind: KindInvalidInput, Flow: flow, Err: err}
	var ve *ValidationError
	if errors.As(err, &ve) {
		e.Fields = ve.Fields
	} else {
		e.Detail = err.Error()
	}
	return e
}
