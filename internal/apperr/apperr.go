// Package apperr is the closed error taxonomy shared by the repositories,
// the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. The set is closed; callers switch on it.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConnection: store unreachable or credentials rejected by the driver.
	KindConnection
	// KindQuery: constraint violation or malformed statement.
	KindQuery
	// KindValidation: missing field, malformed email, bad phone, empty cart.
	KindValidation
	// KindAuth: bad credentials, no session, or a role that may not act.
	KindAuth
	// KindNotFound: lookup by id or email yields nothing.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindQuery:
		return "query error"
	case KindValidation:
		return "validation error"
	case KindAuth:
		return "auth error"
	case KindNotFound:
		return "not found"
	default:
		return "unknown error"
	}
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Field + ": " + f.Message
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the bare sentinel for e's kind, so that
// errors.Is(err, apperr.ErrNotFound) matches every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && len(t.Fields) == 0 && t.Kind == e.Kind
}

// Kind sentinels, for errors.Is.
var (
	ErrConnection = &Error{Kind: KindConnection}
	ErrQuery      = &Error{Kind: KindQuery}
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNotFound   = &Error{Kind: KindNotFound}
)

// Causes attached by FromSQL to constraint violations.
var (
	ErrDuplicate  = errors.New("duplicate value violates unique constraint")
	ErrForeignKey = errors.New("foreign key violation")
	ErrCheck      = errors.New("check constraint violation")
	ErrOutOfRange = errors.New("value out of range for column")
)

func Connection(msg string, err error) error {
	return &Error{Kind: KindConnection, Message: msg, Err: err}
}

func Query(msg string, err error) error {
	return &Error{Kind: KindQuery, Message: msg, Err: err}
}

func Validation(msg string, fields ...FieldError) error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func Auth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FieldsOf returns the validation fields carried by err, if any.
func FieldsOf(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
