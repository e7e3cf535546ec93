package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the machine-readable class of an error returned to callers.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindStore      Kind = "store"
	KindExternal   Kind = "external"
)

// Error carries a Kind and a human-readable detail. Fields is only set for
// validation failures and lists the offending payload fields.
type Error struct {
	Kind   Kind
	Detail string
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports missing or malformed fields.
func Validation(fields ...string) *Error {
	return &Error{
		Kind:   KindValidation,
		Detail: "missing or invalid fields: " + strings.Join(fields, ", "),
		Fields: fields,
	}
}

// Validationf reports a validation failure not tied to specific fields.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

// Store wraps a persistence failure.
func Store(detail string, err error) *Error {
	return &Error{Kind: KindStore, Detail: detail, Err: err}
}

// External wraps a failure of an outside service such as the weather source.
func External(detail string, err error) *Error {
	return &Error{Kind: KindExternal, Detail: detail, Err: err}
}

// KindOf classifies err. Unclassified errors count as store failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps an error kind to the response code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
