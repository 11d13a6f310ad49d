package objmap

import (
	"errors"
	"reflect"
	"strings"

	"github.com/reoring/objmap/i18n"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	CodeSchema                = "schema"
	CodeEmptyType             = "empty_type"
	CodeMissingIdentity       = "missing_identity"
	CodeMissingFilter         = "missing_filter"
	CodePolymorphicResolution = "polymorphic_resolution"
	CodeUnrecognizedProperty  = "unrecognized_property"
	CodeDepthExceeded         = "depth_exceeded"
	CodeCodec                 = "codec"
	// Input shape
	CodeInvalidType  = "invalid_type"
	CodeRequired     = "required"
	CodeDuplicateKey = "duplicate_key"
	CodeParseError   = "parse_error"
)

// Error is the single error type returned by mapping calls.
type Error struct {
	Code    string       // One of the codes listed above.
	Path    string       // JSON Pointer of the offending value (for example: /items/2/price).
	Type    reflect.Type // Go type owning the failure, when known.
	Message string       // Optional detail.
	Cause   error        // Optional: underlying error.
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrSchema                = &Error{Code: CodeSchema}
	ErrEmptyType             = &Error{Code: CodeEmptyType}
	ErrMissingIdentity       = &Error{Code: CodeMissingIdentity}
	ErrMissingFilter         = &Error{Code: CodeMissingFilter}
	ErrPolymorphicResolution = &Error{Code: CodePolymorphicResolution}
	ErrUnrecognizedProperty  = &Error{Code: CodeUnrecognizedProperty}
	ErrDepthExceeded         = &Error{Code: CodeDepthExceeded}
	ErrCodec                 = &Error{Code: CodeCodec}
	ErrInvalidType           = &Error{Code: CodeInvalidType}
	ErrRequired              = &Error{Code: CodeRequired}
	ErrDuplicateKey          = &Error{Code: CodeDuplicateKey}
	ErrParse                 = &Error{Code: CodeParseError}
)

// Error renders "<message for code> at <path> (<type>): <detail>: <cause>".
func (e *Error) Error() string {
	b := &strings.Builder{}
	b.WriteString("objmap: ")
	b.WriteString(i18n.T(e.Code, nil))
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Type != nil {
		b.WriteString(" (")
		b.WriteString(e.Type.String())
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels that carry nothing but a code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Path == "" && t.Type == nil && t.Message == "" && t.Cause == nil
}

// AsError extracts *Error from an error using errors.As internally.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func newError(code, path string, t reflect.Type, msg string) *Error {
	return &Error{Code: code, Path: path, Type: t, Message: msg}
}

func wrapError(code, path string, t reflect.Type, cause error) *Error {
	return &Error{Code: code, Path: path, Type: t, Cause: cause}
}
