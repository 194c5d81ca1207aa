package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between retrying,
// surfacing a client error, or failing a task.
type Kind string

const (
	KindUnsupportedFormat    Kind = "UNSUPPORTED_FORMAT"
	KindParse                Kind = "PARSE_ERROR"
	KindOcrEngineUnavailable Kind = "OCR_ENGINE_UNAVAILABLE"
	KindOcrParse             Kind = "OCR_PARSE_ERROR"
	KindNoOcrEngine          Kind = "NO_OCR_ENGINE"
	KindEmbeddingModel       Kind = "EMBEDDING_MODEL_ERROR"
	KindVectorStore          Kind = "VECTOR_STORE_ERROR"
	KindTaskNotFound         Kind = "TASK_NOT_FOUND"
	KindRetryExhausted       Kind = "RETRY_EXHAUSTED"
	KindTimeout              Kind = "TIMEOUT"
	KindAccessDenied         Kind = "ACCESS_DENIED"
	KindTaskConflict         Kind = "TASK_CONFLICT"
	KindValidation           Kind = "VALIDATION_ERROR"
)

// Sentinel errors, one per kind. Match with errors.Is.
var (
	ErrUnsupportedFormat    = &Error{Kind: KindUnsupportedFormat}
	ErrParse                = &Error{Kind: KindParse}
	ErrOcrEngineUnavailable = &Error{Kind: KindOcrEngineUnavailable, Transient: true}
	ErrOcrParse             = &Error{Kind: KindOcrParse}
	ErrNoOcrEngine          = &Error{Kind: KindNoOcrEngine}
	ErrEmbeddingModel       = &Error{Kind: KindEmbeddingModel}
	ErrVectorStore          = &Error{Kind: KindVectorStore}
	ErrTaskNotFound         = &Error{Kind: KindTaskNotFound}
	ErrRetryExhausted       = &Error{Kind: KindRetryExhausted}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrAccessDenied         = &Error{Kind: KindAccessDenied}
	ErrTaskConflict         = &Error{Kind: KindTaskConflict}
	ErrValidation           = &Error{Kind: KindValidation}
)

// Error is the tagged error used across the pipeline.
// Transient marks failures worth retrying (network, unavailable engine).
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so wrapped instances compare equal
// to the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a permanent error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transient wraps err as a retryable failure of the given kind.
func Transient(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Transient: true}
}

// Newf is New with fmt formatting for the message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in the chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether any *Error in the chain is transient.
func IsRetryable(err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Transient {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
