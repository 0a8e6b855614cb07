package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can map them to HTTP
// statuses and user-facing remediation without sniffing error strings.
type ErrorKind string

const (
	ErrInvalidArgument        ErrorKind = "invalid_argument"
	ErrNotFound               ErrorKind = "not_found"
	ErrUnsupportedFormat      ErrorKind = "unsupported_format"
	ErrDependencyMissing      ErrorKind = "dependency_missing"
	ErrEmptyDocument          ErrorKind = "empty_document"
	ErrEmptyEmbedding         ErrorKind = "empty_embedding"
	ErrEmptyDimension         ErrorKind = "empty_dimension"
	ErrEmbeddingCountMismatch ErrorKind = "embedding_count_mismatch"
	ErrDimensionMismatch      ErrorKind = "dimension_mismatch"
	ErrMissingVector          ErrorKind = "missing_vector"
	ErrVectorStoreUnavailable ErrorKind = "vector_store_unavailable"
	ErrVectorStoreRequest     ErrorKind = "vector_store_request_failed"
	ErrModelUnavailable       ErrorKind = "model_unavailable"
	ErrNoSources              ErrorKind = "no_sources"
	ErrInvalidConversation    ErrorKind = "invalid_conversation"
)

// PipelineError carries a kind plus an actionable message. Wrapped causes
// are preserved for logs but never shown to API clients.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func NewError(kind ErrorKind, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, cause error, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of err if it is (or wraps) a PipelineError.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
