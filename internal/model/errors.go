package model

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failure the worker loop must act on. The taxonomy
// mirrors spec §7; the worker switches on Kind to decide retry vs archive.
type ErrorKind string

const (
	ErrKindTransformerInvalid ErrorKind = "transformer_invalid"
	ErrKindProviderHTTP       ErrorKind = "provider_http"
	ErrKindProviderProtocol   ErrorKind = "provider_protocol"
	ErrKindSchemaMismatch     ErrorKind = "schema_mismatch"
	ErrKindDatabaseTransient  ErrorKind = "database_transient"
	ErrKindTokenization       ErrorKind = "tokenization_error"
	ErrKindConfig             ErrorKind = "config_error"
)

// Retryable reports whether a message failing with this kind should be left
// for visibility-timeout expiry (true) or archived immediately (false).
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindProviderHTTP, ErrKindDatabaseTransient:
		return true
	default:
		return false
	}
}

// VectorizeError wraps an underlying error with the op that produced it and
// the kind the worker loop needs to make its retry/archive decision.
type VectorizeError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *VectorizeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *VectorizeError) Unwrap() error { return e.Err }

// NewError constructs a VectorizeError, wrapping err with errors.WithStack so
// it carries a stack trace from this call site (see internal/logger for the
// marshaling side).
func NewError(kind ErrorKind, op string, err error) *VectorizeError {
	return &VectorizeError{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// KindOf extracts the ErrorKind from err, walking the unwrap chain. Errors
// not produced by NewError report the empty kind, which is not Retryable.
func KindOf(err error) ErrorKind {
	var ve *VectorizeError
	if stderrors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// Sentinel errors returned by the registry.
var (
	ErrJobNotFound = stderrors.New("vectorize: job not found")
)
