package rag

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorRetrieval  ErrorKind = "retrieval"
	ErrorCompletion ErrorKind = "completion"
	ErrorQuota      ErrorKind = "quota"
	ErrorInvalid    ErrorKind = "invalid"
)

// QueryError is the single error type returned from a failed query. Its
// message is for logs; UserMessage is what callers show.
type QueryError struct {
	Kind ErrorKind
	Err  error
}

func (e *QueryError) Error() string {
	if e == nil {
		return "query failed"
	}
	if e.Err == nil {
		return fmt.Sprintf("query failed (%s)", e.Kind)
	}
	return fmt.Sprintf("query failed (%s): %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the text safe to show to the caller.
func (e *QueryError) UserMessage() string {
	switch e.Kind {
	case ErrorQuota:
		return "Query quota exhausted"
	case ErrorInvalid:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "Invalid query"
	default:
		return "Query failed"
	}
}

func queryErr(kind ErrorKind, err error) error {
	return &QueryError{Kind: kind, Err: err}
}

// RetrievalError wraps a vector search or embedding failure.
func RetrievalError(err error) error { return queryErr(ErrorRetrieval, err) }

// CompletionError wraps a language model failure.
func CompletionError(err error) error { return queryErr(ErrorCompletion, err) }

// QuotaError reports that the user has no fresh queries left.
func QuotaError(err error) error { return queryErr(ErrorQuota, err) }

// InvalidError reports a request that cannot be answered as given.
func InvalidError(msg string) error { return queryErr(ErrorInvalid, errors.New(msg)) }

// KindOf returns the kind of a QueryError anywhere in err's chain, or "".
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// UserMessage returns the caller-facing text for err.
func UserMessage(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.UserMessage()
	}
	return "Query failed"
}
