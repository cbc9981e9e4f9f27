package services

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureKind tags why a remote inference attempt produced nothing usable.
type FailureKind string

const (
	FailureUnconfigured     FailureKind = "unconfigured"
	FailureRemoteRejected   FailureKind = "remote_rejected"
	FailureNetwork          FailureKind = "network_failure"
	FailureEmptyResponse    FailureKind = "empty_response"
	FailureMalformedContent FailureKind = "malformed_content"
)

// InferenceError is the only error type returned by inference clients.
// It never leaves SmartReplyService.
type InferenceError struct {
	Kind       FailureKind
	StatusCode int    // RemoteRejected only
	Detail     string // trimmed response body or offending content, for logs
	Err        error
}

func (e *InferenceError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Status names the RemoteRejected sub-class. Informational only; every
// rejection falls back the same way.
func (e *InferenceError) Status() string {
	switch {
	case e.Kind != FailureRemoteRejected:
		return ""
	case e.StatusCode == http.StatusUnauthorized:
		return "unauthorized"
	case e.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case e.StatusCode >= 500:
		return "server_error"
	default:
		return "rejected"
	}
}

// FailureKindOf maps any error from an inference attempt onto the taxonomy.
// Errors that are not *InferenceError count as transport failures.
func FailureKindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return FailureNetwork
}

func newInferenceError(kind FailureKind, err error) *InferenceError {
	return &InferenceError{Kind: kind, Err: err}
}
