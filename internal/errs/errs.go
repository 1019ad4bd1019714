// Package errs implements the error taxonomy the job pipeline relies on:
// transient errors that the queue should retry, data-invalid errors that
// route an order to "invalid" without retry, decode failures that are
// logged and skipped, and policy refusals surfaced to API callers. Job
// code wraps the sentinels below with fmt.Errorf("%w") at every layer
// boundary so errors.Is keeps working through the call stack.
package errs

import "errors"

// Sentinel markers. Use errors.Is against these, never string comparison.
var (
	// ErrTransient marks an error the job queue should retry with backoff
	// (RPC timeout, DB deadlock, Redis hiccup).
	ErrTransient = errors.New("transient error")

	// ErrDataInvalid marks an order that failed a filter check and must
	// never be retried.
	ErrDataInvalid = errors.New("data invalid")

	// ErrDecodeFailure marks a single log that failed to decode; the
	// ingestor logs it and continues the batch.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrUnauthorized marks a policy refusal (acceptOrders == false).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProgrammer marks an invariant violation that should never happen
	// in practice (e.g. a required query returning no rows). The job
	// fails and is retried like any transient error, but the condition is
	// worth alerting on.
	ErrProgrammer = errors.New("programmer error")
)

// IsRetryable reports whether the job queue should retry an error rather
// than routing it straight to the failed-jobs set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDataInvalid) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	return true
}

// Transient wraps err as a retryable transient error.
func Transient(msg string, err error) error {
	return &wrapped{sentinel: ErrTransient, msg: msg, err: err}
}

// DataInvalid wraps msg as a non-retryable data-invalid error.
func DataInvalid(msg string) error {
	return &wrapped{sentinel: ErrDataInvalid, msg: msg}
}

// Decode wraps a log-decode failure.
func Decode(msg string, err error) error {
	return &wrapped{sentinel: ErrDecodeFailure, msg: msg, err: err}
}

// Programmer wraps an invariant violation.
func Programmer(msg string) error {
	return &wrapped{sentinel: ErrProgrammer, msg: msg}
}

type wrapped struct {
	sentinel error
	msg      string
	err      error
}

func (w *wrapped) Error() string {
	if w.err != nil {
		return w.msg + ": " + w.err.Error()
	}
	return w.msg
}

func (w *wrapped) Unwrap() error {
	if w.err != nil {
		return errors.Join(w.sentinel, w.err)
	}
	return w.sentinel
}
