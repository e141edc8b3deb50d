package main

import "fmt"

// usageError marks argument mistakes the caller can fix without touching
// configuration or the daemon.
type usageError struct {
	msg string
}

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func (e *usageError) Error() string { return e.msg }

// configError marks failures loading or validating the local configuration
// file.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// connectError marks a failure to reach the daemon's API endpoint at all, as
// opposed to an error response from it.
type connectError struct {
	address string
	err     error
}

func (e *connectError) Error() string {
	return fmt.Sprintf("connect to daemon at %s: %v; start it with `aphrodited` or point --server at the right address", e.address, e.err)
}

func (e *connectError) Unwrap() error { return e.err }

// apiError is a non-2xx response decoded from the daemon.
type apiError struct {
	Status  int
	Kind    string
	Message string
}

func (e *apiError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
	}
	return e.Message
}

// partialBatchError reports a batch that finished with a mix of succeeded and
// failed items.
type partialBatchError struct {
	jobID  string
	failed int
}

func (e *partialBatchError) Error() string {
	return fmt.Sprintf("job %s finished partially: %d item(s) failed", e.jobID, e.failed)
}
