package github

import "fmt"

type ErrUnexpectedStatus struct {
	error
	StatusCode int
	Body       string
}

func NewErrUnexpectedStatus(op string, code int, body string) *ErrUnexpectedStatus {
	return &ErrUnexpectedStatus{
		error:      fmt.Errorf("%s: unexpected status code %d: %s", op, code, body),
		StatusCode: code,
		Body:       body,
	}
}

// ErrDispatchFailed is returned when a workflow dispatch is not answered with
// 204 No Content.
type ErrDispatchFailed struct {
	error
	StatusCode int
	Body       string
}

func NewErrDispatchFailed(code int, body string) *ErrDispatchFailed {
	return &ErrDispatchFailed{
		error:      fmt.Errorf("failed to trigger workflow, status code %d: %s", code, body),
		StatusCode: code,
		Body:       body,
	}
}

type ErrConnection struct {
	error
}

func NewErrConnection(cause error) *ErrConnection {
	return &ErrConnection{error: fmt.Errorf("github api unreachable: %w", cause)}
}
