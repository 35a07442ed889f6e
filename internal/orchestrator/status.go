package orchestrator

import "github.com/aws/aws-sdk-go/service/emr"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further transition can occur.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// statusFromStepState maps an EMR step state onto Status. Unknown states are
// treated as still running so polling continues.
func statusFromStepState(state string) Status {
	switch state {
	case emr.StepStatePending:
		return StatusPending
	case emr.StepStateRunning, emr.StepStateCancelPending:
		return StatusRunning
	case emr.StepStateCompleted:
		return StatusCompleted
	case emr.StepStateCancelled:
		return StatusCancelled
	case emr.StepStateFailed, emr.StepStateInterrupted:
		return StatusFailed
	default:
		return StatusRunning
	}
}
