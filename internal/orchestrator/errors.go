package orchestrator

import "fmt"

// ErrStepCountMismatch rejects a plan whose declared step count differs from
// the number of step names. Nothing is submitted.
type ErrStepCountMismatch struct {
	error
	Declared int
	Named    int
}

func NewErrStepCountMismatch(declared, named int) *ErrStepCountMismatch {
	return &ErrStepCountMismatch{
		error:    fmt.Errorf("number of transformations (%d) does not match number of step names (%d)", declared, named),
		Declared: declared,
		Named:    named,
	}
}

type ErrInvalidPlan struct {
	error
}

func NewErrInvalidPlan(cause error) *ErrInvalidPlan {
	return &ErrInvalidPlan{error: fmt.Errorf("invalid plan: %w", cause)}
}
