package stager

import (
	"fmt"
	"strings"
)

// ErrClone means the repository could not be resolved or cloned. This is
// usually an authorization or not-found condition on the remote host.
type ErrClone struct {
	error
	Repository string
}

func NewErrClone(repo string, cause error) *ErrClone {
	return &ErrClone{error: fmt.Errorf("cloning %s: %w", repo, cause), Repository: repo}
}

type ErrUnknownStep struct {
	error
	Steps []string
}

func NewErrUnknownStep(steps []string) *ErrUnknownStep {
	return &ErrUnknownStep{
		error: fmt.Errorf("no transformation script matches step(s) %s", strings.Join(steps, ", ")),
		Steps: steps,
	}
}

// ErrAmbiguousStep means several scripts start with the step name and none is
// named exactly after it.
type ErrAmbiguousStep struct {
	error
	Step  string
	Files []string
}

func NewErrAmbiguousStep(step string, files []string) *ErrAmbiguousStep {
	return &ErrAmbiguousStep{
		error: fmt.Errorf("step %s matches several scripts (%s), name one %s.py", step, strings.Join(files, ", "), step),
		Step:  step,
		Files: files,
	}
}
