package infra

import "fmt"

type ErrStackNotFound struct {
	error
	StackName string
}

func NewErrStackNotFound(name string) *ErrStackNotFound {
	return &ErrStackNotFound{error: fmt.Errorf("stack %q does not exist", name), StackName: name}
}

// ErrTeardownAborted is returned when deletion of a stack with a running
// cluster was not confirmed.
type ErrTeardownAborted struct {
	error
	StackName string
	ClusterID string
}

func NewErrTeardownAborted(name, clusterID string) *ErrTeardownAborted {
	return &ErrTeardownAborted{
		error:     fmt.Errorf("stack deletion aborted: cluster %s of stack %s is still running", clusterID, name),
		StackName: name,
		ClusterID: clusterID,
	}
}
