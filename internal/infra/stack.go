package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/emr"
	"go.uber.org/zap"
)

// ClusterIDOutput is the stack output holding the EMR cluster id.
const ClusterIDOutput = "EMRClusterIdOutput"

type cloudFormationAPI interface {
	DescribeStacksWithContext(aws.Context, *cloudformation.DescribeStacksInput, ...request.Option) (*cloudformation.DescribeStacksOutput, error)
	DeleteStackWithContext(aws.Context, *cloudformation.DeleteStackInput, ...request.Option) (*cloudformation.DeleteStackOutput, error)
	WaitUntilStackDeleteCompleteWithContext(aws.Context, *cloudformation.DescribeStacksInput, ...request.WaiterOption) error
	ListStacksPagesWithContext(aws.Context, *cloudformation.ListStacksInput, func(*cloudformation.ListStacksOutput, bool) bool, ...request.Option) error
}

type clusterAPI interface {
	DescribeClusterWithContext(aws.Context, *emr.DescribeClusterInput, ...request.Option) (*emr.DescribeClusterOutput, error)
	TerminateJobFlowsWithContext(aws.Context, *emr.TerminateJobFlowsInput, ...request.Option) (*emr.TerminateJobFlowsOutput, error)
}

var (
	_ cloudFormationAPI = (*cloudformation.CloudFormation)(nil)
	_ clusterAPI        = (*emr.EMR)(nil)
)

// StackRecord is a point-in-time view of a stack.
type StackRecord struct {
	StackName string
	// StackID is the unique id of the stack. It tells a stack apart from
	// earlier deleted stacks of the same name.
	StackID   string
	Exists    bool
	ClusterID string
}

// Confirmer asks the operator a yes/no question.
type Confirmer func(prompt string) (bool, error)

type StackManager struct {
	cfn    cloudFormationAPI
	emr    clusterAPI
	settle time.Duration
}

func NewStackManager(sess *session.Session) *StackManager {
	return &StackManager{
		cfn:    cloudformation.New(sess),
		emr:    emr.New(sess),
		settle: 5 * time.Second,
	}
}

func newStackManagerWithClients(cfn cloudFormationAPI, cluster clusterAPI) *StackManager {
	return &StackManager{cfn: cfn, emr: cluster}
}

// Lookup describes name. A stack that does not exist is reported with
// Exists false and no error.
func (m *StackManager) Lookup(ctx context.Context, name string) (*StackRecord, error) {
	out, err := m.cfn.DescribeStacksWithContext(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
	if err != nil {
		if isStackMissing(err) {
			zap.S().Infow("stack does not exist", "stack", name)
			return &StackRecord{StackName: name}, nil
		}
		return nil, fmt.Errorf("describing stack %s: %w", name, err)
	}
	rec := &StackRecord{StackName: name, Exists: len(out.Stacks) > 0}
	if rec.Exists {
		rec.StackID = aws.StringValue(out.Stacks[0].StackId)
		for _, o := range out.Stacks[0].Outputs {
			if aws.StringValue(o.OutputKey) == ClusterIDOutput {
				rec.ClusterID = strings.TrimSpace(aws.StringValue(o.OutputValue))
			}
		}
		zap.S().Infow("stack exists", "stack", name, "cluster_id", rec.ClusterID)
	}
	return rec, nil
}

func isStackMissing(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == "ValidationError" && strings.Contains(aerr.Message(), "does not exist")
}

// ClusterState returns the EMR cluster state, for example RUNNING or WAITING.
func (m *StackManager) ClusterState(ctx context.Context, clusterID string) (string, error) {
	out, err := m.emr.DescribeClusterWithContext(ctx, &emr.DescribeClusterInput{ClusterId: aws.String(clusterID)})
	if err != nil {
		return "", fmt.Errorf("describing cluster %s: %w", clusterID, err)
	}
	if out.Cluster == nil || out.Cluster.Status == nil {
		return "", fmt.Errorf("describing cluster %s: empty status", clusterID)
	}
	return aws.StringValue(out.Cluster.Status.State), nil
}

func (m *StackManager) TerminateCluster(ctx context.Context, clusterID string) error {
	_, err := m.emr.TerminateJobFlowsWithContext(ctx, &emr.TerminateJobFlowsInput{
		JobFlowIds: aws.StringSlice([]string{clusterID}),
	})
	if err != nil {
		return fmt.Errorf("terminating cluster %s: %w", clusterID, err)
	}
	zap.S().Infow("cluster termination requested", "cluster_id", clusterID)
	return nil
}

// Teardown deletes the stack and blocks until CloudFormation reports
// DELETE_COMPLETE. When the stack's cluster is RUNNING, confirm must approve
// the deletion first; a nil confirm never approves.
func (m *StackManager) Teardown(ctx context.Context, name string, confirm Confirmer) error {
	rec, err := m.Lookup(ctx, name)
	if err != nil {
		return err
	}
	if !rec.Exists {
		return NewErrStackNotFound(name)
	}

	if rec.ClusterID != "" {
		state, err := m.ClusterState(ctx, rec.ClusterID)
		if err != nil {
			zap.S().Warnw("could not get cluster state", "cluster_id", rec.ClusterID, "error", err)
		} else {
			zap.S().Infow("cluster state", "cluster_id", rec.ClusterID, "state", state)
		}
		if state == emr.ClusterStateRunning {
			ok := false
			if confirm != nil {
				ok, err = confirm("The cluster is still running. Do you still want to delete the stack?")
				if err != nil {
					return err
				}
			}
			if !ok {
				return NewErrTeardownAborted(name, rec.ClusterID)
			}
		}
	}

	if _, err := m.cfn.DeleteStackWithContext(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(name)}); err != nil {
		return fmt.Errorf("deleting stack %s: %w", name, err)
	}
	zap.S().Infow("stack deletion initiated", "stack", name)

	if err := m.cfn.WaitUntilStackDeleteCompleteWithContext(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)}); err != nil {
		return fmt.Errorf("waiting for deletion of stack %s: %w", name, err)
	}

	if m.settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.settle):
		}
	}

	deleted, err := m.IsDeleted(ctx, name, rec.StackID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("failed to delete stack %s, check the CloudFormation console for details", name)
	}
	zap.S().Infow("stack deleted", "stack", name)
	return nil
}

// IsDeleted reports whether the stack is listed with status DELETE_COMPLETE.
// When stackID is set only that stack counts, so an older deleted stack of
// the same name is not mistaken for it.
func (m *StackManager) IsDeleted(ctx context.Context, name, stackID string) (bool, error) {
	found := false
	err := m.cfn.ListStacksPagesWithContext(ctx,
		&cloudformation.ListStacksInput{StackStatusFilter: aws.StringSlice([]string{cloudformation.StackStatusDeleteComplete})},
		func(page *cloudformation.ListStacksOutput, lastPage bool) bool {
			for _, s := range page.StackSummaries {
				if stackID != "" && aws.StringValue(s.StackId) != stackID {
					continue
				}
				if aws.StringValue(s.StackName) == name {
					found = true
					return false
				}
			}
			return !lastPage
		})
	if err != nil {
		return false, fmt.Errorf("listing deleted stacks: %w", err)
	}
	return found, nil
}
