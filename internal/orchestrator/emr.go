package orchestrator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/emr"
)

// JobSpec describes one remote job unit.
type JobSpec struct {
	Name   string
	Script string
	Input  string
	Output string
}

// JobService is the cluster job capability the orchestrator drives.
type JobService interface {
	Submit(ctx context.Context, clusterID string, spec JobSpec) (string, error)
	Status(ctx context.Context, clusterID, jobID string) (Status, error)
}

type emrAPI interface {
	AddJobFlowStepsWithContext(aws.Context, *emr.AddJobFlowStepsInput, ...request.Option) (*emr.AddJobFlowStepsOutput, error)
	DescribeStepWithContext(aws.Context, *emr.DescribeStepInput, ...request.Option) (*emr.DescribeStepOutput, error)
}

var (
	_ emrAPI     = (*emr.EMR)(nil)
	_ JobService = (*EMRJobService)(nil)
)

// EMRJobService runs each job as a spark-submit step through
// command-runner.jar. Steps continue the cluster on failure.
type EMRJobService struct {
	emr        emrAPI
	namePrefix string
}

func NewEMRJobService(sess *session.Session, namePrefix string) *EMRJobService {
	return &EMRJobService{emr: emr.New(sess), namePrefix: namePrefix}
}

func newEMRJobServiceWithClient(client emrAPI, namePrefix string) *EMRJobService {
	return &EMRJobService{emr: client, namePrefix: namePrefix}
}

func (s *EMRJobService) stepConfig(spec JobSpec) *emr.StepConfig {
	return &emr.StepConfig{
		Name:            aws.String(s.namePrefix + spec.Name),
		ActionOnFailure: aws.String(emr.ActionOnFailureContinue),
		HadoopJarStep: &emr.HadoopJarStepConfig{
			Jar: aws.String("command-runner.jar"),
			Args: aws.StringSlice([]string{
				"spark-submit",
				spec.Script,
				"--input", spec.Input,
				"--output", spec.Output,
			}),
		},
	}
}

func (s *EMRJobService) Submit(ctx context.Context, clusterID string, spec JobSpec) (string, error) {
	out, err := s.emr.AddJobFlowStepsWithContext(ctx, &emr.AddJobFlowStepsInput{
		JobFlowId: aws.String(clusterID),
		Steps:     []*emr.StepConfig{s.stepConfig(spec)},
	})
	if err != nil {
		return "", fmt.Errorf("adding step %s to cluster %s: %w", spec.Name, clusterID, err)
	}
	if len(out.StepIds) == 0 {
		return "", fmt.Errorf("adding step %s to cluster %s: no step id returned", spec.Name, clusterID)
	}
	return aws.StringValue(out.StepIds[0]), nil
}

func (s *EMRJobService) Status(ctx context.Context, clusterID, jobID string) (Status, error) {
	out, err := s.emr.DescribeStepWithContext(ctx, &emr.DescribeStepInput{
		ClusterId: aws.String(clusterID),
		StepId:    aws.String(jobID),
	})
	if err != nil {
		return "", fmt.Errorf("describing step %s: %w", jobID, err)
	}
	if out.Step == nil || out.Step.Status == nil {
		return "", fmt.Errorf("describing step %s: empty status", jobID)
	}
	return statusFromStepState(aws.StringValue(out.Step.Status.State)), nil
}
