package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"emr_etl/internal/config"
	"emr_etl/internal/github"
)

type mockCFN struct {
	mock.Mock
}

func (m *mockCFN) DescribeStacksWithContext(_ aws.Context, in *cloudformation.DescribeStacksInput, _ ...request.Option) (*cloudformation.DescribeStacksOutput, error) {
	args := m.Called(aws.StringValue(in.StackName))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cloudformation.DescribeStacksOutput), args.Error(1)
}

func (m *mockCFN) DeleteStackWithContext(_ aws.Context, in *cloudformation.DeleteStackInput, _ ...request.Option) (*cloudformation.DeleteStackOutput, error) {
	args := m.Called(aws.StringValue(in.StackName))
	return &cloudformation.DeleteStackOutput{}, args.Error(0)
}

func (m *mockCFN) WaitUntilStackDeleteCompleteWithContext(_ aws.Context, in *cloudformation.DescribeStacksInput, _ ...request.WaiterOption) error {
	args := m.Called(aws.StringValue(in.StackName))
	return args.Error(0)
}

func (m *mockCFN) ListStacksPagesWithContext(_ aws.Context, _ *cloudformation.ListStacksInput, fn func(*cloudformation.ListStacksOutput, bool) bool, _ ...request.Option) error {
	args := m.Called()
	fn(&cloudformation.ListStacksOutput{StackSummaries: args.Get(0).([]*cloudformation.StackSummary)}, true)
	return args.Error(1)
}

type mockEMR struct {
	mock.Mock
}

func (m *mockEMR) DescribeClusterWithContext(_ aws.Context, in *emr.DescribeClusterInput, _ ...request.Option) (*emr.DescribeClusterOutput, error) {
	args := m.Called(aws.StringValue(in.ClusterId))
	return &emr.DescribeClusterOutput{Cluster: &emr.Cluster{Status: &emr.ClusterStatus{State: aws.String(args.String(0))}}}, args.Error(1)
}

func (m *mockEMR) TerminateJobFlowsWithContext(_ aws.Context, in *emr.TerminateJobFlowsInput, _ ...request.Option) (*emr.TerminateJobFlowsOutput, error) {
	args := m.Called(aws.StringValueSlice(in.JobFlowIds))
	return &emr.TerminateJobFlowsOutput{}, args.Error(0)
}

const etlStackID = "arn:aws:cloudformation:us-east-1:123456789012:stack/etl/new"

func deletedStack(name, id string) *cloudformation.StackSummary {
	return &cloudformation.StackSummary{
		StackName:   aws.String(name),
		StackId:     aws.String(id),
		StackStatus: aws.String(cloudformation.StackStatusDeleteComplete),
	}
}

func stackWithCluster(id string) *cloudformation.DescribeStacksOutput {
	return &cloudformation.DescribeStacksOutput{Stacks: []*cloudformation.Stack{{
		StackName: aws.String("etl"),
		StackId:   aws.String(etlStackID),
		Outputs: []*cloudformation.Output{
			{OutputKey: aws.String("Other"), OutputValue: aws.String("x")},
			{OutputKey: aws.String(ClusterIDOutput), OutputValue: aws.String(" " + id + "\n")},
		},
	}}}
}

var stackMissing = awserr.New("ValidationError", "Stack with id ghost does not exist", nil)

func TestLookup(t *testing.T) {
	cfn := new(mockCFN)
	cfn.On("DescribeStacksWithContext", "etl").Return(stackWithCluster("j-ABC"), nil)
	cfn.On("DescribeStacksWithContext", "ghost").Return(nil, stackMissing)
	cfn.On("DescribeStacksWithContext", "denied").Return(nil, awserr.New("AccessDenied", "nope", nil))
	m := newStackManagerWithClients(cfn, new(mockEMR))
	ctx := context.Background()

	rec, err := m.Lookup(ctx, "etl")
	require.NoError(t, err)
	assert.Equal(t, &StackRecord{StackName: "etl", StackID: etlStackID, Exists: true, ClusterID: "j-ABC"}, rec)

	rec, err = m.Lookup(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, rec.Exists)

	_, err = m.Lookup(ctx, "denied")
	assert.Error(t, err)
}

func TestTeardown_RunningClusterNeedsConfirmation(t *testing.T) {
	cfn := new(mockCFN)
	cfn.On("DescribeStacksWithContext", "etl").Return(stackWithCluster("j-ABC"), nil)
	cluster := new(mockEMR)
	cluster.On("DescribeClusterWithContext", "j-ABC").Return(emr.ClusterStateRunning, nil)
	m := newStackManagerWithClients(cfn, cluster)

	asked := ""
	err := m.Teardown(context.Background(), "etl", func(prompt string) (bool, error) {
		asked = prompt
		return false, nil
	})

	var aborted *ErrTeardownAborted
	require.True(t, errors.As(err, &aborted))
	assert.Equal(t, "j-ABC", aborted.ClusterID)
	assert.Contains(t, asked, "still running")
	cfn.AssertNotCalled(t, "DeleteStackWithContext", "etl")

	err = m.Teardown(context.Background(), "etl", nil)
	assert.True(t, errors.As(err, &aborted))
}

func TestTeardown_Confirmed(t *testing.T) {
	cfn := new(mockCFN)
	cfn.On("DescribeStacksWithContext", "etl").Return(stackWithCluster("j-ABC"), nil)
	cfn.On("DeleteStackWithContext", "etl").Return(nil)
	cfn.On("WaitUntilStackDeleteCompleteWithContext", "etl").Return(nil)
	cfn.On("ListStacksPagesWithContext").Return([]*cloudformation.StackSummary{
		deletedStack("old", "arn:aws:cloudformation:us-east-1:123456789012:stack/old/1"),
		deletedStack("etl", etlStackID),
	}, nil)
	cluster := new(mockEMR)
	cluster.On("DescribeClusterWithContext", "j-ABC").Return(emr.ClusterStateRunning, nil)
	m := newStackManagerWithClients(cfn, cluster)

	err := m.Teardown(context.Background(), "etl", func(string) (bool, error) { return true, nil })

	require.NoError(t, err)
	cfn.AssertExpectations(t)
}

func TestTeardown_WaitingClusterNeedsNoConfirmation(t *testing.T) {
	cfn := new(mockCFN)
	cfn.On("DescribeStacksWithContext", "etl").Return(stackWithCluster("j-ABC"), nil)
	cfn.On("DeleteStackWithContext", "etl").Return(nil)
	cfn.On("WaitUntilStackDeleteCompleteWithContext", "etl").Return(nil)
	cfn.On("ListStacksPagesWithContext").Return([]*cloudformation.StackSummary{
		deletedStack("other", "arn:aws:cloudformation:us-east-1:123456789012:stack/other/1"),
	}, nil)
	cluster := new(mockEMR)
	cluster.On("DescribeClusterWithContext", "j-ABC").Return(emr.ClusterStateWaiting, nil)
	m := newStackManagerWithClients(cfn, cluster)

	err := m.Teardown(context.Background(), "etl", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete stack etl")
}

func TestTeardown_EarlierDeletedStackOfSameNameDoesNotCount(t *testing.T) {
	cfn := new(mockCFN)
	cfn.On("DescribeStacksWithContext", "etl").Return(stackWithCluster("j-ABC"), nil)
	cfn.On("DeleteStackWithContext", "etl").Return(nil)
	cfn.On("WaitUntilStackDeleteCompleteWithContext", "etl").Return(nil)
	cfn.On("ListStacksPagesWithContext").Return([]*cloudformation.StackSummary{
		deletedStack("etl", "arn:aws:cloudformation:us-east-1:123456789012:stack/etl/old"),
	}, nil)
	cluster := new(mockEMR)
	cluster.On("DescribeClusterWithContext", "j-ABC").Return(emr.ClusterStateWaiting, nil)
	m := newStackManagerWithClients(cfn, cluster)

	err := m.Teardown(context.Background(), "etl", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete stack etl")
}

func TestIsDeleted(t *testing.T) {
	cfn := new(mockCFN)
	cfn.On("ListStacksPagesWithContext").Return([]*cloudformation.StackSummary{
		deletedStack("etl", "arn:aws:cloudformation:us-east-1:123456789012:stack/etl/old"),
	}, nil)
	m := newStackManagerWithClients(cfn, new(mockEMR))
	ctx := context.Background()

	deleted, err := m.IsDeleted(ctx, "etl", "")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.IsDeleted(ctx, "etl", etlStackID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTeardown_MissingStack(t *testing.T) {
	cfn := new(mockCFN)
	cfn.On("DescribeStacksWithContext", "ghost").Return(nil, stackMissing)
	m := newStackManagerWithClients(cfn, new(mockEMR))

	err := m.Teardown(context.Background(), "ghost", nil)

	var notFound *ErrStackNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestTerminateCluster(t *testing.T) {
	cluster := new(mockEMR)
	cluster.On("TerminateJobFlowsWithContext", []string{"j-ABC"}).Return(nil)
	m := newStackManagerWithClients(new(mockCFN), cluster)

	require.NoError(t, m.TerminateCluster(context.Background(), "j-ABC"))
	cluster.AssertExpectations(t)
}

type recordingDispatcher struct {
	org, repo string
	event     github.DispatchEvent
	err       error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, org, repo string, ev github.DispatchEvent) error {
	r.org, r.repo, r.event = org, repo, ev
	return r.err
}

func TestTriggerFire(t *testing.T) {
	cfg := config.FromMap(map[string]any{
		config.KeyGitHubOrganization: "acme",
		config.KeyGitHubRepository:   "acme/infra",
		config.KeyGitHubWorkflow:     "deploy.yml",
		config.KeyGitHubEventType:    "provision",
	})
	creds := config.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret", SessionToken: "token"}
	d := &recordingDispatcher{}

	err := NewTrigger(d).Fire(context.Background(), RequestFromConfig(cfg, ProvisionInputs("etl-stack", creds)))

	require.NoError(t, err)
	assert.Equal(t, "acme", d.org)
	assert.Equal(t, "infra", d.repo)
	assert.Equal(t, "provision", d.event.EventType)
	assert.Equal(t, "deploy.yml", d.event.Workflow)
	assert.Equal(t, map[string]string{
		"stack-name":            "etl-stack",
		"AWS_ACCESS_KEY_ID":     "AKIA",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_SESSION_TOKEN":     "token",
	}, d.event.Inputs)
}

func TestTriggerFire_Failed(t *testing.T) {
	d := &recordingDispatcher{err: github.NewErrDispatchFailed(401, "Bad credentials")}

	err := NewTrigger(d).Fire(context.Background(), Request{Organization: "acme", Repository: "infra"})

	var failed *github.ErrDispatchFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "Bad credentials", failed.Body)
	assert.NotNil(t, d.event.Inputs)
}
