package infra

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"emr_etl/internal/config"
	"emr_etl/internal/github"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, org, repo string, ev github.DispatchEvent) error
}

var _ Dispatcher = (*github.Client)(nil)

// Request is one workflow dispatch.
type Request struct {
	Organization string
	Repository   string
	Workflow     string
	EventType    string
	Inputs       map[string]string
}

// RequestFromConfig reads the dispatch target from cfg. A repository given
// as "owner/name" is reduced to its name.
func RequestFromConfig(cfg *config.PipelineConfig, inputs map[string]string) Request {
	repo := cfg.Get(config.KeyGitHubRepository, config.DefaultGitHubRepository)
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		repo = repo[i+1:]
	}
	return Request{
		Organization: cfg.Get(config.KeyGitHubOrganization, config.DefaultGitHubOrganization),
		Repository:   repo,
		Workflow:     cfg.Get(config.KeyGitHubWorkflow, config.DefaultGitHubWorkflow),
		EventType:    cfg.Get(config.KeyGitHubEventType, config.DefaultGitHubEventType),
		Inputs:       inputs,
	}
}

// ProvisionInputs are the workflow inputs the provisioning workflow expects.
func ProvisionInputs(stackName string, creds config.Credentials) map[string]string {
	return map[string]string{
		"stack-name":            stackName,
		"AWS_ACCESS_KEY_ID":     creds.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": creds.SecretAccessKey,
		"AWS_SESSION_TOKEN":     creds.SessionToken,
	}
}

// Trigger fires workflow dispatches. Completion of the infrastructure change
// is observed out of band, for example with StackManager.Lookup.
type Trigger struct {
	dispatcher Dispatcher
}

func NewTrigger(d Dispatcher) *Trigger {
	return &Trigger{dispatcher: d}
}

// Fire sends req once. A non-204 answer is returned as
// *github.ErrDispatchFailed carrying the response body.
func (t *Trigger) Fire(ctx context.Context, req Request) error {
	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]string{}
	}
	err := t.dispatcher.Dispatch(ctx, req.Organization, req.Repository, github.DispatchEvent{
		EventType: req.EventType,
		Workflow:  req.Workflow,
		Inputs:    inputs,
	})
	if err != nil {
		zap.S().Errorw("failed to trigger workflow", "repository", req.Organization+"/"+req.Repository, "workflow", req.Workflow, "error", err)
		return err
	}
	zap.S().Infow("triggered workflow", "repository", req.Organization+"/"+req.Repository, "workflow", req.Workflow)
	return nil
}
