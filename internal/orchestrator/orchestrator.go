package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FailurePolicy decides what happens to the chain after a step ends in a
// state other than COMPLETED.
type FailurePolicy string

const (
	// ContinueOnFailure feeds the failed step's output location to the next
	// step anyway.
	ContinueOnFailure FailurePolicy = "continue"
	HaltOnFailure     FailurePolicy = "halt"
)

const DefaultPollInterval = 20 * time.Second

// Submission is the record of one submitted step. It is owned and mutated by
// the orchestrator only; recorders receive it after every change.
type Submission struct {
	Index       int
	Name        string
	JobID       string
	Script      string
	Input       string
	Output      string
	Status      Status
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Recorder receives each submission whenever its status changes.
type Recorder interface {
	Record(ctx context.Context, s *Submission) error
}

type Orchestrator struct {
	jobs     JobService
	interval time.Duration
	policy   FailurePolicy
	recorder Recorder
	after    func(time.Duration) <-chan time.Time
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

func withClock(after func(time.Duration) <-chan time.Time, now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.after = after
		o.now = now
	}
}

func New(jobs JobService, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:     jobs,
		interval: DefaultPollInterval,
		policy:   ContinueOnFailure,
		after:    time.After,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run submits the steps of plan one at a time, waiting for each to reach a
// terminal state before submitting the next with the previous output as its
// input. Polling is unbounded and only stops early when ctx is done. The
// returned submissions are in step order; on error they hold every step
// submitted so far.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) ([]*Submission, error) {
	if err := plan.Validate(); err != nil {
		zap.S().Errorw("rejecting plan", "error", err)
		return nil, err
	}

	submissions := make([]*Submission, 0, len(plan.Steps))
	input := plan.InitialInput

	for i, name := range plan.Steps {
		sub := &Submission{
			Index:  i,
			Name:   name,
			Script: plan.ScriptLocation(i),
			Input:  input,
			Output: plan.OutputLocation(i),
		}

		jobID, err := o.jobs.Submit(ctx, plan.ClusterID, JobSpec{
			Name:   name,
			Script: sub.Script,
			Input:  sub.Input,
			Output: sub.Output,
		})
		if err != nil {
			return submissions, err
		}
		sub.JobID = jobID
		sub.Status = StatusPending
		sub.SubmittedAt = o.now()
		submissions = append(submissions, sub)
		o.record(ctx, sub)

		zap.S().Infow("step submitted", "step", name, "job_id", jobID, "input", sub.Input, "output", sub.Output)

		if err := o.wait(ctx, plan.ClusterID, sub); err != nil {
			return submissions, err
		}

		if sub.Status != StatusCompleted {
			zap.S().Errorw("step did not complete", "step", name, "job_id", jobID, "status", sub.Status)
			if o.policy == HaltOnFailure {
				zap.S().Warnw("halting chain", "remaining_steps", len(plan.Steps)-i-1)
				return submissions, nil
			}
		} else {
			zap.S().Infow("step completed", "step", name, "job_id", jobID)
		}

		input = sub.Output
	}
	return submissions, nil
}

func (o *Orchestrator) wait(ctx context.Context, clusterID string, sub *Submission) error {
	for {
		status, err := o.jobs.Status(ctx, clusterID, sub.JobID)
		if err != nil {
			return err
		}
		if status != sub.Status {
			zap.S().Infow("step status changed", "step", sub.Name, "job_id", sub.JobID, "from", sub.Status, "to", status)
			sub.Status = status
			if status.IsTerminal() {
				sub.FinishedAt = o.now()
			}
			o.record(ctx, sub)
		}
		if status.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.after(o.interval):
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, sub *Submission) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, sub); err != nil {
		zap.S().Warnw("failed to record submission", "step", sub.Name, "error", err)
	}
}
