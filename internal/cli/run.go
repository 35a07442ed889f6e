package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"emr_etl/internal/orchestrator"
	"emr_etl/internal/stager"
	"emr_etl/internal/store"
)

type RunOptions struct {
	GlobalOptions

	ClusterID          string
	Steps              []string
	NumTransformations int
	Input              string
	FailurePolicy      string
	SkipStaging        bool
}

func DefaultRunOptions() *RunOptions {
	return &RunOptions{
		GlobalOptions: DefaultGlobalOptions(),
		FailurePolicy: string(orchestrator.ContinueOnFailure),
	}
}

func NewCmdRun() *cobra.Command {
	o := DefaultRunOptions()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stage the transformation scripts and run them as a chain of cluster steps.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *RunOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.ClusterID, "cluster-id", o.ClusterID, "Identifier of the cluster the steps are submitted to")
	fs.StringSliceVar(&o.Steps, "steps", o.Steps, "Ordered, comma separated transformation names")
	fs.IntVarP(&o.NumTransformations, "num-transformations", "n", o.NumTransformations, "Number of transformations, must match --steps")
	fs.StringVar(&o.Input, "input", o.Input, "Input location of the first step")
	fs.StringVar(&o.FailurePolicy, "failure-policy", o.FailurePolicy, "What to do after a failed step: continue or halt")
	fs.BoolVar(&o.SkipStaging, "skip-staging", o.SkipStaging, "Do not clone and upload the scripts, use the ones already staged")
}

func (o *RunOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.ClusterID == "" {
		return errors.New("--cluster-id is required")
	}
	if o.Input == "" {
		return errors.New("--input is required")
	}
	switch orchestrator.FailurePolicy(o.FailurePolicy) {
	case orchestrator.ContinueOnFailure, orchestrator.HaltOnFailure:
	default:
		return errors.Errorf("unknown failure policy %q, choose 'continue' or 'halt'", o.FailurePolicy)
	}
	return nil
}

func (o *RunOptions) Run(ctx context.Context, args []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	sess, creds, err := o.awsSession(cfg)
	if err != nil {
		return err
	}

	plan := orchestrator.PlanFromConfig(cfg, o.ClusterID, o.Input, o.Steps, o.NumTransformations)
	if err := plan.Validate(); err != nil {
		zap.S().Errorw("invalid run", "error", err)
		return err
	}

	if !o.SkipStaging {
		objects, err := o.objectStore(cfg, sess, creds)
		if err != nil {
			return err
		}
		s := stager.New(o.githubClient(ctx, cfg), stager.GitCloner{}, objects)
		if plan, err = stagePlan(ctx, s, plan, stager.Request{
			Repository: cfg.TransformationRepo(),
			StagingDir: o.settings.StagingDir,
			Bucket:     cfg.InputBucket(),
			Steps:      o.Steps,
		}); err != nil {
			return err
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithPollInterval(o.settings.PollInterval),
		orchestrator.WithFailurePolicy(orchestrator.FailurePolicy(o.FailurePolicy)),
	}
	if o.settings.AuditDB != "" {
		db, err := store.InitDatabase(o.settings.AuditDB)
		if err != nil {
			return errors.Wrap(err, "opening audit database")
		}
		defer db.Close()

		ledger := store.NewLedger(db, db)
		run, err := ledger.CreateRun(ctx, cfg.Path(), o.ClusterID)
		if err != nil {
			return errors.Wrap(err, "recording run")
		}
		zap.S().Infow("recording run", "run_id", run.RunID, "database", o.settings.AuditDB)
		opts = append(opts, orchestrator.WithRecorder(ledger.Recorder(run.RunID)))
	}

	jobs := orchestrator.NewEMRJobService(sess, cfg.StepNamePrefix())
	submissions, err := orchestrator.New(jobs, opts...).Run(ctx, plan)
	printSubmissions(o.out, submissions)
	if err != nil {
		return errors.Wrap(err, "running steps")
	}
	for _, s := range submissions {
		if s.Status != orchestrator.StatusCompleted {
			return errors.Errorf("step %s finished as %s", s.Name, s.Status)
		}
	}
	if len(submissions) < len(plan.Steps) {
		return errors.Errorf("chain halted after %d of %d steps", len(submissions), len(plan.Steps))
	}
	return nil
}

// stagePlan stages the scripts of req and points every step of plan at the
// script that was uploaded for it.
func stagePlan(ctx context.Context, s *stager.Stager, plan orchestrator.Plan, req stager.Request) (orchestrator.Plan, error) {
	staged, err := s.Stage(ctx, req)
	if err != nil {
		return plan, errors.Wrap(err, "staging scripts")
	}
	plan.Scripts = staged.Scripts
	if err := plan.Validate(); err != nil {
		return plan, err
	}
	return plan, nil
}

func printSubmissions(w io.Writer, submissions []*orchestrator.Submission) {
	for _, s := range submissions {
		fmt.Fprintf(w, "%d. %-24s %-10s %s\n", s.Index+1, s.Name, s.Status, s.JobID)
		fmt.Fprintf(w, "   %s -> %s\n", s.Input, s.Output)
	}
	if len(submissions) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 40))
	}
}
