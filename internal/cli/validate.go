package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"emr_etl/internal/config"
	"emr_etl/internal/validation"
)

var ErrValidationFailed = errors.New("validation failed")

type ValidateOptions struct {
	GlobalOptions

	Source         string
	Destination    string
	Strict         bool
	CheckRoleNames bool
}

func DefaultValidateOptions() *ValidateOptions {
	return &ValidateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdValidate() *cobra.Command {
	o := DefaultValidateOptions()
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check storage paths, roles, templates and remote files before a run.",
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

func (o *ValidateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVar(&o.Source, "source", o.Source, "Source object path to check, e.g. s3://bucket/input.csv")
	fs.StringVar(&o.Destination, "destination", o.Destination, "Destination object path to check")
	fs.BoolVar(&o.Strict, "strict", o.Strict, "Fail on advisory results too")
	fs.BoolVar(&o.CheckRoleNames, "check-role-names", o.CheckRoleNames, "Also check role names against the naming convention")
}

func (o *ValidateOptions) Run(ctx context.Context, args []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	sess, creds, err := o.awsSession(cfg)
	if err != nil {
		return err
	}
	objects, err := o.objectStore(cfg, sess, creds)
	if err != nil {
		return err
	}

	suite := &validation.Suite{
		Paths:     validation.NewPathValidator(objects),
		Roles:     validation.NewRoleValidator(sess, o.CheckRoleNames),
		Templates: validation.NewTemplateRoleValidator(sess),
		Files:     validation.NewRemoteFileValidator(o.githubClient(ctx, cfg)),
	}
	return o.check(ctx, suite, o.params(cfg))
}

func (o *ValidateOptions) params(cfg *config.PipelineConfig) validation.Params {
	p := validation.ParamsFromConfig(cfg)
	p.SourcePath = o.Source
	p.DestinationPath = o.Destination
	return p
}

func (o *ValidateOptions) check(ctx context.Context, suite *validation.Suite, p validation.Params) error {
	report, err := suite.Run(ctx, p)
	if err != nil {
		zap.S().Errorw("some checks could not complete", "error", err)
	}
	printReport(o.out, report)

	if !report.Passed(o.Strict) {
		return ErrValidationFailed
	}
	fmt.Fprintln(o.out, "all checks passed")
	return nil
}

func printReport(w io.Writer, report *validation.Report) {
	for _, r := range report.Results {
		status := "PASS"
		switch {
		case r.Passed:
		case r.Advisory:
			status = "WARN"
		default:
			status = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %-26s %-40s %s", status, r.CheckName, r.Target, r.Reason)
		if r.Detail != "" {
			fmt.Fprintf(w, ": %s", r.Detail)
		}
		fmt.Fprintln(w)
	}
}
