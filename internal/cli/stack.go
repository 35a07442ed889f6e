package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"emr_etl/internal/infra"
)

func NewCmdStack() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Inspect infrastructure stacks.",
	}
	cmd.AddCommand(NewCmdStackExists())
	return cmd
}

type StackExistsOptions struct {
	GlobalOptions

	StackName string
}

func DefaultStackExistsOptions() *StackExistsOptions {
	return &StackExistsOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

// NewCmdStackExists exits non-zero when the stack does not exist, so it can
// gate shell pipelines.
func NewCmdStackExists() *cobra.Command {
	o := DefaultStackExistsOptions()
	cmd := &cobra.Command{
		Use:   "exists STACK_NAME",
		Short: "Exit 0 if the stack exists, 1 otherwise.",
		Args:  cobra.ExactArgs(1),
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

func (o *StackExistsOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.StackName = args[0]
	return nil
}

func (o *StackExistsOptions) Run(ctx context.Context, args []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	sess, _, err := o.awsSession(cfg)
	if err != nil {
		return err
	}

	rec, err := infra.NewStackManager(sess).Lookup(ctx, o.StackName)
	if err != nil {
		return err
	}
	if !rec.Exists {
		return infra.NewErrStackNotFound(o.StackName)
	}
	fmt.Fprintf(o.out, "stack %s exists", rec.StackName)
	if rec.ClusterID != "" {
		fmt.Fprintf(o.out, " (cluster %s)", rec.ClusterID)
	}
	fmt.Fprintln(o.out)
	return nil
}
