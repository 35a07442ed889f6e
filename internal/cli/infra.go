package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"emr_etl/internal/infra"
)

func NewCmdInfra() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infra",
		Short: "Provision or tear down the cluster infrastructure.",
	}
	cmd.AddCommand(NewCmdInfraUp())
	cmd.AddCommand(NewCmdInfraDown())
	return cmd
}

type InfraUpOptions struct {
	GlobalOptions

	StackName string
}

func DefaultInfraUpOptions() *InfraUpOptions {
	return &InfraUpOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdInfraUp() *cobra.Command {
	o := DefaultInfraUpOptions()
	cmd := &cobra.Command{
		Use:   "up STACK_NAME",
		Short: "Trigger the provisioning workflow for a stack.",
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

func (o *InfraUpOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.StackName = args[0]
	return nil
}

func (o *InfraUpOptions) Run(ctx context.Context, args []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	// Only the credentials are forwarded; no AWS call is made from here.
	_, creds, err := o.awsSession(cfg)
	if err != nil {
		return err
	}

	req := infra.RequestFromConfig(cfg, infra.ProvisionInputs(o.StackName, creds))
	if err := infra.NewTrigger(o.githubClient(ctx, cfg)).Fire(ctx, req); err != nil {
		return errors.Wrap(err, "triggering provisioning workflow")
	}
	fmt.Fprintf(o.out, "workflow %s triggered for stack %s\n", req.Workflow, o.StackName)
	return nil
}

type InfraDownOptions struct {
	GlobalOptions

	StackName string
	Yes       bool
}

func DefaultInfraDownOptions() *InfraDownOptions {
	return &InfraDownOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdInfraDown() *cobra.Command {
	o := DefaultInfraDownOptions()
	cmd := &cobra.Command{
		Use:   "down STACK_NAME",
		Short: "Delete a stack and wait until the deletion completes.",
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

func (o *InfraDownOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.BoolVarP(&o.Yes, "yes", "y", o.Yes, "Delete without asking, even when the cluster is running")
}

func (o *InfraDownOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.StackName = args[0]
	return nil
}

func (o *InfraDownOptions) confirmer() infra.Confirmer {
	if o.Yes {
		return func(string) (bool, error) { return true, nil }
	}
	return ttyConfirm(newPrompter(o.in, o.out))
}

func (o *InfraDownOptions) Run(ctx context.Context, args []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	sess, _, err := o.awsSession(cfg)
	if err != nil {
		return err
	}

	if err := infra.NewStackManager(sess).Teardown(ctx, o.StackName, o.confirmer()); err != nil {
		var aborted *infra.ErrTeardownAborted
		if errors.As(err, &aborted) {
			fmt.Fprintf(o.out, "stack %s was not deleted\n", o.StackName)
		}
		return errors.Wrapf(err, "tearing down %s", o.StackName)
	}
	fmt.Fprintf(o.out, "stack %s deleted\n", o.StackName)
	return nil
}
