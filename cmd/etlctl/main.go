package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"emr_etl/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := NewETLCtlCommand()
	err := command.ExecuteContext(ctx)
	_ = zap.L().Sync()
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func NewETLCtlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "etlctl [flags] [options]",
		Short: "etlctl validates, stages and runs chained ETL transformations on EMR.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdValidate())
	cmd.AddCommand(cli.NewCmdRun())
	cmd.AddCommand(cli.NewCmdInfra())
	cmd.AddCommand(cli.NewCmdStack())
	cmd.AddCommand(cli.NewCmdLoad())
	cmd.AddCommand(cli.NewCmdStandardize())
	cmd.AddCommand(cli.NewCmdHistory())

	return cmd
}
