package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"emr_etl/internal/store"
)

type HistoryOptions struct {
	GlobalOptions
}

func DefaultHistoryOptions() *HistoryOptions {
	return &HistoryOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdHistory() *cobra.Command {
	o := DefaultHistoryOptions()
	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List recorded runs, or the steps of one run.",
		Args:  cobra.MaximumNArgs(1),
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

func (o *HistoryOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.settings.AuditDB == "" {
		return errors.New("ETL_AUDIT_DB is not set, no runs are recorded")
	}
	return nil
}

func (o *HistoryOptions) Run(ctx context.Context, args []string) error {
	db, err := store.InitDatabase(o.settings.AuditDB)
	if err != nil {
		return errors.Wrap(err, "opening audit database")
	}
	defer db.Close()
	ledger := store.NewLedger(db, db)

	if len(args) == 1 {
		return printRun(ctx, o.out, ledger, args[0])
	}
	runs, err := ledger.ListRuns(ctx)
	if err != nil {
		return errors.Wrap(err, "listing runs")
	}
	for _, r := range runs {
		fmt.Fprintf(o.out, "%s  %s  %-20s %s\n", r.RunID, r.CreatedOn.Format("2006-01-02 15:04:05"), r.ClusterID, r.ConfigPath)
	}
	return nil
}

func printRun(ctx context.Context, w io.Writer, ledger *store.Ledger, runID string) error {
	run, err := ledger.ReadRun(ctx, runID)
	if err != nil {
		return errors.Wrapf(err, "reading run %s", runID)
	}
	subs, err := ledger.ListSubmissions(ctx, runID)
	if err != nil {
		return errors.Wrapf(err, "listing steps of run %s", runID)
	}
	fmt.Fprintf(w, "run %s on cluster %s (%s)\n", run.RunID, run.ClusterID, run.ConfigPath)
	for _, s := range subs {
		fmt.Fprintf(w, "%d. %-24s %-10s %s\n", s.StepIndex+1, s.StepName, s.Status, s.JobID)
		fmt.Fprintf(w, "   %s -> %s\n", s.InputLocation, s.OutputLocation)
	}
	return nil
}
