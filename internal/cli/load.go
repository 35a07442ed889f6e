package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"emr_etl/internal/tabular"
)

// tableSource names one stored table. Empty fields are asked for
// interactively.
type tableSource struct {
	Bucket string
	Key    string
	Type   string
}

func (s *tableSource) bind(fs *pflag.FlagSet) {
	fs.StringVar(&s.Bucket, "bucket", s.Bucket, "Bucket holding the table")
	fs.StringVar(&s.Key, "key", s.Key, "Object key of the table")
	fs.StringVar(&s.Type, "type", s.Type, "File type: csv, json or parquet")
}

func (s *tableSource) complete(p *prompter) (tabular.Format, error) {
	var err error
	if s.Bucket, err = p.askIfEmpty(s.Bucket, "Enter the bucket name"); err != nil {
		return "", err
	}
	if s.Key, err = p.askIfEmpty(s.Key, "Enter the object key"); err != nil {
		return "", err
	}
	if s.Type, err = p.askIfEmpty(s.Type, "Enter the file type (csv, json, parquet)"); err != nil {
		return "", err
	}
	return tabular.ParseFormat(s.Type)
}

type LoadOptions struct {
	GlobalOptions
	tableSource

	Rows int

	format tabular.Format
}

func DefaultLoadOptions() *LoadOptions {
	return &LoadOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Rows:          5,
	}
}

func NewCmdLoad() *cobra.Command {
	o := DefaultLoadOptions()
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Read a csv, json or parquet table from storage and print its shape.",
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

func (o *LoadOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	o.tableSource.bind(fs)
	fs.IntVar(&o.Rows, "rows", o.Rows, "Number of leading rows to print")
}

func (o *LoadOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	format, err := o.tableSource.complete(newPrompter(o.in, o.out))
	if err != nil {
		return err
	}
	o.format = format
	return nil
}

func (o *LoadOptions) Run(ctx context.Context, args []string) error {
	tables, err := o.tableStore()
	if err != nil {
		return err
	}
	t, err := tables.Read(ctx, o.Bucket, o.Key, o.format)
	if err != nil {
		zap.S().Errorw("failed to load table", "bucket", o.Bucket, "key", o.Key, "format", o.format, "error", err)
		return errors.Wrapf(err, "loading s3://%s/%s", o.Bucket, o.Key)
	}
	printTable(o.out, t, o.Rows)
	return nil
}

func (o *GlobalOptions) tableStore() (*tabular.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	sess, creds, err := o.awsSession(cfg)
	if err != nil {
		return nil, err
	}
	objects, err := o.objectStore(cfg, sess, creds)
	if err != nil {
		return nil, err
	}
	return tabular.NewStore(objects), nil
}

func printTable(w io.Writer, t *tabular.Table, n int) {
	rows, cols := t.Shape()
	fmt.Fprintf(w, "shape: (%d, %d)\n", rows, cols)
	fmt.Fprintln(w, t.Columns)
	for _, row := range t.Head(n) {
		fmt.Fprintln(w, row...)
	}
}
