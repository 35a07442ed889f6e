package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"emr_etl/internal/tabular"
)

type StandardizeOptions struct {
	GlobalOptions
	tableSource

	DestinationBucket string
	DestinationPrefix string
	Name              string
	// All converts every table under Prefix instead of a single object.
	All    bool
	Prefix string

	format tabular.Format
}

func DefaultStandardizeOptions() *StandardizeOptions {
	return &StandardizeOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdStandardize() *cobra.Command {
	o := DefaultStandardizeOptions()
	cmd := &cobra.Command{
		Use:   "standardize",
		Short: "Convert stored tables to JSON records.",
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

func (o *StandardizeOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	o.tableSource.bind(fs)
	fs.StringVar(&o.DestinationBucket, "dest-bucket", o.DestinationBucket, "Bucket the records are written to, defaults to --bucket")
	fs.StringVar(&o.DestinationPrefix, "dest-prefix", o.DestinationPrefix, "Key prefix the records are written under")
	fs.StringVar(&o.Name, "name", o.Name, "File name of the records, defaults to the source file name")
	fs.BoolVar(&o.All, "all", o.All, "Convert every csv, json and parquet object under --prefix")
	fs.StringVar(&o.Prefix, "prefix", o.Prefix, "Source key prefix used with --all")
}

func (o *StandardizeOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	if o.All {
		return nil
	}
	format, err := o.tableSource.complete(newPrompter(o.in, o.out))
	if err != nil {
		return err
	}
	o.format = format
	if o.Name == "" {
		o.Name = path.Base(o.Key)
	}
	return nil
}

func (o *StandardizeOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.All && o.Bucket == "" {
		return errors.New("--bucket is required with --all")
	}
	return nil
}

func (o *StandardizeOptions) destinationBucket() string {
	if o.DestinationBucket != "" {
		return o.DestinationBucket
	}
	return o.Bucket
}

func (o *StandardizeOptions) Run(ctx context.Context, args []string) error {
	tables, err := o.tableStore()
	if err != nil {
		return err
	}

	if o.All {
		stats, err := tables.StandardizeAll(ctx, o.Bucket, o.Prefix, o.destinationBucket(), o.DestinationPrefix)
		if err != nil {
			return errors.Wrapf(err, "listing s3://%s/%s", o.Bucket, o.Prefix)
		}
		b, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(o.out, string(b))
		if stats.FilesFailed > 0 {
			return errors.Errorf("%d of %d tables failed", stats.FilesFailed, stats.TotalFilesFound-stats.FilesSkipped)
		}
		return nil
	}

	t, err := tables.Read(ctx, o.Bucket, o.Key, o.format)
	if err != nil {
		return errors.Wrapf(err, "loading s3://%s/%s", o.Bucket, o.Key)
	}
	loc, err := tables.Standardize(ctx, t, o.destinationBucket(), o.DestinationPrefix, o.Name)
	if err != nil {
		return errors.Wrap(err, "uploading records")
	}
	rows, _ := t.Shape()
	fmt.Fprintf(o.out, "%d rows written to %s\n", rows, loc)
	return nil
}
