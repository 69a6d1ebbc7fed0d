package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/internal/ui"
	"github.com/tabarc/tabarc/pipeline"
)

const timeUnit = time.Millisecond

func newConvertCmd(opts *globalOptions) *cobra.Command {
	var (
		inputFormat  string
		outputFormat string
		partitions   int
	)

	cmd := &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Convert a dataset to another format or layout",
		Long: `Convert a dataset to another format. The output format comes from -o
when given, otherwise from the destination extension, otherwise the
input format is kept. With -n the output is a directory of part files
whose name order reproduces the input row order. A destination of "-"
streams to stdout and requires -o.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := opts.openSource(ctx, args[0], inputFormat)
			if err != nil {
				return err
			}

			if args[1] == "-" {
				return convertToStream(cmd, opts, src, outputFormat)
			}

			backend, dstPath, err := opts.connect(ctx, args[1])
			if err != nil {
				return err
			}
			outFmt, err := resolveOutputFormat(outputFormat, dstPath, src.Format)
			if err != nil {
				return err
			}
			sink := formats.Sink{Backend: backend, Path: dstPath, Format: outFmt}

			var res *pipeline.Result
			if partitions > 0 {
				res, err = pipeline.RunPartitioned(ctx, src, sink, partitions)
			} else {
				res, err = convertSingle(cmd, src, sink)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %d rows to %s in %s\n",
				ui.KeyStyle.Render("wrote"), res.Rows, args[1], res.Duration.Round(timeUnit))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFormat, "input-format", "i", "", "input format override (parquet, avro, csv, tsv, jsonl)")
	cmd.Flags().StringVarP(&outputFormat, "output-format", "o", "", "output format (parquet, avro, csv, tsv, jsonl)")
	cmd.Flags().IntVarP(&partitions, "partitions", "n", 0, "split the output into this many part files")
	return cmd
}

func convertSingle(cmd *cobra.Command, src formats.Source, sink formats.Sink) (*pipeline.Result, error) {
	ctx := cmd.Context()
	reader, err := src.OpenReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	writer, err := sink.OpenWriter(ctx, reader.Schema())
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, reader, writer)
}

func convertToStream(cmd *cobra.Command, opts *globalOptions, src formats.Source, outputFormat string) error {
	if outputFormat == "" {
		return &usageError{err: errors.New("writing to stdout requires -o")}
	}
	outFmt, err := formats.ParseFormat(outputFormat)
	if err != nil {
		return &usageError{err: err}
	}

	ctx := cmd.Context()
	reader, err := src.OpenReader(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := formats.NewStreamWriter(outFmt, cmd.OutOrStdout(), reader.Schema())
	if err != nil {
		return err
	}
	_, err = pipeline.Run(ctx, reader, writer)
	return err
}

// resolveOutputFormat applies the precedence: explicit -o, destination
// extension, then the source format. A bad -o is a usage error; an
// extensionless destination simply keeps the input encoding.
func resolveOutputFormat(flag, dstPath string, fallback formats.Format) (formats.Format, error) {
	if flag != "" {
		f, err := formats.ParseFormat(flag)
		if err != nil {
			return formats.Unknown, &usageError{err: err}
		}
		return f, nil
	}
	if f, err := formats.DetectPath(dstPath); err == nil {
		return f, nil
	}
	return fallback, nil
}
