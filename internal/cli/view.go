package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/internal/arrio"
	"github.com/tabarc/tabarc/internal/ui"
)

const defaultViewLimit = 10

func newViewCmd(opts *globalOptions) *cobra.Command {
	var (
		inputFormat  string
		outputFormat string
		limit        int64
		skip         int64
	)

	cmd := &cobra.Command{
		Use:   "view <path>",
		Short: "Print rows of a dataset as an aligned table",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := opts.openSource(ctx, args[0], inputFormat)
			if err != nil {
				return err
			}
			reader, err := src.OpenReader(ctx)
			if err != nil {
				return err
			}
			defer reader.Close()

			limitSet := cmd.Flags().Changed("limit")
			if outputFormat != "" {
				// Encoded output streams everything unless the user
				// asked for a slice.
				if !limitSet {
					limit = -1
				}
				return encodeRows(ctx, cmd.OutOrStdout(), reader, skip, limit, outputFormat)
			}
			return renderRows(ctx, cmd.OutOrStdout(), reader, skip, limit, limitSet)
		},
	}

	cmd.Flags().StringVarP(&inputFormat, "input-format", "i", "", "input format override (parquet, avro, csv, tsv, jsonl)")
	cmd.Flags().StringVarP(&outputFormat, "output-format", "o", "", "emit rows to stdout in this format instead of a table")
	cmd.Flags().Int64Var(&limit, "limit", defaultViewLimit, "maximum rows to print, -1 for all")
	cmd.Flags().Int64Var(&skip, "skip", 0, "rows to skip before printing")
	return cmd
}

// encodeRows streams the sliced rows to w in the requested encoding
// instead of rendering a table.
func encodeRows(ctx context.Context, w io.Writer, reader arrio.RecordReader, skip, limit int64, format string) error {
	f, err := formats.ParseFormat(format)
	if err != nil {
		return &usageError{err: err}
	}
	writer, err := formats.NewStreamWriter(f, w, reader.Schema())
	if err != nil {
		return err
	}
	if _, err := arrio.Copy(ctx, writer, arrio.NewSliceReader(reader, skip, limit)); err != nil {
		return err
	}
	return writer.Close()
}

// renderRows prints up to limit rows of the stream after skipping skip
// rows. One extra row is fetched to decide whether to print the
// truncation notice; the notice only appears when the limit was the
// implicit default, not one the user chose.
func renderRows(ctx context.Context, w io.Writer, reader arrio.RecordReader, skip, limit int64, limitSet bool) error {
	fetch := limit
	if limit >= 0 {
		fetch = limit + 1
	}
	records, err := arrio.ReadAll(ctx, arrio.NewSliceReader(reader, skip, fetch))
	if err != nil {
		return err
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	schema := reader.Schema()
	headers := make([]string, schema.NumFields())
	for i := range headers {
		headers[i] = schema.Field(i).Name
	}

	var rows [][]string
	for _, rec := range records {
		for r := 0; r < int(rec.NumRows()); r++ {
			row := make([]string, len(headers))
			for c := range row {
				row[c] = formats.FormatValue(rec.Column(c), r)
			}
			rows = append(rows, row)
		}
	}

	notice := ""
	if limit >= 0 && int64(len(rows)) > limit {
		rows = rows[:limit]
		if !limitSet {
			notice = fmt.Sprintf("output truncated after %d rows, use --limit to show more", limit)
		}
	}

	ui.RenderTable(w, headers, rows, notice)
	return nil
}
