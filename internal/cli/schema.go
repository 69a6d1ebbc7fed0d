package cli

import (
	"github.com/spf13/cobra"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/internal/ui"
	"github.com/tabarc/tabarc/schema"
)

func newSchemaCmd(opts *globalOptions) *cobra.Command {
	var inputFormat string

	cmd := &cobra.Command{
		Use:   "schema <path>",
		Short: "Print the canonical schema of a dataset",
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

			normalized, err := schema.Normalize(reader.Schema())
			if err != nil {
				return err
			}
			ui.RenderSchema(cmd.OutOrStdout(), normalized)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFormat, "input-format", "i", "", "input format override (parquet, avro, csv, tsv, jsonl)")
	return cmd
}

func newSummaryCmd(opts *globalOptions) *cobra.Command {
	var inputFormat string

	cmd := &cobra.Command{
		Use:   "summary <path>",
		Short: "Print size, row count, and layout of a dataset",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := opts.openSource(ctx, args[0], inputFormat)
			if err != nil {
				return err
			}
			sum, err := formats.Summarize(ctx, src)
			if err != nil {
				return err
			}
			ui.RenderSummary(cmd.OutOrStdout(), args[0], sum)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFormat, "input-format", "i", "", "input format override (parquet, avro, csv, tsv, jsonl)")
	return cmd
}
