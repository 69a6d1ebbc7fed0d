package cli

import (
	"github.com/spf13/cobra"

	"github.com/tabarc/tabarc/query"
)

func newSQLCmd(opts *globalOptions) *cobra.Command {
	var (
		inputFormat  string
		outputFormat string
		limit        int64
		skip         int64
	)

	cmd := &cobra.Command{
		Use:   "sql <query> <path>",
		Short: "Run a SQL query over a dataset",
		Long: `Run a SQL statement against the dataset, exposed as a table named "t",
and print the result. Example:

  tab sql 'SELECT city, count(*) FROM t GROUP BY city' data.parquet`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := opts.openSource(ctx, args[1], inputFormat)
			if err != nil {
				return err
			}
			reader, err := src.OpenReader(ctx)
			if err != nil {
				return err
			}
			defer reader.Close()

			result, err := query.Run(ctx, reader, args[0])
			if err != nil {
				return err
			}
			defer result.Close()

			if outputFormat != "" {
				return encodeRows(ctx, cmd.OutOrStdout(), result, skip, limit, outputFormat)
			}
			return renderRows(ctx, cmd.OutOrStdout(), result, skip, limit, cmd.Flags().Changed("limit"))
		},
	}

	cmd.Flags().StringVarP(&inputFormat, "input-format", "i", "", "input format override (parquet, avro, csv, tsv, jsonl)")
	cmd.Flags().StringVarP(&outputFormat, "output-format", "o", "", "emit result rows to stdout in this format instead of a table")
	cmd.Flags().Int64Var(&limit, "limit", -1, "maximum result rows to print, -1 for all")
	cmd.Flags().Int64Var(&skip, "skip", 0, "result rows to skip before printing")
	return cmd
}
