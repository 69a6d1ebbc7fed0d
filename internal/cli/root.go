// Package cli wires the tab commands. Exit codes are part of the
// contract: 0 success, 2 usage, 3 unsupported format or scheme,
// 4 I/O or corrupt input, 5 query failure.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/internal/ui"
	"github.com/tabarc/tabarc/query"
	"github.com/tabarc/tabarc/storage"
)

var version = "dev"

const (
	exitOK          = 0
	exitUsage       = 2
	exitUnsupported = 3
	exitIO          = 4
	exitQuery       = 5
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("Error:")+" "+err.Error())
		return exitCode(err)
	}
	return exitOK
}

type globalOptions struct {
	azAuthorityIsAccount bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "tab",
		Short:   "Inspect, query, and convert tabular data files",
		Long: `tab works with parquet, avro, csv, tsv, and jsonl datasets on the
local filesystem and on gs://, s3://, and az:// object storage.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&opts.azAuthorityIsAccount, "az-url-authority-is-account", false,
		"treat the az:// URL authority as the storage account rather than the container")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.AddCommand(newViewCmd(opts))
	rootCmd.AddCommand(newSchemaCmd(opts))
	rootCmd.AddCommand(newSummaryCmd(opts))
	rootCmd.AddCommand(newSQLCmd(opts))
	rootCmd.AddCommand(newConvertCmd(opts))

	return rootCmd
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func exactArgs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{err: fmt.Errorf("accepts %d arg(s), received %d", n, len(args))}
		}
		return nil
	}
}

func exitCode(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return exitUsage
	}
	var engine *query.EngineError
	if errors.As(err, &engine) {
		return exitQuery
	}
	var unsupported *formats.UnsupportedTypeError
	if errors.As(err, &unsupported) {
		return exitUnsupported
	}
	switch {
	case errors.Is(err, storage.ErrUnsupportedScheme),
		errors.Is(err, formats.ErrAmbiguousFormat):
		return exitUnsupported
	case errors.Is(err, storage.ErrInvalidPath),
		errors.Is(err, storage.ErrMissingAccountConfiguration):
		return exitUsage
	default:
		return exitIO
	}
}

func (o *globalOptions) config() storage.Config {
	return storage.Config{AzAuthorityIsAccount: o.azAuthorityIsAccount}
}

// connect resolves a raw path argument to a backend and its internal
// path form.
func (o *globalOptions) connect(ctx context.Context, raw string) (storage.Backend, string, error) {
	loc, err := storage.Resolve(raw, o.config())
	if err != nil {
		return nil, "", err
	}
	backend, err := loc.Connect(ctx)
	if err != nil {
		return nil, "", err
	}
	return backend, loc.Path, nil
}

// openSource resolves, connects, and detects the format of an input
// path in one step.
func (o *globalOptions) openSource(ctx context.Context, raw, formatOverride string) (formats.Source, error) {
	backend, path, err := o.connect(ctx, raw)
	if err != nil {
		return formats.Source{}, err
	}
	format, err := formats.Detect(ctx, backend, path, formatOverride)
	if err != nil {
		return formats.Source{}, err
	}
	return formats.Source{Backend: backend, Path: path, Format: format}, nil
}
