package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/query"
	"github.com/tabarc/tabarc/storage"
)

// run executes the CLI against args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"usage", &usageError{err: errors.New("bad flag")}, exitUsage},
		{"invalid path", storage.ErrInvalidPath, exitUsage},
		{"missing account", storage.ErrMissingAccountConfiguration, exitUsage},
		{"unknown scheme", storage.ErrUnsupportedScheme, exitUnsupported},
		{"ambiguous format", formats.ErrAmbiguousFormat, exitUnsupported},
		{"unsupported type", &formats.UnsupportedTypeError{Format: formats.CSV, Column: "xs"}, exitUnsupported},
		{"engine", &query.EngineError{Query: "SELECT 1", Err: errors.New("boom")}, exitQuery},
		{"corrupt", &formats.CorruptError{Path: "x", Err: errors.New("bad magic")}, exitIO},
		{"plain io", errors.New("no such file"), exitIO},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}

func TestResolveOutputFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		flag     string
		dst      string
		fallback formats.Format
		want     formats.Format
		wantErr  bool
	}{
		{"flag wins over extension", "avro", "out.parquet", formats.CSV, formats.Avro, false},
		{"extension when no flag", "", "out.jsonl", formats.CSV, formats.JSONL, false},
		{"fallback when extensionless", "", "out", formats.Parquet, formats.Parquet, false},
		{"bad flag is a usage error", "orc", "out.parquet", formats.CSV, formats.Unknown, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolveOutputFormat(tc.flag, tc.dst, tc.fallback)
			if tc.wantErr {
				var usage *usageError
				require.ErrorAs(t, err, &usage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExactArgs(t *testing.T) {
	t.Parallel()

	check := exactArgs(2)
	require.NoError(t, check(nil, []string{"a", "b"}))

	err := check(nil, []string{"a"})
	var usage *usageError
	require.ErrorAs(t, err, &usage)
	assert.ErrorContains(t, err, "accepts 2 arg(s), received 1")
}

func TestViewCommand(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "city,temp\nOslo,-3\nLagos,31\n")
	out, err := run(t, "view", path)
	require.NoError(t, err)
	assert.Contains(t, out, "city")
	assert.Contains(t, out, "Oslo")
	assert.Contains(t, out, "Lagos")
	assert.NotContains(t, out, "truncated")
}

func TestViewLimitAndSkip(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "v\n1\n2\n3\n4\n")
	out, err := run(t, "view", path, "--limit", "2", "--skip", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2")
	assert.Contains(t, out, "3")
	assert.NotContains(t, out, "4")
	// An explicit limit is a choice, not a surprise, so no notice.
	assert.NotContains(t, out, "truncated")
}

func TestViewDefaultLimitNotice(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("v\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	path := writeCSV(t, sb.String())
	out, err := run(t, "view", path)
	require.NoError(t, err)
	assert.Contains(t, out, "truncated after 10 rows")
}

func TestViewOutputFormat(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id,name\n1,alpha\n2,beta\n")
	out, err := run(t, "view", path, "-o", "jsonl")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, `"id"`)
	assert.NotContains(t, out, "---", "encoded output has no table rule")
}

func TestViewOutputFormatStreamsAllRows(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("v\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	path := writeCSV(t, sb.String())
	out, err := run(t, "view", path, "-o", "jsonl")
	require.NoError(t, err)
	// The implicit 10-row limit only applies to the table render.
	assert.Equal(t, 25, strings.Count(out, "\n"))
	assert.Contains(t, out, "24")
}

func TestViewBadOutputFormat(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id\n1\n")
	_, err := run(t, "view", path, "-o", "orc")
	var usage *usageError
	require.ErrorAs(t, err, &usage)
}

func TestSchemaCommand(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id,name\n1,alpha\n")
	out, err := run(t, "schema", path)
	require.NoError(t, err)
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "int64")
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "string")
}

func TestSummaryCommand(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id\n1\n2\n3\n")
	out, err := run(t, "summary", path)
	require.NoError(t, err)
	assert.Contains(t, out, "csv")
	assert.Contains(t, out, "3")
}

func TestConvertCommand(t *testing.T) {
	t.Parallel()

	src := writeCSV(t, "id,name\n1,alpha\n2,beta\n")
	dst := filepath.Join(t.TempDir(), "out.jsonl")

	out, err := run(t, "convert", src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alpha")
	assert.Contains(t, string(data), `"name"`)
}

func TestConvertToStdoutRequiresFormat(t *testing.T) {
	t.Parallel()

	src := writeCSV(t, "id\n1\n")
	_, err := run(t, "convert", src, "-")
	var usage *usageError
	require.ErrorAs(t, err, &usage)
	assert.ErrorContains(t, err, "requires -o")
}

func TestConvertToStdout(t *testing.T) {
	t.Parallel()

	src := writeCSV(t, "id\n7\n")
	out, err := run(t, "convert", src, "-", "-o", "jsonl")
	require.NoError(t, err)
	assert.Contains(t, out, `"id"`)
	assert.Contains(t, out, "7")
}

func TestConvertPartitioned(t *testing.T) {
	t.Parallel()

	src := writeCSV(t, "v\n1\n2\n3\n4\n5\n6\n")
	dstDir := filepath.Join(t.TempDir(), "parts")

	_, err := run(t, "convert", src, dstDir, "-n", "3")
	require.NoError(t, err)

	entries, err := os.ReadDir(dstDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "part-00000.csv", entries[0].Name())
	assert.Equal(t, "part-00002.csv", entries[2].Name())
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	t.Parallel()

	_, err := run(t, "view", "--no-such-flag", "x")
	var usage *usageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestMissingFileIsIOError(t *testing.T) {
	t.Parallel()

	_, err := run(t, "view", filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Equal(t, exitIO, exitCode(err))
}
