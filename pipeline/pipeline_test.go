package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/internal/testutil"
	"github.com/tabarc/tabarc/pipeline"
	"github.com/tabarc/tabarc/storage"
)

func intSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "v", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
}

// writeCSVSource writes rows 0..n-1 as a single CSV file split into
// uneven batches and returns its source.
func writeCSVSource(t *testing.T, n int) formats.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")

	var b strings.Builder
	b.WriteString("v\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	return formats.Source{Backend: storage.NewLocalBackend(), Path: path, Format: formats.CSV}
}

func TestRunMovesAllRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	out := filepath.Join(t.TempDir(), "out.csv")

	schema := intSchema()
	rec := testutil.RecordFromJSON(t, schema, `[{"v": 1}, {"v": 2}, {"v": 3}]`)
	src := testutil.NewReader(schema, rec, rec)
	defer src.Close()

	sink := formats.Sink{Backend: backend, Path: out, Format: formats.CSV}
	w, err := sink.OpenWriter(ctx, schema)
	require.NoError(t, err)

	res, err := pipeline.Run(ctx, src, w)
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Rows)
	assert.Positive(t, res.Bytes)

	read := formats.Source{Backend: backend, Path: out, Format: formats.CSV}
	r, err := read.OpenReader(ctx)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, testutil.ReadRows(t, r), 6)
}

type failingWriter struct {
	aborted bool
}

func (w *failingWriter) Write(arrow.Record) error { return errors.New("disk full") }
func (w *failingWriter) Close() error             { return nil }
func (w *failingWriter) Abort() error             { w.aborted = true; return nil }

func TestRunAbortsOnWriteError(t *testing.T) {
	t.Parallel()

	schema := intSchema()
	rec := testutil.RecordFromJSON(t, schema, `[{"v": 1}]`)
	src := testutil.NewReader(schema, rec, rec, rec)
	defer src.Close()

	dst := &failingWriter{}
	_, err := pipeline.Run(context.Background(), src, dst)
	require.ErrorContains(t, err, "disk full")
	assert.True(t, dst.aborted)
}

func TestPartName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "part-00000.parquet", pipeline.PartName(0, formats.Parquet))
	assert.Equal(t, "part-00042.jsonl", pipeline.PartName(42, formats.JSONL))
}

func TestRunPartitionedRejectsBadCount(t *testing.T) {
	t.Parallel()

	src := writeCSVSource(t, 3)
	dst := formats.Sink{Backend: src.Backend, Path: t.TempDir(), Format: formats.CSV}
	_, err := pipeline.RunPartitioned(context.Background(), src, dst, 0)
	require.ErrorContains(t, err, "at least 1")
}

func TestRunPartitionedSplitsEvenly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeCSVSource(t, 13)
	outDir := filepath.Join(t.TempDir(), "out")
	dst := formats.Sink{Backend: src.Backend, Path: outDir, Format: formats.CSV}

	res, err := pipeline.RunPartitioned(ctx, src, dst, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(13), res.Rows)
	assert.Equal(t, 4, res.Partitions)

	// cuts at 0,3,6,9,13: the remainder lands in the last part.
	wantSizes := []int{3, 3, 3, 4}
	next := 0
	for i, want := range wantSizes {
		part := formats.Source{
			Backend: src.Backend,
			Path:    filepath.Join(outDir, pipeline.PartName(i, formats.CSV)),
			Format:  formats.CSV,
		}
		r, err := part.OpenReader(ctx)
		require.NoError(t, err)
		rows := testutil.ReadRows(t, r)
		require.NoError(t, r.Close())

		require.Len(t, rows, want, "part %d", i)
		for _, row := range rows {
			assert.Equal(t, fmt.Sprintf("%d", next), row[0], "parts must preserve input order")
			next++
		}
	}
	assert.Equal(t, 13, next)
}

func TestRunPartitionedMorePartsThanRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeCSVSource(t, 2)
	outDir := filepath.Join(t.TempDir(), "out")
	dst := formats.Sink{Backend: src.Backend, Path: outDir, Format: formats.CSV}

	res, err := pipeline.RunPartitioned(ctx, src, dst, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Rows)

	// Every partition writes a file, even the empty ones.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	total := 0
	for i := 0; i < 5; i++ {
		part := formats.Source{
			Backend: src.Backend,
			Path:    filepath.Join(outDir, pipeline.PartName(i, formats.CSV)),
			Format:  formats.CSV,
		}
		n, err := part.CountRows(ctx)
		require.NoError(t, err)
		total += int(n)
	}
	assert.Equal(t, 2, total)
}

func TestRunPartitionedReadBackAsDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeCSVSource(t, 10)
	outDir := filepath.Join(t.TempDir(), "out")
	dst := formats.Sink{Backend: src.Backend, Path: outDir, Format: formats.CSV}

	_, err := pipeline.RunPartitioned(ctx, src, dst, 3)
	require.NoError(t, err)

	back := formats.Source{Backend: src.Backend, Path: outDir, Format: formats.CSV}
	r, err := back.OpenReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	rows := testutil.ReadRows(t, r)
	require.Len(t, rows, 10)
	for i, row := range rows {
		assert.Equal(t, fmt.Sprintf("%d", i), row[0])
	}
}
