package formats_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/internal/testutil"
	"github.com/tabarc/tabarc/storage"
)

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
}

const testRows = `[
	{"id": 1, "name": "alpha", "score": 0.5},
	{"id": 2, "name": "beta", "score": 1.25},
	{"id": 3, "name": null, "score": 2}
]`

// writeDataset writes the canonical test batch as one file of the
// given format and returns its source for reading back.
func writeDataset(t *testing.T, format formats.Format) formats.Source {
	t.Helper()
	ctx := context.Background()
	backend := storage.NewLocalBackend()
	path := filepath.Join(t.TempDir(), "data"+format.Extension())

	schema := testSchema()
	rec := testutil.RecordFromJSON(t, schema, testRows)

	sink := formats.Sink{Backend: backend, Path: path, Format: format}
	w, err := sink.OpenWriter(ctx, schema)
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	return formats.Source{Backend: backend, Path: path, Format: format}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []formats.Format{formats.Parquet, formats.Avro, formats.CSV, formats.TSV, formats.JSONL} {
		format := format
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			src := writeDataset(t, format)

			r, err := src.OpenReader(ctx)
			require.NoError(t, err)
			defer r.Close()

			require.Equal(t, 3, r.Schema().NumFields())
			for i, name := range []string{"id", "name", "score"} {
				assert.Equal(t, name, r.Schema().Field(i).Name)
			}

			rows := testutil.ReadRows(t, r)
			require.Len(t, rows, 3)
			assert.Equal(t, "1", rows[0][0])
			assert.Equal(t, "alpha", rows[0][1])
			assert.Equal(t, "2", rows[1][0])
			assert.Equal(t, "beta", rows[1][1])
			assert.Equal(t, "3", rows[2][0])
			assert.Equal(t, "", rows[2][1], "null must survive the round trip")

			n, err := src.CountRows(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)
		})
	}
}

func TestTruncatedParquetIsCorrupt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	path := filepath.Join(t.TempDir(), "broken.parquet")
	require.NoError(t, os.WriteFile(path, []byte("PAR1 this is not a parquet footer"), 0o644))

	src := formats.Source{Backend: backend, Path: path, Format: formats.Parquet}
	_, err := src.OpenReader(ctx)
	var corrupt *formats.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)
}

func TestCSVParseErrorCarriesRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,\"unterminated\n"), 0o644))

	src := formats.Source{Backend: backend, Path: path, Format: formats.CSV}
	_, err := src.OpenReader(ctx)
	var corrupt *formats.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, int64(2), corrupt.Row)
}

func TestEmptyCSVIsCorrupt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	src := formats.Source{Backend: backend, Path: path, Format: formats.CSV}
	_, err := src.OpenReader(ctx)
	var corrupt *formats.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.ErrorContains(t, err, "header")
}

func TestJSONLInference(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"city": "Oslo", "temp": -3, "windy": true}
{"city": "Lagos", "temp": 31.5, "windy": false}
{"city": "Lima", "temp": 18}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src := formats.Source{Backend: backend, Path: path, Format: formats.JSONL}
	r, err := src.OpenReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	sc := r.Schema()
	require.Equal(t, 3, sc.NumFields())
	assert.Equal(t, "city", sc.Field(0).Name)
	assert.Equal(t, arrow.BinaryTypes.String, sc.Field(0).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, sc.Field(1).Type, "ints widen to float")
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, sc.Field(2).Type)

	rows := testutil.ReadRows(t, r)
	require.Len(t, rows, 3)
	assert.Equal(t, "Oslo", rows[0][0])
	assert.Equal(t, "", rows[2][2], "missing key reads as null")
}

func TestUnsupportedTypes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	nested := arrow.NewSchema([]arrow.Field{
		{Name: "xs", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64), Nullable: true},
	}, nil)

	for _, format := range []formats.Format{formats.Avro, formats.CSV, formats.TSV} {
		format := format
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			sink := formats.Sink{
				Backend: backend,
				Path:    filepath.Join(t.TempDir(), "out"+format.Extension()),
				Format:  format,
			}
			_, err := sink.OpenWriter(ctx, nested)
			var unsupported *formats.UnsupportedTypeError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, "xs", unsupported.Column)
		})
	}
}

func TestDirectoryReadConcatenatesParts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "part-00000.csv"), []byte("v\n1\n2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "part-00001.csv"), []byte("v\n3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("notes"), 0o644))

	src := formats.Source{Backend: backend, Path: dir, Format: formats.CSV}
	r, err := src.OpenReader(ctx)
	require.NoError(t, err)
	defer r.Close()

	rows := testutil.ReadRows(t, r)
	require.Len(t, rows, 3)
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"3"}}, rows)

	n, err := src.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAbortedWriteLeavesNoFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := storage.NewLocalBackend()
	dir := t.TempDir()
	path := filepath.Join(dir, "out.parquet")

	schema := testSchema()
	sink := formats.Sink{Backend: backend, Path: path, Format: formats.Parquet}
	w, err := sink.OpenWriter(ctx, schema)
	require.NoError(t, err)

	rec := testutil.RecordFromJSON(t, schema, testRows)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// closeRecorder remembers whether anyone closed it.
type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestStreamWriterLeavesDestinationOpen(t *testing.T) {
	t.Parallel()

	// The parquet encoder closes its sink when it can; the destination
	// lifecycle belongs to the caller, not the encoder.
	dst := &closeRecorder{}
	schema := testSchema()
	w, err := formats.NewStreamWriter(formats.Parquet, dst, schema)
	require.NoError(t, err)

	rec := testutil.RecordFromJSON(t, schema, testRows)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	assert.False(t, dst.closed)
	assert.NotZero(t, dst.Len())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := writeDataset(t, formats.Parquet)

	sum, err := formats.Summarize(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, formats.Parquet, sum.Format)
	assert.Equal(t, int64(3), sum.Rows)
	assert.Equal(t, 3, sum.Columns)
	assert.Positive(t, sum.FileSize)
	assert.Zero(t, sum.Partitions)
	require.NotEmpty(t, sum.Extra)
	assert.Equal(t, "Row groups", sum.Extra[0].Key)
	assert.Equal(t, "snappy", sum.Extra[1].Value)
}
