package ui

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/stretchr/testify/assert"

	"github.com/tabarc/tabarc/formats"
)

func TestHumanSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, HumanSize(tc.in))
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	RenderTable(&buf, []string{"id", "name"}, [][]string{
		{"1", "alpha"},
		{"22", "b"},
	}, "")

	out := buf.String()
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "22")
	assert.NotContains(t, out, "truncated")
}

func TestRenderTableNotice(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	RenderTable(&buf, []string{"v"}, [][]string{{"1"}}, "output truncated after 1 rows")
	assert.Contains(t, buf.String(), "output truncated after 1 rows")
}

func TestRenderSchema(t *testing.T) {
	t.Parallel()

	sc := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	var buf bytes.Buffer
	RenderSchema(&buf, sc)
	out := buf.String()
	assert.Contains(t, out, "column")
	assert.Contains(t, out, "int64")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "false")
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	sum := &formats.Summary{
		Format:     formats.Parquet,
		FileSize:   2048,
		Rows:       100,
		Columns:    4,
		Partitions: 3,
		Extra:      []formats.SummaryItem{{Key: "Row groups", Value: "6"}},
	}

	var buf bytes.Buffer
	RenderSummary(&buf, "gs://bucket/data", sum)
	out := buf.String()
	assert.Contains(t, out, "gs://bucket/data")
	assert.Contains(t, out, "parquet")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "Partitions")
	assert.Contains(t, out, "Row groups")
}
