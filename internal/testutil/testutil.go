// Package testutil builds small in-memory datasets for tests.
package testutil

import (
	"io"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/tabarc/tabarc/internal/arrio"
)

// RecordFromJSON builds one record batch from a JSON array literal.
// The batch is released by t.Cleanup; callers must not release it.
func RecordFromJSON(t *testing.T, schema *arrow.Schema, data string) arrow.Record {
	t.Helper()
	rec, _, err := array.RecordFromJSON(memory.DefaultAllocator, schema, strings.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return rec
}

// ReadRows drains a reader into a row-major string matrix, rendering
// nulls as empty strings. The reader is not closed.
func ReadRows(t *testing.T, r arrio.Reader) [][]string {
	t.Helper()
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]string, rec.NumCols())
			for c := range row {
				col := rec.Column(c)
				if !col.IsNull(i) {
					row[c] = col.ValueStr(i)
				}
			}
			rows = append(rows, row)
		}
		rec.Release()
	}
}

// NewReader exposes pre-built batches as a record stream. Each batch
// is retained on construction so the stream owns its own references.
func NewReader(schema *arrow.Schema, records ...arrow.Record) arrio.RecordReader {
	for _, rec := range records {
		rec.Retain()
	}
	return &memReader{schema: schema, records: records}
}

type memReader struct {
	schema  *arrow.Schema
	records []arrow.Record
	next    int
	closed  bool
}

func (m *memReader) Read() (arrow.Record, error) {
	if m.next >= len(m.records) {
		return nil, io.EOF
	}
	rec := m.records[m.next]
	m.next++
	rec.Retain()
	return rec, nil
}

func (m *memReader) Schema() *arrow.Schema { return m.schema }

func (m *memReader) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for _, rec := range m.records {
		rec.Release()
	}
	return nil
}
