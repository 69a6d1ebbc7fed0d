// --------------------------------------------------------------------------------
// This file is part of the tabarc project.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
// --------------------------------------------------------------------------------

package formats

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/tabarc/tabarc/schema"
	"github.com/tabarc/tabarc/storage"
)

const csvChunkSize = 4096

type delimitedReader struct {
	reader *csv.Reader
	source io.ReadCloser
	schema *arrow.Schema
	path   string
}

// newDelimitedReader reads CSV or TSV. Delimited text carries no type
// information, so a bounded sample pass infers the schema first and
// the file is then decoded end to end against it.
func newDelimitedReader(ctx context.Context, backend storage.Backend, path string, delimiter rune, opts schema.InferOptions) (*delimitedReader, error) {
	header, rows, err := sampleDelimited(ctx, backend, path, delimiter, opts)
	if err != nil {
		return nil, err
	}
	inferred := schema.InferFromStrings(header, rows, opts)

	src, err := backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(src, inferred,
		csv.WithChunk(csvChunkSize),
		csv.WithComma(delimiter),
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
	)

	return &delimitedReader{reader: reader, source: src, schema: inferred, path: path}, nil
}

func sampleDelimited(ctx context.Context, backend storage.Backend, path string, delimiter rune, opts schema.InferOptions) ([]string, [][]string, error) {
	src, err := backend.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	r := stdcsv.NewReader(src)
	r.Comma = delimiter
	r.ReuseRecord = false

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, &CorruptError{Path: path, Offset: -1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, nil, wrapParseError(path, err)
	}

	limit := opts.SampleSize()
	rows := make([][]string, 0, limit)
	for len(rows) < limit {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, wrapParseError(path, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func (r *delimitedReader) Read() (arrow.Record, error) {
	if !r.reader.Next() {
		if err := r.reader.Err(); err != nil && err != io.EOF {
			return nil, wrapParseError(r.path, err)
		}
		return nil, io.EOF
	}

	record := r.reader.Record()
	if record == nil {
		return nil, io.EOF
	}

	record.Retain()
	return record, nil
}

func (r *delimitedReader) Schema() *arrow.Schema { return r.schema }

func (r *delimitedReader) Close() error {
	if r.reader != nil {
		r.reader.Release()
	}
	return r.source.Close()
}

// wrapParseError attaches the 1-based line number carried by
// encoding/csv parse errors.
func wrapParseError(path string, err error) error {
	var pe *stdcsv.ParseError
	if errors.As(err, &pe) {
		return &CorruptError{Path: path, Row: int64(pe.Line), Offset: -1, Err: err}
	}
	return &CorruptError{Path: path, Offset: -1, Err: err}
}

type delimitedWriter struct {
	writer *csv.Writer
	schema *arrow.Schema
	wrote  bool
}

func newDelimitedStreamWriter(w io.Writer, sc *arrow.Schema, delimiter rune) (RecordWriter, error) {
	format := CSV
	if delimiter == '\t' {
		format = TSV
	}
	for i := 0; i < sc.NumFields(); i++ {
		f := sc.Field(i)
		switch schema.KindOf(f.Type) {
		case schema.KindNested, schema.KindInvalid:
			return nil, &UnsupportedTypeError{Format: format, Column: f.Name, Type: f.Type}
		}
	}
	writer := csv.NewWriter(w, sc,
		csv.WithComma(delimiter),
		csv.WithHeader(true),
		csv.WithNullWriter(""),
	)
	return &delimitedWriter{writer: writer, schema: sc}, nil
}

func (w *delimitedWriter) Write(record arrow.Record) error {
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write delimited record: %w", err)
	}
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("delimited writer encountered an error: %w", err)
	}
	w.wrote = true
	return nil
}

func (w *delimitedWriter) Close() error {
	if w.writer == nil {
		return nil
	}
	// The header is emitted on the first write, so an all-empty output
	// needs a zero-row batch to stay readable.
	if !w.wrote {
		b := array.NewRecordBuilder(memory.DefaultAllocator, w.schema)
		empty := b.NewRecord()
		err := w.writer.Write(empty)
		empty.Release()
		b.Release()
		if err != nil {
			return err
		}
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.writer.Error()
}

func (w *delimitedWriter) Abort() error { return nil }
