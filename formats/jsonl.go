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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"

	"github.com/tabarc/tabarc/internal/json"
	"github.com/tabarc/tabarc/schema"
	"github.com/tabarc/tabarc/storage"
)

const (
	jsonlChunkSize     = 1024
	jsonlMaxLineLength = 16 * 1024 * 1024
)

type jsonlReader struct {
	reader *array.JSONReader
	source io.ReadCloser
	schema *arrow.Schema
	path   string
}

// newJSONLReader reads line-delimited JSON. Like delimited text, JSONL
// carries no schema, so a bounded sample pass infers one; column order
// follows the key order of the first line.
func newJSONLReader(ctx context.Context, backend storage.Backend, path string, opts schema.InferOptions) (*jsonlReader, error) {
	keys, rows, err := sampleJSONL(ctx, backend, path, opts)
	if err != nil {
		return nil, err
	}
	inferred, err := schema.InferFromJSONRows(keys, rows, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	src, err := backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	reader := array.NewJSONReader(src, inferred, array.WithChunk(jsonlChunkSize))

	return &jsonlReader{reader: reader, source: src, schema: inferred, path: path}, nil
}

func sampleJSONL(ctx context.Context, backend storage.Backend, path string, opts schema.InferOptions) ([]string, []map[string]interface{}, error) {
	src, err := backend.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), jsonlMaxLineLength)

	var keys []string
	limit := opts.SampleSize()
	rows := make([]map[string]interface{}, 0, limit)
	line := int64(0)
	for len(rows) < limit && scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if keys == nil {
			if keys, err = orderedKeys(raw); err != nil {
				return nil, nil, &CorruptError{Path: path, Row: line, Offset: -1, Err: err}
			}
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row map[string]interface{}
		if err := dec.Decode(&row); err != nil {
			return nil, nil, &CorruptError{Path: path, Row: line, Offset: -1, Err: err}
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if keys == nil {
		return nil, nil, &CorruptError{Path: path, Offset: -1, Err: errors.New("no rows to infer a schema from")}
	}
	return keys, rows, nil
}

// orderedKeys walks the tokens of one JSON object to recover its key
// order, which a plain map decode would lose.
func orderedKeys(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("line is not a JSON object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("malformed object key")
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (r *jsonlReader) Read() (arrow.Record, error) {
	if !r.reader.Next() {
		if err := r.reader.Err(); err != nil && err != io.EOF {
			return nil, &CorruptError{Path: r.path, Offset: -1, Err: err}
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

func (r *jsonlReader) Schema() *arrow.Schema { return r.schema }

func (r *jsonlReader) Close() error {
	if r.reader != nil {
		r.reader.Release()
	}
	return r.source.Close()
}

type jsonlWriter struct {
	w *bufio.Writer
}

// newJSONLStreamWriter emits one JSON object per row, in column order,
// via the batch's own JSON encoding.
func newJSONLStreamWriter(w io.Writer, sc *arrow.Schema) (RecordWriter, error) {
	for i := 0; i < sc.NumFields(); i++ {
		f := sc.Field(i)
		if schema.KindOf(f.Type) == schema.KindInvalid {
			return nil, &UnsupportedTypeError{Format: JSONL, Column: f.Name, Type: f.Type}
		}
	}
	return &jsonlWriter{w: bufio.NewWriter(w)}, nil
}

func (j *jsonlWriter) Write(record arrow.Record) error {
	data, err := record.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal batch to JSON: %w", err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to split batch JSON: %w", err)
	}
	for _, row := range rows {
		if _, err := j.w.Write(row); err != nil {
			return err
		}
		if err := j.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (j *jsonlWriter) Close() error { return j.w.Flush() }

func (j *jsonlWriter) Abort() error { return nil }
