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
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/avro"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/hamba/avro/v2/ocf"

	"github.com/tabarc/tabarc/internal/json"
	"github.com/tabarc/tabarc/storage"
)

const avroChunkSize = 4096

type avroReader struct {
	reader *avro.OCFReader
	source io.ReadCloser
	schema *arrow.Schema
	path   string
}

func newAvroReader(ctx context.Context, backend storage.Backend, path string) (*avroReader, error) {
	src, err := backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	ocfReader, err := avro.NewOCFReader(src,
		avro.WithAllocator(memory.DefaultAllocator),
		avro.WithChunk(avroChunkSize))
	if err != nil {
		src.Close()
		return nil, &CorruptError{Path: path, Offset: -1, Err: err}
	}

	return &avroReader{
		reader: ocfReader,
		source: src,
		schema: ocfReader.Schema(),
		path:   path,
	}, nil
}

func (r *avroReader) Read() (arrow.Record, error) {
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

func (r *avroReader) Schema() *arrow.Schema { return r.schema }

func (r *avroReader) Close() error {
	if r.reader != nil {
		r.reader.Release()
	}
	return r.source.Close()
}

type avroWriter struct {
	enc    *ocf.Encoder
	schema *arrow.Schema
	closed bool
}

// newAvroStreamWriter encodes records as an Avro object container file.
// The arrow schema is translated to an Avro record schema up front;
// columns without a lossless Avro mapping are rejected before any
// bytes are written.
func newAvroStreamWriter(w io.Writer, schema *arrow.Schema) (RecordWriter, error) {
	avroSchema, err := avroSchemaFor(schema)
	if err != nil {
		return nil, err
	}
	enc, err := ocf.NewEncoder(avroSchema, w, ocf.WithCodec(ocf.Snappy))
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro encoder: %w", err)
	}
	return &avroWriter{enc: enc, schema: schema}, nil
}

func (a *avroWriter) Write(record arrow.Record) error {
	nCols := int(record.NumCols())
	for row := 0; row < int(record.NumRows()); row++ {
		out := make(map[string]interface{}, nCols)
		for col := 0; col < nCols; col++ {
			v, err := goValue(record.Column(col), row)
			if err != nil {
				return fmt.Errorf("column %q: %w", a.schema.Field(col).Name, err)
			}
			out[a.schema.Field(col).Name] = v
		}
		if err := a.enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode Avro row: %w", err)
		}
	}
	return nil
}

func (a *avroWriter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.enc.Close()
}

func (a *avroWriter) Abort() error {
	a.closed = true
	return nil
}

// avroSchemaFor builds the JSON Avro record schema matching an arrow
// schema. Nullable fields become ["null", T] unions with a null
// default.
func avroSchemaFor(schema *arrow.Schema) (string, error) {
	fields := make([]map[string]interface{}, 0, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		f := schema.Field(i)
		t, err := avroType(f)
		if err != nil {
			return "", err
		}
		spec := map[string]interface{}{"name": f.Name, "type": t}
		if f.Nullable {
			spec["type"] = []interface{}{"null", t}
			spec["default"] = nil
		}
		fields = append(fields, spec)
	}
	raw, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   "row",
		"fields": fields,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func avroType(f arrow.Field) (interface{}, error) {
	switch dt := f.Type.(type) {
	case *arrow.Int8Type, *arrow.Int16Type, *arrow.Int32Type,
		*arrow.Uint8Type, *arrow.Uint16Type:
		return "int", nil
	case *arrow.Int64Type, *arrow.Uint32Type:
		return "long", nil
	case *arrow.Float32Type:
		return "float", nil
	case *arrow.Float64Type:
		return "double", nil
	case *arrow.BooleanType:
		return "boolean", nil
	case *arrow.StringType:
		return "string", nil
	case *arrow.BinaryType:
		return "bytes", nil
	case *arrow.Date32Type:
		return map[string]interface{}{"type": "int", "logicalType": "date"}, nil
	case *arrow.TimestampType:
		switch dt.Unit {
		case arrow.Second, arrow.Millisecond:
			return map[string]interface{}{"type": "long", "logicalType": "timestamp-millis"}, nil
		case arrow.Microsecond:
			return map[string]interface{}{"type": "long", "logicalType": "timestamp-micros"}, nil
		default:
			return nil, &UnsupportedTypeError{Format: Avro, Column: f.Name, Type: f.Type}
		}
	default:
		return nil, &UnsupportedTypeError{Format: Avro, Column: f.Name, Type: f.Type}
	}
}
