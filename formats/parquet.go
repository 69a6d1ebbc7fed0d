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
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	pool "github.com/tabarc/tabarc/internal/memory"
	"github.com/tabarc/tabarc/storage"
)

const parquetBatchSize = 8192

type parquetReader struct {
	recordReader pqarrow.RecordReader
	fileReader   *file.Reader
	source       storage.RangeReader
	schema       *arrow.Schema
	alloc        memory.Allocator
}

// newParquetReader opens a parquet file through the backend's range
// reader. The footer lives at the end of the file, so parquet needs
// random access rather than a plain byte stream.
func newParquetReader(ctx context.Context, backend storage.Backend, path string) (*parquetReader, error) {
	src, err := backend.OpenRange(ctx, path)
	if err != nil {
		return nil, err
	}
	alloc := pool.GetAllocator()

	rdr, err := file.NewParquetReader(io.NewSectionReader(src, 0, src.Size()))
	if err != nil {
		pool.PutAllocator(alloc)
		src.Close()
		return nil, &CorruptError{Path: path, Offset: -1, Err: err}
	}

	fileReader, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: parquetBatchSize,
	}, alloc)
	if err != nil {
		pool.PutAllocator(alloc)
		rdr.Close()
		src.Close()
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}

	schema, err := fileReader.Schema()
	if err != nil {
		pool.PutAllocator(alloc)
		rdr.Close()
		src.Close()
		return nil, &CorruptError{Path: path, Offset: -1, Err: err}
	}

	recordReader, err := fileReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		pool.PutAllocator(alloc)
		rdr.Close()
		src.Close()
		return nil, fmt.Errorf("failed to create record reader: %w", err)
	}

	return &parquetReader{
		recordReader: recordReader,
		fileReader:   rdr,
		source:       src,
		schema:       schema,
		alloc:        alloc,
	}, nil
}

func (p *parquetReader) Read() (arrow.Record, error) {
	if p.recordReader.Next() {
		record := p.recordReader.Record()
		record.Retain()
		return record, nil
	}
	if err := p.recordReader.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return nil, io.EOF
}

func (p *parquetReader) Schema() *arrow.Schema { return p.schema }

func (p *parquetReader) Close() error {
	defer pool.PutAllocator(p.alloc)
	p.recordReader.Release()
	err := p.fileReader.Close()
	if cerr := p.source.Close(); err == nil {
		err = cerr
	}
	return err
}

// parquetMeta summarizes a parquet file from its footer alone, without
// decoding any data pages.
type parquetMeta struct {
	Rows      int64
	RowGroups int
	Columns   int
	Codecs    []string
}

func readParquetMeta(ctx context.Context, backend storage.Backend, path string) (*parquetMeta, error) {
	src, err := backend.OpenRange(ctx, path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	rdr, err := file.NewParquetReader(io.NewSectionReader(src, 0, src.Size()))
	if err != nil {
		return nil, &CorruptError{Path: path, Offset: -1, Err: err}
	}
	defer rdr.Close()

	alloc := pool.GetAllocator()
	defer pool.PutAllocator(alloc)
	fileReader, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, alloc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}
	schema, err := fileReader.Schema()
	if err != nil {
		return nil, &CorruptError{Path: path, Offset: -1, Err: err}
	}

	meta := &parquetMeta{
		Rows:      rdr.NumRows(),
		RowGroups: rdr.NumRowGroups(),
		Columns:   schema.NumFields(),
	}
	seen := make(map[string]struct{})
	for i := 0; i < rdr.NumRowGroups(); i++ {
		rg := rdr.MetaData().RowGroup(i)
		for j := 0; j < rg.NumColumns(); j++ {
			col, err := rg.ColumnChunk(j)
			if err != nil {
				return nil, &CorruptError{Path: path, Offset: -1, Err: err}
			}
			seen[codecName(col.Compression())] = struct{}{}
		}
	}
	for name := range seen {
		meta.Codecs = append(meta.Codecs, name)
	}
	sort.Strings(meta.Codecs)
	return meta, nil
}

func codecName(c compress.Compression) string {
	switch c {
	case compress.Codecs.Uncompressed:
		return "uncompressed"
	case compress.Codecs.Snappy:
		return "snappy"
	case compress.Codecs.Gzip:
		return "gzip"
	case compress.Codecs.Brotli:
		return "brotli"
	case compress.Codecs.Zstd:
		return "zstd"
	case compress.Codecs.Lz4:
		return "lz4"
	default:
		return "unknown"
	}
}

type parquetWriter struct {
	writer *pqarrow.FileWriter
	alloc  memory.Allocator
	closed bool
}

func newParquetStreamWriter(w io.Writer, schema *arrow.Schema) (RecordWriter, error) {
	alloc := pool.GetAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(alloc),
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCreatedBy("tabarc"),
	)
	writer, err := pqarrow.NewFileWriter(schema, w, props,
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		pool.PutAllocator(alloc)
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	return &parquetWriter{writer: writer, alloc: alloc}, nil
}

func (p *parquetWriter) Write(record arrow.Record) error {
	if err := p.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (p *parquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	defer pool.PutAllocator(p.alloc)
	return p.writer.Close()
}

// Abort flushes nothing useful; the surrounding file writer is what
// discards the partial output.
func (p *parquetWriter) Abort() error {
	if p.closed {
		return nil
	}
	p.closed = true
	defer pool.PutAllocator(p.alloc)
	p.writer.Close()
	return nil
}
