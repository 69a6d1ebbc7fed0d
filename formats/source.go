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
	"strings"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/tabarc/tabarc/internal/arrio"
	"github.com/tabarc/tabarc/schema"
	"github.com/tabarc/tabarc/storage"
)

// Source describes a readable dataset: a backend, a path on it (file
// or part directory), and a resolved format.
type Source struct {
	Backend storage.Backend
	Path    string
	Format  Format
	Infer   schema.InferOptions
}

// OpenReader opens a record stream over the source. Directories are
// read as the concatenation of their part files in lexicographic
// order.
func (s Source) OpenReader(ctx context.Context) (arrio.RecordReader, error) {
	isDir, err := s.Backend.IsDir(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	if isDir {
		return newDirectoryReader(ctx, s)
	}
	return s.openFile(ctx, s.Path)
}

func (s Source) openFile(ctx context.Context, p string) (arrio.RecordReader, error) {
	switch s.Format {
	case Parquet:
		return newParquetReader(ctx, s.Backend, p)
	case Avro:
		return newAvroReader(ctx, s.Backend, p)
	case CSV:
		return newDelimitedReader(ctx, s.Backend, p, ',', s.Infer)
	case TSV:
		return newDelimitedReader(ctx, s.Backend, p, '\t', s.Infer)
	case JSONL:
		return newJSONLReader(ctx, s.Backend, p, s.Infer)
	default:
		return nil, fmt.Errorf("formats: cannot read format %s", s.Format)
	}
}

// CountRows returns the exact row count of the source. Parquet counts
// come from file metadata without decoding any pages; other formats
// stream the data once.
func (s Source) CountRows(ctx context.Context) (int64, error) {
	isDir, err := s.Backend.IsDir(ctx, s.Path)
	if err != nil {
		return 0, err
	}
	if s.Format == Parquet {
		files := []string{s.Path}
		if isDir {
			if files, err = s.partFiles(ctx); err != nil {
				return 0, err
			}
		}
		var total int64
		for _, f := range files {
			meta, err := readParquetMeta(ctx, s.Backend, f)
			if err != nil {
				return 0, err
			}
			total += meta.Rows
		}
		return total, nil
	}

	r, err := s.OpenReader(ctx)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return arrio.CountRows(ctx, r)
}

// partFiles lists the files of a part directory that carry the
// source's extension, in lexicographic order.
func (s Source) partFiles(ctx context.Context) ([]string, error) {
	files, err := s.Backend.List(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	ext := s.Format.Extension()
	parts := files[:0]
	for _, f := range files {
		if hasExtension(f, ext) {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("formats: no %s files under %s", s.Format, s.Path)
	}
	return parts, nil
}

// RecordWriter consumes a record stream. Close commits the output;
// Abort discards whatever was written so a failed run leaves no
// partial file behind.
type RecordWriter interface {
	Write(arrow.Record) error
	Close() error
	Abort() error
}

// Sink describes a writable destination file.
type Sink struct {
	Backend storage.Backend
	Path    string
	Format  Format
}

// OpenWriter creates the destination and returns an encoder for it.
// The schema is validated against the format up front, before any
// bytes are written.
func (s Sink) OpenWriter(ctx context.Context, sc *arrow.Schema) (RecordWriter, error) {
	fw, err := s.Backend.Create(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	inner, err := NewStreamWriter(s.Format, fw, sc)
	if err != nil {
		fw.Abort()
		return nil, err
	}
	return &sinkWriter{inner: inner, file: fw}, nil
}

// writerOnly hides any Close method on the destination. Some encoders
// close an underlying io.Closer on their own Close, which would commit
// the file behind sinkWriter's back.
type writerOnly struct{ io.Writer }

// NewStreamWriter returns an encoder for the format over an arbitrary
// writer. It is used directly when emitting to stdout, where there is
// no file to commit or abort.
func NewStreamWriter(f Format, w io.Writer, sc *arrow.Schema) (RecordWriter, error) {
	w = writerOnly{w}
	switch f {
	case Parquet:
		return newParquetStreamWriter(w, sc)
	case Avro:
		return newAvroStreamWriter(w, sc)
	case CSV:
		return newDelimitedStreamWriter(w, sc, ',')
	case TSV:
		return newDelimitedStreamWriter(w, sc, '\t')
	case JSONL:
		return newJSONLStreamWriter(w, sc)
	default:
		return nil, fmt.Errorf("formats: cannot write format %s", f)
	}
}

// sinkWriter ties an encoder to the file lifecycle: the file is only
// committed once the encoder has flushed cleanly.
type sinkWriter struct {
	inner RecordWriter
	file  storage.FileWriter
}

func (w *sinkWriter) Write(rec arrow.Record) error { return w.inner.Write(rec) }

func (w *sinkWriter) Close() error {
	if err := w.inner.Close(); err != nil {
		w.file.Abort()
		return err
	}
	return w.file.Close()
}

func (w *sinkWriter) Abort() error {
	w.inner.Abort()
	return w.file.Abort()
}

func hasExtension(p, ext string) bool {
	return len(p) > len(ext) && strings.EqualFold(p[len(p)-len(ext):], ext)
}
