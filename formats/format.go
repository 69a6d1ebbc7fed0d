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

// Package formats holds the per-format reader and writer adapters and
// the extension-based format detector. Every adapter speaks the same
// arrio contract, so downstream stages never see which encoding a
// stream came from.
package formats

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/tabarc/tabarc/storage"
)

// Format identifies one of the supported encodings. The set is closed;
// adapters dispatch on it directly.
type Format int

const (
	Unknown Format = iota
	Parquet        // columnar binary
	Avro           // row-oriented binary (OCF)
	CSV            // comma-delimited text
	TSV            // tab-delimited text
	JSONL          // line-delimited JSON text
)

func (f Format) String() string {
	switch f {
	case Parquet:
		return "parquet"
	case Avro:
		return "avro"
	case CSV:
		return "csv"
	case TSV:
		return "tsv"
	case JSONL:
		return "jsonl"
	default:
		return "unknown"
	}
}

// Extension returns the canonical file extension, with the dot.
func (f Format) Extension() string {
	switch f {
	case Parquet:
		return ".parquet"
	case Avro:
		return ".avro"
	case CSV:
		return ".csv"
	case TSV:
		return ".tsv"
	case JSONL:
		return ".jsonl"
	default:
		return ""
	}
}

// supportedNames is the order used in error messages.
var supportedNames = []string{"parquet", "avro", "csv", "tsv", "jsonl"}

// ParseFormat resolves an explicit format override, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "parquet":
		return Parquet, nil
	case "avro":
		return Avro, nil
	case "csv":
		return CSV, nil
	case "tsv":
		return TSV, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	default:
		return Unknown, fmt.Errorf("unknown format %q, supported: %s",
			name, strings.Join(supportedNames, ", "))
	}
}

// ErrAmbiguousFormat reports a path whose format cannot be determined
// from its extension and for which no override was given.
var ErrAmbiguousFormat = errors.New("formats: ambiguous format")

func fromExtension(ext string) Format {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "parquet":
		return Parquet
	case "avro":
		return Avro
	case "csv":
		return CSV
	case "tsv":
		return TSV
	case "jsonl", "ndjson":
		return JSONL
	default:
		return Unknown
	}
}

// DetectPath maps a file path to a format by its extension suffix,
// case-insensitively.
func DetectPath(p string) (Format, error) {
	ext := path.Ext(p)
	if f := fromExtension(ext); f != Unknown {
		return f, nil
	}
	if ext == "" {
		return Unknown, fmt.Errorf("%w: %q has no extension, use an explicit format", ErrAmbiguousFormat, p)
	}
	return Unknown, fmt.Errorf("%w: unrecognized extension %q, use an explicit format", ErrAmbiguousFormat, ext)
}

// Detect resolves the format for a path: an explicit override always
// wins; otherwise the extension decides, and for a directory the
// extension of one representative part file decides. An empty or
// nonexistent directory needs an override.
func Detect(ctx context.Context, backend storage.Backend, p, override string) (Format, error) {
	if override != "" {
		return ParseFormat(override)
	}
	isDir, err := backend.IsDir(ctx, p)
	if err != nil {
		return Unknown, err
	}
	if !isDir {
		return DetectPath(p)
	}

	files, err := backend.List(ctx, p)
	if err != nil {
		return Unknown, err
	}
	for _, f := range files {
		if format := fromExtension(path.Ext(f)); format != Unknown {
			return format, nil
		}
	}
	return Unknown, fmt.Errorf("%w: no recognizable part files in %q, use an explicit format", ErrAmbiguousFormat, p)
}

// CorruptError reports malformed input, with the offending row or byte
// offset when determinable. Whether the failure aborts the stream
// depends on the format: a truncated parquet footer is always fatal.
type CorruptError struct {
	Path   string
	Row    int64 // 1-based; 0 when unknown
	Offset int64 // byte offset; -1 when unknown
	Err    error
}

func (e *CorruptError) Error() string {
	switch {
	case e.Row > 0:
		return fmt.Sprintf("corrupt input in %s at row %d: %v", e.Path, e.Row, e.Err)
	case e.Offset >= 0:
		return fmt.Sprintf("corrupt input in %s at byte %d: %v", e.Path, e.Offset, e.Err)
	default:
		return fmt.Sprintf("corrupt input in %s: %v", e.Path, e.Err)
	}
}

func (e *CorruptError) Unwrap() error { return e.Err }

// UnsupportedTypeError reports a column whose canonical type has no
// lossless representation in the target format.
type UnsupportedTypeError struct {
	Format Format
	Column string
	Type   arrow.DataType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("format %s cannot represent column %q of type %s", e.Format, e.Column, e.Type)
}
