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

// Package schema defines the canonical column type model shared by
// every format adapter. Each format's native type system is normalized
// into a closed set of Arrow types on read; writer adapters consult the
// same model to decide what they can represent.
package schema

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
)

// Kind buckets canonical types for capability checks. Writer adapters
// switch on Kind rather than on raw Arrow type IDs.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindString
	KindBinary
	KindTimestamp
	KindDate
	KindDecimal
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindUint:
		return "unsigned integer"
	case KindFloat:
		return "floating"
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	case KindDecimal:
		return "decimal"
	case KindNested:
		return "nested"
	default:
		return "invalid"
	}
}

// KindOf classifies an Arrow data type into its canonical kind.
func KindOf(dt arrow.DataType) Kind {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		return KindInt
	case arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return KindUint
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return KindFloat
	case arrow.BOOL:
		return KindBool
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return KindString
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.BINARY_VIEW, arrow.FIXED_SIZE_BINARY:
		return KindBinary
	case arrow.TIMESTAMP:
		return KindTimestamp
	case arrow.DATE32, arrow.DATE64:
		return KindDate
	case arrow.DECIMAL128, arrow.DECIMAL256:
		return KindDecimal
	case arrow.LIST, arrow.LARGE_LIST, arrow.LIST_VIEW, arrow.FIXED_SIZE_LIST,
		arrow.STRUCT, arrow.MAP:
		return KindNested
	case arrow.DICTIONARY:
		return KindOf(dt.(*arrow.DictionaryType).ValueType)
	case arrow.NULL:
		return KindString
	default:
		return KindInvalid
	}
}

// Normalize maps a schema produced by a reader adapter onto canonical
// types: string/binary views and large variants collapse to their plain
// forms, dictionary encodings to their value type, and an all-null
// column to a nullable string. Field names must be unique; order is
// preserved. Nested types pass through unchanged; whether a target
// format can take them is the writer adapter's call.
func Normalize(s *arrow.Schema) (*arrow.Schema, error) {
	seen := make(map[string]struct{}, s.NumFields())
	fields := make([]arrow.Field, s.NumFields())
	for i, f := range s.Fields() {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate column name %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		dt, err := normalizeType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("schema: column %q: %w", f.Name, err)
		}
		nullable := f.Nullable
		if f.Type.ID() == arrow.NULL {
			nullable = true
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: nullable, Metadata: f.Metadata}
	}
	md := s.Metadata()
	return arrow.NewSchema(fields, &md), nil
}

func normalizeType(dt arrow.DataType) (arrow.DataType, error) {
	switch dt.ID() {
	case arrow.LARGE_STRING, arrow.STRING_VIEW:
		return arrow.BinaryTypes.String, nil
	case arrow.LARGE_BINARY, arrow.BINARY_VIEW, arrow.FIXED_SIZE_BINARY:
		return arrow.BinaryTypes.Binary, nil
	case arrow.DICTIONARY:
		return normalizeType(dt.(*arrow.DictionaryType).ValueType)
	case arrow.NULL:
		return arrow.BinaryTypes.String, nil
	}
	if KindOf(dt) == KindInvalid {
		return nil, fmt.Errorf("no canonical mapping for native type %s", dt)
	}
	return dt, nil
}
