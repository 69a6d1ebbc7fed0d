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

package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/tabarc/tabarc/internal/json"
)

// InferOptions is the type inference policy for text formats that carry
// no embedded schema. The widening order is integer, floating, boolean,
// timestamp, then string; a column is the most general type compatible
// with all sampled values and widens to string on any violation.
type InferOptions struct {
	// SampleRows bounds how many rows are examined. Zero means 1000.
	SampleRows int
	// TimeLayouts are tried in order when classifying timestamp values.
	// Empty means the default layouts, which are the ones the Arrow CSV
	// reader can parse back.
	TimeLayouts []string
}

const defaultSampleRows = 1000

var defaultTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

const dateLayout = "2006-01-02"

// SampleSize returns the effective sample bound.
func (o InferOptions) SampleSize() int {
	if o.SampleRows <= 0 {
		return defaultSampleRows
	}
	return o.SampleRows
}

func (o InferOptions) timeLayouts() []string {
	if len(o.TimeLayouts) == 0 {
		return defaultTimeLayouts
	}
	return o.TimeLayouts
}

// guess accumulates per-column observations. Value classes are mutually
// exclusive; seeing more than one class, or any unclassifiable value,
// widens the column to string.
type guess struct {
	sawInt    bool
	sawFloat  bool
	sawBool   bool
	sawTime   bool
	sawDate   bool
	sawString bool
	sawNull   bool
	sawValue  bool
}

func (g *guess) observeString(v string, opts InferOptions) {
	v = strings.TrimSpace(v)
	if v == "" {
		g.sawNull = true
		return
	}
	g.sawValue = true

	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		g.sawInt = true
		return
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		g.sawFloat = true
		return
	}
	if v == "true" || v == "false" {
		g.sawBool = true
		return
	}
	for _, layout := range opts.timeLayouts() {
		if _, err := time.Parse(layout, v); err == nil {
			g.sawTime = true
			return
		}
	}
	if _, err := time.Parse(dateLayout, v); err == nil {
		g.sawDate = true
		return
	}
	g.sawString = true
}

func (g *guess) observeJSON(v interface{}, opts InferOptions) error {
	switch val := v.(type) {
	case nil:
		g.sawNull = true
	case bool:
		g.sawValue = true
		g.sawBool = true
	case json.Number:
		g.sawValue = true
		if _, err := val.Int64(); err == nil {
			g.sawInt = true
		} else {
			g.sawFloat = true
		}
	case string:
		g.sawValue = true
		for _, layout := range opts.timeLayouts() {
			if _, err := time.Parse(layout, val); err == nil {
				g.sawTime = true
				return nil
			}
		}
		g.sawString = true
	default:
		return fmt.Errorf("schema: nested JSON values are not supported (got %T)", v)
	}
	return nil
}

func (g *guess) dataType() arrow.DataType {
	if !g.sawValue {
		return arrow.BinaryTypes.String
	}
	if g.sawString {
		return arrow.BinaryTypes.String
	}

	classes := 0
	for _, saw := range []bool{g.sawInt || g.sawFloat, g.sawBool, g.sawTime, g.sawDate} {
		if saw {
			classes++
		}
	}
	if classes > 1 {
		return arrow.BinaryTypes.String
	}

	switch {
	case g.sawFloat:
		return arrow.PrimitiveTypes.Float64
	case g.sawInt:
		return arrow.PrimitiveTypes.Int64
	case g.sawBool:
		return arrow.FixedWidthTypes.Boolean
	case g.sawTime:
		return arrow.FixedWidthTypes.Timestamp_s
	case g.sawDate:
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

// InferFromStrings infers a canonical schema for delimited text from
// the header names and a bounded prefix of raw rows. Short rows leave
// the trailing columns unobserved; long rows are a parse error at read
// time, not here.
func InferFromStrings(names []string, rows [][]string, opts InferOptions) *arrow.Schema {
	guesses := make([]guess, len(names))
	limit := opts.SampleSize()
	for i, row := range rows {
		if i >= limit {
			break
		}
		for col, v := range row {
			if col >= len(guesses) {
				break
			}
			guesses[col].observeString(v, opts)
		}
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: guesses[i].dataType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// InferFromJSONRows infers a canonical schema for line-delimited JSON.
// keys fixes the column order (first object's key order); rows are the
// decoded objects of a bounded prefix, with numbers as json.Number.
func InferFromJSONRows(keys []string, rows []map[string]interface{}, opts InferOptions) (*arrow.Schema, error) {
	guesses := make([]guess, len(keys))
	limit := opts.SampleSize()
	for i, row := range rows {
		if i >= limit {
			break
		}
		for col, key := range keys {
			v, ok := row[key]
			if !ok {
				guesses[col].sawNull = true
				continue
			}
			if err := guesses[col].observeJSON(v, opts); err != nil {
				return nil, fmt.Errorf("column %q: %w", key, err)
			}
		}
	}

	fields := make([]arrow.Field, len(keys))
	for i, key := range keys {
		fields[i] = arrow.Field{Name: key, Type: guesses[i].dataType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}
