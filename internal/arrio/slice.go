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

package arrio

import (
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

// SliceReader drops the first Skip rows of the wrapped stream and stops
// after Limit rows have been yielded. Partial batches are sliced with
// Record.NewSlice rather than materialized, so a limit never forces a
// full read of the batch it lands in. A skip or limit past the end of
// the stream yields a short or empty sequence, never an error.
type SliceReader struct {
	r     RecordReader
	skip  int64
	limit int64 // remaining rows; -1 means unlimited
}

// NewSliceReader wraps r with skip/limit semantics. A negative limit
// means no limit. Closing the SliceReader closes r.
func NewSliceReader(r RecordReader, skip, limit int64) *SliceReader {
	if skip < 0 {
		skip = 0
	}
	return &SliceReader{r: r, skip: skip, limit: limit}
}

func (s *SliceReader) Schema() *arrow.Schema { return s.r.Schema() }

func (s *SliceReader) Read() (arrow.Record, error) {
	if s.limit == 0 {
		return nil, io.EOF
	}
	for {
		rec, err := s.r.Read()
		if err != nil {
			return nil, err
		}
		rows := rec.NumRows()

		if s.skip >= rows {
			s.skip -= rows
			rec.Release()
			continue
		}
		if s.skip > 0 {
			sliced := rec.NewSlice(s.skip, rows)
			rec.Release()
			rec = sliced
			rows -= s.skip
			s.skip = 0
		}
		if rows == 0 {
			rec.Release()
			continue
		}

		if s.limit > 0 && rows > s.limit {
			sliced := rec.NewSlice(0, s.limit)
			rec.Release()
			rec = sliced
			rows = s.limit
		}
		if s.limit > 0 {
			s.limit -= rows
		}
		return rec, nil
	}
}

func (s *SliceReader) Close() error { return s.r.Close() }
