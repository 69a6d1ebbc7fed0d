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

	"github.com/tabarc/tabarc/internal/arrio"
)

// directoryReader concatenates the part files of a dataset directory,
// in lexicographic order, as one logical stream. Parts written by the
// partitioned converter are named so this order reproduces the
// original row order.
type directoryReader struct {
	ctx     context.Context
	source  Source
	files   []string
	next    int
	current arrio.RecordReader
	schema  *arrow.Schema
}

func newDirectoryReader(ctx context.Context, s Source) (*directoryReader, error) {
	files, err := s.partFiles(ctx)
	if err != nil {
		return nil, err
	}
	first, err := s.openFile(ctx, files[0])
	if err != nil {
		return nil, err
	}
	return &directoryReader{
		ctx:     ctx,
		source:  s,
		files:   files,
		next:    1,
		current: first,
		schema:  first.Schema(),
	}, nil
}

func (d *directoryReader) Read() (arrow.Record, error) {
	for {
		if d.current == nil {
			if d.next >= len(d.files) {
				return nil, io.EOF
			}
			r, err := d.source.openFile(d.ctx, d.files[d.next])
			if err != nil {
				return nil, err
			}
			if !r.Schema().Equal(d.schema) {
				path := d.files[d.next]
				r.Close()
				return nil, fmt.Errorf("part %s has a different schema than %s", path, d.files[0])
			}
			d.current = r
			d.next++
		}

		record, err := d.current.Read()
		if err == io.EOF {
			if cerr := d.current.Close(); cerr != nil {
				d.current = nil
				return nil, cerr
			}
			d.current = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		return record, nil
	}
}

func (d *directoryReader) Schema() *arrow.Schema { return d.schema }

func (d *directoryReader) Close() error {
	if d.current == nil {
		return nil
	}
	err := d.current.Close()
	d.current = nil
	return err
}
