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

package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/internal/arrio"
)

// PartitionError aggregates the failures of a partitioned run.
// Partitions that finished cleanly keep their output files.
type PartitionError struct {
	Failures map[int]error
}

func (e *PartitionError) Error() string {
	indexes := make([]int, 0, len(e.Failures))
	for i := range e.Failures {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var b strings.Builder
	fmt.Fprintf(&b, "%d partition(s) failed:", len(indexes))
	for _, i := range indexes {
		fmt.Fprintf(&b, "\n  part %d: %v", i, e.Failures[i])
	}
	return b.String()
}

// PartName returns the file name of partition i in format f.
func PartName(i int, f formats.Format) string {
	return fmt.Sprintf("part-%05d%s", i, f.Extension())
}

// RunPartitioned converts src into parts files under the dst directory,
// named part-00000 onward. Rows are split into contiguous, evenly
// sized ranges in input order, so reading the parts back in name order
// yields the original row order. Each partition is written by its own
// worker and fails independently of the others.
func RunPartitioned(ctx context.Context, src formats.Source, dst formats.Sink, parts int) (*Result, error) {
	if parts < 1 {
		return nil, fmt.Errorf("partition count must be at least 1, got %d", parts)
	}
	start := time.Now()

	rows, err := src.CountRows(ctx)
	if err != nil {
		return nil, err
	}

	reader, err := src.OpenReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if err := dst.Backend.MkdirAll(ctx, dst.Path); err != nil {
		return nil, err
	}

	// cuts[i] is the first global row of partition i.
	cuts := make([]int64, parts+1)
	for i := 0; i <= parts; i++ {
		cuts[i] = int64(i) * rows / int64(parts)
	}

	schema := reader.Schema()
	channels := make([]chan arrow.Record, parts)
	failures := make([]error, parts)
	written := make([]int64, parts)

	var wg sync.WaitGroup
	for i := 0; i < parts; i++ {
		channels[i] = make(chan arrow.Record, recordBuffer)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			failures[i] = writePart(ctx, dst, i, schema, channels[i], &written[i])
			if failures[i] != nil {
				drain(channels[i])
			}
		}(i)
	}

	distErr := distribute(ctx, reader, channels, cuts)
	for _, ch := range channels {
		close(ch)
	}
	wg.Wait()

	if distErr != nil {
		return nil, distErr
	}

	perr := &PartitionError{Failures: make(map[int]error)}
	res := &Result{Partitions: parts}
	for i := 0; i < parts; i++ {
		if failures[i] != nil {
			perr.Failures[i] = failures[i]
			continue
		}
		res.Rows += written[i]
	}
	if len(perr.Failures) > 0 {
		return nil, perr
	}
	res.Duration = time.Since(start)
	return res, nil
}

// writePart consumes the records of one partition. The writer is
// opened eagerly so an empty range still produces a valid, empty file.
func writePart(ctx context.Context, dst formats.Sink, i int, schema *arrow.Schema, records <-chan arrow.Record, written *int64) error {
	sink := formats.Sink{
		Backend: dst.Backend,
		Path:    dst.Backend.Join(dst.Path, PartName(i, dst.Format)),
		Format:  dst.Format,
	}
	w, err := sink.OpenWriter(ctx, schema)
	if err != nil {
		return err
	}

	for record := range records {
		err := w.Write(record)
		rows := record.NumRows()
		record.Release()
		if err != nil {
			w.Abort()
			return err
		}
		*written += rows
	}
	return w.Close()
}

// distribute reads the stream once and routes each row range to the
// partition that owns it, slicing batches that straddle a cut.
func distribute(ctx context.Context, reader arrio.Reader, channels []chan arrow.Record, cuts []int64) error {
	parts := len(channels)
	part := 0
	offset := int64(0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		lo, hi := offset, offset+record.NumRows()
		for lo < hi {
			for part+1 < parts && cuts[part+1] <= lo {
				part++
			}
			stop := hi
			if part < parts-1 && cuts[part+1] < hi {
				stop = cuts[part+1]
			}

			slice := record.NewSlice(lo-offset, stop-offset)
			select {
			case channels[part] <- slice:
			case <-ctx.Done():
				slice.Release()
				record.Release()
				return ctx.Err()
			}
			lo = stop
		}
		record.Release()
		offset = hi
	}
}
