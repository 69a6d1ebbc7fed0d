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

// Package arrio exposes pull-based interfaces for moving Arrow record
// batches between readers and writers, not unlike the ones defined in
// the stdlib io package. Consumers drive the pace: each Read call is a
// suspension point, and a batch handed out by Read is owned by the
// caller, which must Release it.
package arrio

import (
	"context"
	"errors"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

// Reader is the interface that wraps the Read method.
type Reader interface {
	// Read reads the next record from the underlying stream and an error, if any.
	// When the Reader reaches the end of the underlying stream, it returns (nil, io.EOF).
	Read() (arrow.Record, error)
}

// RecordReader is a Reader that also carries the schema of the records
// it produces and owns an underlying storage handle. The stream is a
// single forward pass; Close releases the handle and must be called on
// every exit path.
type RecordReader interface {
	Reader
	Schema() *arrow.Schema
	Close() error
}

// Writer is the interface that wraps the Write method.
type Writer interface {
	Write(rec arrow.Record) error
}

// Copy copies all the records available from src to dst, releasing each
// record once written. The context is checked at every batch boundary,
// which is the pipeline's cancellation checkpoint.
//
// Copy returns the number of rows copied and the first error
// encountered while copying, if any. A successful Copy returns
// err == nil, not err == io.EOF.
func Copy(ctx context.Context, dst Writer, src Reader) (rows int64, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		rec, err := src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			return rows, err
		}
		rows += rec.NumRows()
		err = dst.Write(rec)
		rec.Release()
		if err != nil {
			return rows, err
		}
	}
}

// CountRows drains src, returning the total number of rows it yields.
func CountRows(ctx context.Context, src Reader) (int64, error) {
	var rows int64
	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		rec, err := src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			return rows, err
		}
		rows += rec.NumRows()
		rec.Release()
	}
}

// ReadAll drains src into a slice of records. The caller owns the
// returned records. Intended for bounded streams such as a sliced view;
// unbounded sources should be copied batch by batch instead.
func ReadAll(ctx context.Context, src Reader) ([]arrow.Record, error) {
	var recs []arrow.Record
	for {
		if err := ctx.Err(); err != nil {
			releaseAll(recs)
			return nil, err
		}
		rec, err := src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return recs, nil
			}
			releaseAll(recs)
			return nil, err
		}
		recs = append(recs, rec)
	}
}

func releaseAll(recs []arrow.Record) {
	for _, rec := range recs {
		rec.Release()
	}
}
