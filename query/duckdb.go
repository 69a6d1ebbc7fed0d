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

// Package query runs SQL over a record stream through an in-process
// DuckDB, reached via the ADBC driver manager. The whole input is
// ingested into a table named "t" before the statement runs.
package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-adbc/go/adbc/drivermgr"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/tabarc/tabarc/internal/arrio"
	pool "github.com/tabarc/tabarc/internal/memory"
)

// TableName is the relation the input stream is exposed as.
const TableName = "t"

// driverPathEnv overrides the DuckDB shared library location.
const driverPathEnv = "TAB_DUCKDB_LIB"

// EngineError reports a failure raised by the SQL engine itself, as
// opposed to reading or ingesting the input.
type EngineError struct {
	Query string
	Err   error
}

func (e *EngineError) Error() string { return fmt.Sprintf("query failed: %v", e.Err) }

func (e *EngineError) Unwrap() error { return e.Err }

func driverPath() string {
	if p := os.Getenv(driverPathEnv); p != "" {
		return p
	}
	if runtime.GOOS == "darwin" {
		return "/usr/local/lib/libduckdb.dylib"
	}
	return "/usr/local/lib/libduckdb.so"
}

// Run ingests the source stream into table "t" of a fresh in-memory
// DuckDB and executes the statement against it. The returned reader
// owns the database; closing it tears the engine down.
func Run(ctx context.Context, src arrio.RecordReader, sql string) (arrio.RecordReader, error) {
	var drv drivermgr.Driver
	db, err := drv.NewDatabase(map[string]string{
		"driver":     driverPath(),
		"entrypoint": "duckdb_adbc_init",
		"path":       "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load DuckDB driver: %w", err)
	}

	conn, err := db.Open(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	alloc := pool.GetAllocator()
	out, err := runOn(ctx, conn, alloc, src, sql)
	if err != nil {
		pool.PutAllocator(alloc)
		conn.Close()
		db.Close()
		return nil, err
	}
	return &resultReader{reader: out, conn: conn, db: db, alloc: alloc, schema: out.Schema()}, nil
}

func runOn(ctx context.Context, conn adbc.Connection, alloc memory.Allocator, src arrio.RecordReader, sql string) (array.RecordReader, error) {
	if err := ingest(ctx, conn, alloc, src); err != nil {
		return nil, err
	}

	stmt, err := conn.NewStatement()
	if err != nil {
		return nil, fmt.Errorf("failed to create statement: %w", err)
	}
	defer stmt.Close()

	if err := stmt.SetSqlQuery(sql); err != nil {
		return nil, &EngineError{Query: sql, Err: err}
	}
	out, _, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		return nil, &EngineError{Query: sql, Err: err}
	}
	defer out.Release()

	// The ADBC stream is only valid while the statement lives, so the
	// result is collected eagerly.
	schema := out.Schema()
	var records []arrow.Record
	for out.Next() {
		rec := out.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := out.Err(); err != nil {
		releaseAll(records)
		return nil, &EngineError{Query: sql, Err: err}
	}

	reader, err := array.NewRecordReader(schema, records)
	if err != nil {
		releaseAll(records)
		return nil, fmt.Errorf("failed to create record reader: %w", err)
	}
	for _, rec := range records {
		rec.Release()
	}
	return reader, nil
}

// ingest binds every batch of the source into table "t". The first
// batch creates the table; later batches append. An empty stream still
// creates the table from its schema so queries can reference it.
func ingest(ctx context.Context, conn adbc.Connection, alloc memory.Allocator, src arrio.RecordReader) error {
	stmt, err := conn.NewStatement()
	if err != nil {
		return fmt.Errorf("failed to create ingest statement: %w", err)
	}
	defer stmt.Close()

	if err := stmt.SetOption(adbc.OptionKeyIngestTargetTable, TableName); err != nil {
		return fmt.Errorf("failed to set target table: %w", err)
	}

	bound := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		err = bindRecord(ctx, stmt, alloc, rec, !bound)
		rec.Release()
		if err != nil {
			return err
		}
		bound = true
	}

	if !bound {
		empty := emptyRecord(src.Schema(), alloc)
		defer empty.Release()
		return bindRecord(ctx, stmt, alloc, empty, true)
	}
	return nil
}

func bindRecord(ctx context.Context, stmt adbc.Statement, alloc memory.Allocator, rec arrow.Record, create bool) error {
	mode := adbc.OptionValueIngestModeAppend
	if create {
		mode = adbc.OptionValueIngestModeCreate
	}
	if err := stmt.SetOption(adbc.OptionKeyIngestMode, mode); err != nil {
		return fmt.Errorf("failed to set ingest mode: %w", err)
	}

	buf := new(bytes.Buffer)
	writer := ipc.NewWriter(buf, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(alloc))
	if err := writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write record to IPC stream: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close IPC writer: %w", err)
	}

	reader, err := ipc.NewReader(buf, ipc.WithAllocator(alloc))
	if err != nil {
		return fmt.Errorf("failed to create IPC reader: %w", err)
	}
	defer reader.Release()

	if err := stmt.BindStream(ctx, reader); err != nil {
		return fmt.Errorf("failed to bind stream: %w", err)
	}
	if _, err := stmt.ExecuteUpdate(ctx); err != nil {
		return fmt.Errorf("failed to ingest batch: %w", err)
	}
	return nil
}

func emptyRecord(schema *arrow.Schema, alloc memory.Allocator) arrow.Record {
	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()
	return b.NewRecord()
}

func releaseAll(records []arrow.Record) {
	for _, rec := range records {
		rec.Release()
	}
}

// resultReader exposes the collected result set as a record stream and
// keeps the engine alive until closed.
type resultReader struct {
	reader array.RecordReader
	conn   adbc.Connection
	db     adbc.Database
	alloc  memory.Allocator
	schema *arrow.Schema
}

func (r *resultReader) Read() (arrow.Record, error) {
	if r.reader.Next() {
		record := r.reader.Record()
		record.Retain()
		return record, nil
	}
	if err := r.reader.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return nil, io.EOF
}

func (r *resultReader) Schema() *arrow.Schema { return r.schema }

func (r *resultReader) Close() error {
	defer pool.PutAllocator(r.alloc)
	r.reader.Release()
	err := r.conn.Close()
	if derr := r.db.Close(); err == nil {
		err = derr
	}
	return err
}
