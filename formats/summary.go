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
	"sort"
	"strconv"
	"strings"

	"github.com/tabarc/tabarc/internal/arrio"
)

// Summary holds the high-level shape of a dataset: its encoding, total
// byte size, exact row and column counts, and format-specific extras
// such as parquet row-group layout.
type Summary struct {
	Format     Format
	FileSize   int64
	Rows       int64
	Columns    int
	Partitions int // part file count; 0 for a single file
	Extra      []SummaryItem
}

// SummaryItem is one format-specific key/value line.
type SummaryItem struct {
	Key   string
	Value string
}

// Summarize computes the summary of a source. Parquet sources are
// summarized from footer metadata alone; text and avro sources are
// streamed once to count rows.
func Summarize(ctx context.Context, s Source) (*Summary, error) {
	isDir, err := s.Backend.IsDir(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	files := []string{s.Path}
	if isDir {
		if files, err = s.partFiles(ctx); err != nil {
			return nil, err
		}
	}

	sum := &Summary{Format: s.Format}
	if isDir {
		sum.Partitions = len(files)
	}
	for _, f := range files {
		size, err := s.Backend.Size(ctx, f)
		if err != nil {
			return nil, err
		}
		sum.FileSize += size
	}

	if s.Format == Parquet {
		return summarizeParquet(ctx, s, files, sum)
	}

	r, err := s.OpenReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	sum.Columns = r.Schema().NumFields()
	if sum.Rows, err = arrio.CountRows(ctx, r); err != nil {
		return nil, err
	}
	return sum, nil
}

func summarizeParquet(ctx context.Context, s Source, files []string, sum *Summary) (*Summary, error) {
	rowGroups := 0
	codecs := make(map[string]struct{})
	for i, f := range files {
		meta, err := readParquetMeta(ctx, s.Backend, f)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			sum.Columns = meta.Columns
		}
		sum.Rows += meta.Rows
		rowGroups += meta.RowGroups
		for _, c := range meta.Codecs {
			codecs[c] = struct{}{}
		}
	}

	names := make([]string, 0, len(codecs))
	for c := range codecs {
		names = append(names, c)
	}
	sort.Strings(names)
	sum.Extra = []SummaryItem{
		{Key: "Row groups", Value: strconv.Itoa(rowGroups)},
		{Key: "Compression", Value: strings.Join(names, ", ")},
	}
	return sum, nil
}
