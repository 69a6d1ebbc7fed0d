// Package ui renders tables, schemas, and summaries for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/tabarc/tabarc/formats"
	"github.com/tabarc/tabarc/schema"
)

// RenderTable prints rows under their headers with aligned columns.
// An optional notice line follows the table, used when output was
// truncated.
func RenderTable(w io.Writer, headers []string, rows [][]string, notice string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = HeaderStyle.Render(pad(h, widths[i]))
	}
	fmt.Fprintln(w, strings.Join(cells, "  "))

	rules := make([]string, len(headers))
	for i, width := range widths {
		rules[i] = RuleStyle.Render(strings.Repeat("-", width))
	}
	fmt.Fprintln(w, strings.Join(rules, "  "))

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				cells[i] = pad(cell, widths[i])
			}
		}
		fmt.Fprintln(w, strings.Join(cells[:len(row)], "  "))
	}

	if notice != "" {
		fmt.Fprintln(w, NoticeStyle.Render(notice))
	}
}

// RenderSchema prints one line per column: name, canonical kind, the
// underlying storage type, and nullability.
func RenderSchema(w io.Writer, sc *arrow.Schema) {
	headers := []string{"column", "kind", "type", "nullable"}
	rows := make([][]string, 0, sc.NumFields())
	for i := 0; i < sc.NumFields(); i++ {
		f := sc.Field(i)
		rows = append(rows, []string{
			f.Name,
			schema.KindOf(f.Type).String(),
			f.Type.String(),
			fmt.Sprintf("%v", f.Nullable),
		})
	}
	RenderTable(w, headers, rows, "")
}

// RenderSummary prints the dataset summary as aligned key/value lines.
func RenderSummary(w io.Writer, path string, sum *formats.Summary) {
	items := []formats.SummaryItem{
		{Key: "Path", Value: path},
		{Key: "Format", Value: sum.Format.String()},
		{Key: "Size", Value: HumanSize(sum.FileSize)},
		{Key: "Rows", Value: fmt.Sprintf("%d", sum.Rows)},
		{Key: "Columns", Value: fmt.Sprintf("%d", sum.Columns)},
	}
	if sum.Partitions > 0 {
		items = append(items, formats.SummaryItem{Key: "Partitions", Value: fmt.Sprintf("%d", sum.Partitions)})
	}
	items = append(items, sum.Extra...)

	width := 0
	for _, item := range items {
		if len(item.Key) > width {
			width = len(item.Key)
		}
	}
	for _, item := range items {
		fmt.Fprintf(w, "%s  %s\n", KeyStyle.Render(pad(item.Key, width)), item.Value)
	}
}

// HumanSize formats a byte count with IEC units.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
