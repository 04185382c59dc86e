// Package cliutil provides output helpers for the xopenapi commands.
package cliutil

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Writef writes formatted output to the writer.
// If the write fails, it logs to stderr.
func Writef(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write error: %v\n", err)
	}
}

// Table writes rows as aligned columns. Nothing is written before Flush.
type Table struct {
	tw *tabwriter.Writer
}

// NewTable returns a table writing to w, starting with the header row when
// header is not empty.
func NewTable(w io.Writer, header ...string) *Table {
	t := &Table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
	if len(header) > 0 {
		t.Row(header...)
	}
	return t
}

// Row appends a row. Empty cells are written as "-".
func (t *Table) Row(cells ...string) {
	for i, c := range cells {
		if c == "" {
			cells[i] = "-"
		}
	}
	Writef(t.tw, "%s\n", strings.Join(cells, "\t"))
}

// Flush writes the table.
func (t *Table) Flush() {
	if err := t.tw.Flush(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write error: %v\n", err)
	}
}
