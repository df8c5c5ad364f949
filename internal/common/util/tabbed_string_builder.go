package util

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// TabbedStringBuilder wraps a *tabwriter.Writer for building tab-aligned report tables.
// The underlying writer is a strings.Builder, which never errors, so unlike tabwriter
// this surface returns no errors to the caller.
type TabbedStringBuilder struct {
	sb     *strings.Builder
	writer *tabwriter.Writer
}

// NewTabbedStringBuilder creates a new TabbedStringBuilder. All parameters are equivalent
// to those defined in tabwriter.NewWriter.
func NewTabbedStringBuilder(minwidth, tabwidth, padding int, padchar byte, flags uint) *TabbedStringBuilder {
	sb := &strings.Builder{}
	return &TabbedStringBuilder{
		sb:     sb,
		writer: tabwriter.NewWriter(sb, minwidth, tabwidth, padding, padchar, flags),
	}
}

// Writef formats according to a format specifier and writes to the underlying writer.
func (t *TabbedStringBuilder) Writef(format string, a ...any) {
	_, _ = fmt.Fprintf(t.writer, format, a...)
}

// WriteRow writes one table row: columns joined by tabs, terminated by a newline.
func (t *TabbedStringBuilder) WriteRow(columns ...any) {
	for i, c := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(t.writer, "\t")
		}
		_, _ = fmt.Fprint(t.writer, c)
	}
	_, _ = fmt.Fprint(t.writer, "\n")
}

// String returns the accumulated string. Flush on the underlying writer is
// automatically called.
func (t *TabbedStringBuilder) String() string {
	_ = t.writer.Flush()
	return t.sb.String()
}
