package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var _ Renderable = (*Table)(nil)

// Table is a titled grid with an optional footer row.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
}

// NewTable creates a table. footer may be nil.
func NewTable(title string, headers []string, rows [][]string, footer []string) *Table {
	return &Table{Title: title, Headers: headers, Rows: rows, Footer: footer}
}

// RenderData returns one header-keyed map per row.
func (t *Table) RenderData() any {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

// plainLayout is a borderless, left-aligned layout. Header cells are
// upper-cased; footer cells are printed as given.
func plainLayout() []tablewriter.Option {
	left := tw.CellAlignment{Global: tw.AlignLeft}
	return []tablewriter.Option{
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{Alignment: left, Formatting: tw.CellFormatting{AutoFormat: tw.On}},
			Row:    tw.CellConfig{Alignment: left},
			Footer: tw.CellConfig{Alignment: left, Formatting: tw.CellFormatting{AutoFormat: tw.Off}},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders:  tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{Separators: tw.Separators{BetweenColumns: tw.Off}},
		}),
	}
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	if t.Title != "" {
		if colored {
			color.New(color.Bold).Fprintln(w, t.Title)
		} else {
			fmt.Fprintln(w, t.Title)
		}
		fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", len(t.Title)))
	}

	table := tablewriter.NewTable(w, plainLayout()...)
	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		cells := make([]any, len(t.Footer))
		for i, c := range t.Footer {
			cells[i] = c
		}
		table.Footer(cells...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	lines := [][]string{t.Headers, seps}
	lines = append(lines, t.Rows...)
	if len(t.Footer) > 0 {
		lines = append(lines, t.Footer)
	}
	for _, cells := range lines {
		fmt.Fprintf(w, "| %s |\n", markdownRow(cells))
	}
	_, err := fmt.Fprintln(w)
	return err
}

// markdownRow joins cells, escaping pipes such as those in "a || b".
func markdownRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return strings.Join(escaped, " | ")
}
