package utils

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TableFormatter lays out rows in aligned columns for CLI output
type TableFormatter struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTableFormatter creates a new table formatter with headers
func NewTableFormatter(headers ...string) *TableFormatter {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	return &TableFormatter{
		headers: headers,
		widths:  widths,
	}
}

// AddRow adds a row. Missing cells are left blank and extra cells are
// dropped.
func (t *TableFormatter) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
	for i, cell := range row {
		if w := lipgloss.Width(cell); w > t.widths[i] {
			t.widths[i] = w
		}
	}
}

// Len returns the number of rows
func (t *TableFormatter) Len() int { return len(t.rows) }

// String returns the formatted table
func (t *TableFormatter) String() string {
	var sb strings.Builder
	t.writeBorder(&sb, "┌", "┬", "┐")
	t.writeRow(&sb, t.headers)
	t.writeBorder(&sb, "├", "┼", "┤")
	for _, row := range t.rows {
		t.writeRow(&sb, row)
	}
	t.writeBorder(&sb, "└", "┴", "┘")
	return sb.String()
}

func (t *TableFormatter) writeRow(sb *strings.Builder, row []string) {
	sb.WriteString("│")
	for i, cell := range row {
		sb.WriteString(" ")
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", t.widths[i]-lipgloss.Width(cell)+1))
		sb.WriteString("│")
	}
	sb.WriteString("\n")
}

func (t *TableFormatter) writeBorder(sb *strings.Builder, left, middle, right string) {
	sb.WriteString(left)
	for i, w := range t.widths {
		sb.WriteString(strings.Repeat("─", w+2))
		if i < len(t.widths)-1 {
			sb.WriteString(middle)
		}
	}
	sb.WriteString(right)
	sb.WriteString("\n")
}
