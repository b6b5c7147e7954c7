package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pasket/internal/accessor"
	"pasket/internal/audit"
	"pasket/internal/ir"
	"pasket/internal/journal"
)

// SimpleTable is a simple table component for rendering static data.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewSimpleTable creates a new SimpleTable with the given title and headers.
func NewSimpleTable(title string, headers []string) *SimpleTable {
	return &SimpleTable{
		Title:   title,
		Headers: headers,
		Rows:    make([][]string, 0),
	}
}

// AddRow adds a row to the table.
func (t *SimpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// View renders the table. An empty table renders as nothing.
func (t *SimpleTable) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				colWidths[i] = max(colWidths[i], lipgloss.Width(cell))
			}
		}
	}
	// lipgloss Width includes padding
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	sepStyle := styles.Muted

	for i, h := range t.Headers {
		sb.WriteString(headerStyle.Width(colWidths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sepStyle.Render("|"))
		}
	}
	sb.WriteString("\n")

	totalWidth := len(t.Headers) - 1
	for _, w := range colWidths {
		totalWidth += w
	}
	sb.WriteString(sepStyle.Render(strings.Repeat("-", totalWidth)) + "\n")

	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				sb.WriteString(rowStyle.Width(colWidths[i]).Render(cell))
				if i < len(row)-1 && i < len(colWidths)-1 {
					sb.WriteString(sepStyle.Render("|"))
				}
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// RoleTable lists a decoded role table, naming the method each value
// resolves to in t when t is non-nil.
func RoleTable(title string, roles accessor.RoleTable, t *ir.Template) *SimpleTable {
	table := NewSimpleTable(title, []string{"Kind", "Role", "Slot", "Value", "Resolves to"})
	for _, key := range roles.Keys() {
		v := roles[key]
		kind := key.Kind
		if kind == "" {
			kind = "-"
		}
		table.AddRow(kind, key.Category.String(), strconv.Itoa(key.Slot), strconv.Itoa(v), resolve(t, key, v))
	}
	return table
}

func resolve(t *ir.Template, key accessor.RoleKey, v int) string {
	if t == nil || v < 0 {
		return ""
	}
	if key.Category == accessor.Class {
		if c := t.ClassByID(v); c != nil {
			return c.Name
		}
		return ""
	}
	if key.Category == accessor.Slot {
		return ""
	}
	if m := t.MethodByID(v); m != nil {
		return m.Signature()
	}
	return ""
}

// HistoryTable lists journal runs.
func HistoryTable(runs []*journal.Run, styles Styles) *SimpleTable {
	table := NewSimpleTable("Runs", []string{"Run", "Started", "Took", "Aux", "Mode", "Status", "Invoked", "Violations"})
	for _, r := range runs {
		table.AddRow(
			shortID(r.ID),
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Finished.Sub(r.Started).Round(time.Millisecond).String(),
			r.Aux,
			r.Mode,
			styles.Status(r.Status),
			strconv.Itoa(r.Invoked),
			strconv.Itoa(r.Violations),
		)
	}
	return table
}

// ViolationTable lists audit findings.
func ViolationTable(violations []audit.Violation) *SimpleTable {
	table := NewSimpleTable("Audit", []string{"Kind", "Slot", "Problem"})
	for _, v := range violations {
		table.AddRow(v.Kind, fmt.Sprint(v.Slot), v.Reason)
	}
	return table
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
