package ui

import (
	"strings"
	"testing"
	"time"

	"pasket/internal/accessor"
	"pasket/internal/audit"
	"pasket/internal/ir"
	"pasket/internal/journal"
)

func TestSimpleTable(t *testing.T) {
	table := NewSimpleTable("Test Table", []string{"Col1", "Col2"})
	table.AddRow("Row1Col1", "Row1Col2")

	view := table.View(DefaultStyles())

	if !strings.Contains(view, "Test Table") {
		t.Error("View missing title")
	}
	if !strings.Contains(view, "Row1Col1") {
		t.Error("View missing cell content")
	}
}

func TestSimpleTableEmpty(t *testing.T) {
	if view := NewSimpleTable("Empty", []string{"A"}).View(DefaultStyles()); view != "" {
		t.Errorf("expected empty view, got %q", view)
	}
}

func TestSimpleTableExtraCells(t *testing.T) {
	table := NewSimpleTable("", []string{"A"})
	table.AddRow("one", "ignored")
	view := table.View(DefaultStyles())
	if strings.Contains(view, "ignored") {
		t.Error("cells beyond the headers should not render")
	}
}

func TestRoleTable(t *testing.T) {
	c := &ir.Clazz{ID: 1, Name: "Foo"}
	c.AddMethod(&ir.Method{ID: 2, Name: "getX", Type: "int"})
	tmpl := ir.NewTemplate(c)

	roles := accessor.RoleTable{
		{Kind: "k", Category: accessor.Getter}: 2,
		{Kind: "k", Category: accessor.Class}:  1,
		{Kind: "k", Category: accessor.Slot}:   0,
		{Category: accessor.Adaptee}:           -1,
	}
	table := RoleTable("Roles", roles, tmpl)
	if len(table.Rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(table.Rows))
	}
	view := table.View(DefaultStyles())
	for _, want := range []string{"Foo.getX()", "accessor", "adaptee", "gs"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestHistoryTable(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	runs := []*journal.Run{{
		ID:       "0123456789abcdef",
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Aux:      "AuxAccessor1",
		Mode:     "always",
		Status:   journal.StatusFailed,
		Invoked:  3,
	}}
	view := HistoryTable(runs, DefaultStyles()).View(DefaultStyles())
	for _, want := range []string{"01234567", "1.5s", "AuxAccessor1", "failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "89abcdef") {
		t.Error("run id should be shortened")
	}
}

func TestViolationTable(t *testing.T) {
	table := ViolationTable([]audit.Violation{{Kind: "k", Reason: "getter returns void", Slot: 1}})
	if !strings.Contains(table.View(DefaultStyles()), "getter returns void") {
		t.Error("view missing reason")
	}
}
