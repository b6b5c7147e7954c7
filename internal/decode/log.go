package decode

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"pasket/internal/accessor"
	"pasket/internal/logging"
)

// InvocationPrefix starts a method-invocation record in the decision log.
const InvocationPrefix = "log::check_log::"

// Decisions is what the solver reported for one auxiliary layout.
type Decisions struct {
	Layout *accessor.Layout

	// Invoked holds the ids of methods the solver run exercised.
	Invoked map[int]bool
	Roles   accessor.RoleTable

	// Ignored counts lines that were neither record shape.
	Ignored int
}

// NewDecisions returns an empty decision set for layout.
func NewDecisions(layout *accessor.Layout) *Decisions {
	return &Decisions{
		Layout:  layout,
		Invoked: make(map[int]bool),
		Roles:   make(accessor.RoleTable),
	}
}

// InvokedIDs returns the invoked ids in ascending order.
func (d *Decisions) InvokedIDs() []int {
	ids := make([]int, 0, len(d.Invoked))
	for id := range d.Invoked {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ParseLog reads a decision log. Two record shapes are recognized:
//
//	log::check_log::-42
//	glblInit_getter_k_0_AuxAccessor1,StmtAssign,getter_k_0_AuxAccessor1 = 42
//
// Role names must belong to layout. Later assignments override earlier
// ones. Every other line is counted and skipped.
func ParseLog(r io.Reader, layout *accessor.Layout) (*Decisions, error) {
	d := NewDecisions(layout)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if id, ok := parseInvocation(line); ok {
			d.Invoked[id] = true
			continue
		}
		if key, v, ok := parseRole(line, layout); ok {
			d.Roles[key] = v
			continue
		}
		d.Ignored++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read decision log: %w", err)
	}
	logging.DecodeDebug("decision log: %d invoked, %d roles, %d ignored lines",
		len(d.Invoked), len(d.Roles), d.Ignored)
	return d, nil
}

func parseInvocation(line string) (int, bool) {
	rest, ok := strings.CutPrefix(line, InvocationPrefix)
	if !ok {
		return 0, false
	}
	rest = strings.TrimPrefix(rest, "-")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(rest[:end])
	return id, err == nil
}

func parseRole(line string, layout *accessor.Layout) (accessor.RoleKey, int, bool) {
	fields := strings.SplitN(line, ",", 3)
	if len(fields) < 3 {
		return accessor.RoleKey{}, 0, false
	}
	i := strings.LastIndex(fields[2], " = ")
	if i < 0 {
		return accessor.RoleKey{}, 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(fields[2][i+3:]))
	if err != nil {
		return accessor.RoleKey{}, 0, false
	}
	key, ok := layout.Resolve(strings.TrimSpace(fields[2][:i]))
	return key, v, ok
}

// Format renders d back into decision-log text that ParseLog accepts. Used
// by replay logs and tests.
func (d *Decisions) Format(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, id := range d.InvokedIDs() {
		fmt.Fprintf(bw, "%s-%d\n", InvocationPrefix, id)
	}
	for _, key := range d.Roles.Keys() {
		name := d.Layout.FieldName(key)
		fmt.Fprintf(bw, "glblInit_%s,StmtAssign,%s = %d\n", name, name, d.Roles[key])
	}
	return bw.Flush()
}
