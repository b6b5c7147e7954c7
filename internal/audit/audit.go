// Package audit checks a decoded role assignment for accessor shapes that
// cannot be materialized cleanly. The checks are Datalog rules evaluated by
// Mangle over facts drawn from the template and the role table.
package audit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"pasket/internal/accessor"
	"pasket/internal/ir"
	"pasket/internal/logging"
)

//go:embed rules.mg
var rules string

// ErrViolations is returned in strict mode when any rule fires.
var ErrViolations = errors.New("role assignment violates accessor constraints")

// Options configures one audit.
type Options struct {
	// Strict turns violations into an error instead of warnings.
	Strict bool
}

// Violation is one derived violation(Kind, Reason, Slot) fact.
type Violation struct {
	Kind   string
	Reason string
	Slot   int
}

func (v Violation) String() string {
	return fmt.Sprintf("%s[%d]: %s", v.Kind, v.Slot, v.Reason)
}

// Result is the outcome of one audit.
type Result struct {
	Violations []Violation
	Facts      int
}

// OK reports whether no rule fired.
func (r *Result) OK() bool { return len(r.Violations) == 0 }

var (
	violationSym = ast.PredicateSym{Symbol: "violation", Arity: 3}
	roleSym      = ast.PredicateSym{Symbol: "role", Arity: 4}
	kindSym      = ast.PredicateSym{Symbol: "accessor_kind", Arity: 2}
	methodSym    = ast.PredicateSym{Symbol: "method", Arity: 5}
	extendsSym   = ast.PredicateSym{Symbol: "extends", Arity: 2}
)

// Run evaluates the rules over t and roles. Roles that name no template
// method contribute nothing; Decode treats them as absent too.
func Run(ctx context.Context, t *ir.Template, layout *accessor.Layout, roles accessor.RoleTable, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryAudit, "audit")
	defer timer.Stop()

	unit, err := parse.Unit(strings.NewReader(rules))
	if err != nil {
		return nil, fmt.Errorf("audit: parse rules: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("audit: analyze rules: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	facts := 0
	add := func(sym ast.PredicateSym, args ...ast.BaseTerm) {
		if store.Add(ast.Atom{Predicate: sym, Args: args}) {
			facts++
		}
	}

	for _, key := range roles.Keys() {
		add(roleSym, ast.String(key.Kind), ast.String(key.Category.String()),
			ast.Number(int64(key.Slot)), ast.Number(int64(roles[key])))
	}
	if layout != nil {
		for _, k := range layout.Kinds {
			add(kindSym, ast.String(k.Name), ast.Number(int64(k.Shape.ConstructorArity)))
		}
	}
	for _, c := range t.AllClasses() {
		if c.IsAux {
			continue
		}
		if c.Super != "" {
			add(extendsSym, ast.String(c.Name), ast.String(ir.BaseType(c.Super)))
		}
		for _, i := range c.Interfaces {
			add(extendsSym, ast.String(c.Name), ast.String(ir.BaseType(i)))
		}
		for _, m := range c.Methods {
			ret := m.Type
			if m.IsVoid() {
				ret = "void"
			}
			arg := ""
			if len(m.Params) > 0 {
				arg = m.Params[0].Type
			}
			add(methodSym, ast.Number(int64(m.ID)), ast.Number(int64(c.ID)),
				ast.Number(int64(len(m.Params))), ast.String(ret), ast.String(arg))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := mengine.EvalProgramWithStats(programInfo, store); err != nil {
		return nil, fmt.Errorf("audit: evaluate: %w", err)
	}

	res := &Result{Facts: facts}
	err = store.GetFacts(ast.NewQuery(violationSym), func(a ast.Atom) error {
		v, err := violationOf(a)
		if err != nil {
			return err
		}
		res.Violations = append(res.Violations, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: read violations: %w", err)
	}
	sort.Slice(res.Violations, func(i, j int) bool {
		a, b := res.Violations[i], res.Violations[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.Reason < b.Reason
	})

	if res.OK() {
		logging.Audit("audit: %d facts, no violations", facts)
		return res, nil
	}
	for _, v := range res.Violations {
		logging.AuditWarn("audit: %s", v)
	}
	if opts.Strict {
		return res, fmt.Errorf("%w: %d found, first %s", ErrViolations, len(res.Violations), res.Violations[0])
	}
	return res, nil
}

func violationOf(a ast.Atom) (Violation, error) {
	if len(a.Args) != 3 {
		return Violation{}, fmt.Errorf("violation has %d arguments", len(a.Args))
	}
	kind, ok1 := a.Args[0].(ast.Constant)
	reason, ok2 := a.Args[1].(ast.Constant)
	slot, ok3 := a.Args[2].(ast.Constant)
	if !ok1 || !ok2 || !ok3 || slot.Type != ast.NumberType {
		return Violation{}, fmt.Errorf("malformed violation %s", a)
	}
	return Violation{Kind: kind.Symbol, Reason: reason.Symbol, Slot: int(slot.NumValue)}, nil
}
