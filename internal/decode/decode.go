// Package decode turns the solver's role assignments back into plain
// field accessors and strips every trace of the auxiliary class.
package decode

import (
	"fmt"
	"strings"

	"pasket/internal/accessor"
	"pasket/internal/ir"
	"pasket/internal/logging"
)

// Options configures one decode run.
type Options struct {
	Mode accessor.Mode
}

// Report summarizes one decode run.
type Report struct {
	Aux   string
	Roles accessor.RoleTable

	// Materialized lists the signatures of methods rewritten to direct
	// field access, in processing order.
	Materialized []string

	// Fields lists the private fields added, as "Owner.name".
	Fields []string

	// Dropped counts leftover dispatch calls removed from bodies.
	Dropped int
}

// FieldName is the private storage field of slot i of kind.
func FieldName(kind string, i int) string {
	return fmt.Sprintf("_prvt_%s_%d", kind, i)
}

// Run rewrites t in place according to d and removes d.Layout's auxiliary
// class. Running it again with the same decisions leaves t unchanged.
func Run(t *ir.Template, d *Decisions, opts Options) (*Report, error) {
	if d == nil || d.Layout == nil {
		return nil, fmt.Errorf("decode: decisions carry no layout")
	}
	timer := logging.StartTimer(logging.CategoryDecode, "decode")
	defer timer.Stop()

	dec := &decoder{
		t:      t,
		d:      d,
		mode:   opts.Mode,
		layout: d.Layout,
		report: &Report{Aux: d.Layout.Aux, Roles: make(accessor.RoleTable, len(d.Roles))},
	}
	for k, v := range d.Roles {
		dec.report.Roles[k] = v
	}

	for _, k := range dec.layout.Kinds {
		dec.constructor(k)
		dec.pairs(k)
	}
	dec.removeAux()

	if err := ir.Walk(t, dec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	logging.Decode("decoded %s (%s): %d methods materialized, %d dispatch calls dropped",
		dec.layout.Aux, opts.Mode, len(dec.report.Materialized), dec.report.Dropped)
	return dec.report, nil
}

type decoder struct {
	t      *ir.Template
	d      *Decisions
	mode   accessor.Mode
	layout *accessor.Layout
	report *Report

	cur *ir.Method
}

// method resolves a role to a concrete, non-auxiliary method. Anything
// unresolved is absent.
func (dec *decoder) method(key accessor.RoleKey) *ir.Method {
	id, ok := dec.d.Roles[key]
	if !ok {
		return nil
	}
	m := dec.t.MethodByID(id)
	if m == nil || m.Clazz == nil || m.Clazz.IsAux {
		if id < 0 {
			logging.DecodeDebug("role %s left unchosen", key)
		} else {
			logging.DecodeWarn("role %s = %d resolves to no template method", key, id)
		}
		return nil
	}
	return m
}

func (dec *decoder) invoked(ms ...*ir.Method) bool {
	for _, m := range ms {
		if m != nil && dec.d.Invoked[m.ID] {
			return true
		}
	}
	return false
}

// field returns the storage field for slot i of kind on owner, adding it
// when missing.
func (dec *decoder) field(owner *ir.Clazz, kind string, i int, typ string) *ir.Field {
	name := FieldName(kind, i)
	if f := owner.FieldByName(name); f != nil {
		return f
	}
	f := &ir.Field{Mods: []string{"private"}, Type: typ, Name: name}
	owner.AddField(f)
	dec.report.Fields = append(dec.report.Fields, owner.Name+"."+name)
	logging.DecodeDebug("added %s %s.%s", typ, owner.Name, name)
	return f
}

func (dec *decoder) materialized(m *ir.Method) {
	dec.report.Materialized = append(dec.report.Materialized, m.Signature())
}

func (dec *decoder) constructor(k accessor.Kind) {
	if k.Shape.ConstructorArity <= 0 {
		return
	}
	c := dec.method(accessor.RoleKey{Kind: k.Name, Category: accessor.Constructor})
	if c == nil || !c.IsConstructor {
		return
	}
	// Always mode materializes the chosen constructor even when nothing
	// reaches it.
	if dec.mode == accessor.MaterializeIfInvoked && !dec.invoked(append([]*ir.Method{c}, c.Clazz.Methods...)...) {
		logging.DecodeDebug("constructor %s not exercised, left unmaterialized", c.Signature())
		return
	}
	body := make([]ir.Stmt, 0, len(c.Params))
	for i, p := range c.Params {
		f := dec.field(c.Clazz, k.Name, i, p.Type)
		body = append(body, &ir.AssignStmt{
			LHS: &ir.Ident{Name: f.Name, Type: f.Type},
			RHS: &ir.Ident{Name: p.Name, Type: p.Type},
		})
	}
	c.Body = body
	dec.materialized(c)
}

// pairs materializes getter i and setter i of k through their shared slot.
func (dec *decoder) pairs(k accessor.Kind) {
	for i := 0; i < k.Shape.Slots(); i++ {
		var getter, setter *ir.Method
		if i < k.Shape.Getters {
			getter = dec.method(accessor.RoleKey{Kind: k.Name, Category: accessor.Getter, Slot: i})
			if getter != nil && (len(getter.Params) != 0 || getter.IsVoid()) {
				getter = nil
			}
		}
		if i < k.Shape.Setters {
			setter = dec.method(accessor.RoleKey{Kind: k.Name, Category: accessor.Setter, Slot: i})
			if setter != nil && len(setter.Params) != 1 {
				setter = nil
			}
		}
		if getter == nil && setter == nil {
			continue
		}
		if dec.mode == accessor.MaterializeIfInvoked && !dec.invoked(getter, setter) {
			continue
		}
		slot, ok := dec.d.Roles[accessor.RoleKey{Kind: k.Name, Category: accessor.Slot, Slot: i}]
		if !ok {
			slot = i
		}
		if getter != nil {
			f := dec.field(getter.Clazz, k.Name, slot, getter.Type)
			getter.Body = []ir.Stmt{&ir.ReturnStmt{Value: &ir.Ident{Name: f.Name, Type: f.Type}}}
			dec.materialized(getter)
		}
		if setter != nil {
			p := setter.Params[0]
			f := dec.field(setter.Clazz, k.Name, slot, p.Type)
			setter.Body = []ir.Stmt{&ir.AssignStmt{
				LHS: &ir.Ident{Name: f.Name, Type: f.Type},
				RHS: &ir.Ident{Name: p.Name, Type: p.Type},
			}}
			dec.materialized(setter)
		}
	}
}

// removeAux drops the storage arrays and the auxiliary class itself.
func (dec *decoder) removeAux() {
	for _, s := range dec.layout.Storage {
		if holder := dec.t.ClassByName(s.Holder); holder != nil {
			holder.RemoveField(s.Name)
		}
	}
	for _, aux := range dec.t.AuxClasses() {
		if aux.Name == dec.layout.Aux {
			dec.t.RemoveClass(aux)
		}
	}
	var names []string
	for _, name := range dec.t.AuxNames {
		if name != dec.layout.Aux {
			names = append(names, name)
		}
	}
	dec.t.AuxNames = names
}

// dispatch reports whether e calls into the auxiliary class, looking
// through casts and parentheses, and returns the call.
func (dec *decoder) dispatch(e ir.Expr) (*ir.Call, bool) {
	for {
		switch x := e.(type) {
		case *ir.Cast:
			e = x.X
		case *ir.Paren:
			e = x.X
		case *ir.Call:
			recv, ok := x.Recv.(*ir.Ident)
			return x, ok && recv.Name == dec.layout.Aux
		default:
			return nil, false
		}
	}
}

// VisitTemplate implements ir.Visitor.
func (dec *decoder) VisitTemplate(*ir.Template) error { return nil }

// VisitClazz implements ir.Visitor.
func (dec *decoder) VisitClazz(*ir.Clazz) error { return nil }

// VisitField implements ir.Visitor.
func (dec *decoder) VisitField(*ir.Field) error { return nil }

// VisitMethod implements ir.Visitor.
func (dec *decoder) VisitMethod(m *ir.Method) error {
	dec.cur = m
	return nil
}

// VisitStmt drops the dispatch calls left in bodies that were not
// materialized.
func (dec *decoder) VisitStmt(s ir.Stmt) ([]ir.Stmt, error) {
	switch x := s.(type) {
	case *ir.ExprStmt:
		call, ok := dec.dispatch(x.X)
		if !ok {
			return []ir.Stmt{s}, nil
		}
		dec.report.Dropped++
		if strings.HasSuffix(call.Name, "setterInOne") {
			return []ir.Stmt{ir.Guard()}, nil
		}
		return nil, nil
	case *ir.ReturnStmt:
		if _, ok := dec.dispatch(x.Value); !ok {
			return []ir.Stmt{s}, nil
		}
		dec.report.Dropped++
		return []ir.Stmt{&ir.ReturnStmt{Value: ir.DefaultValue(dec.cur.Type)}}, nil
	case *ir.AssertStmt, *ir.AssignStmt, *ir.IfStmt, *ir.WhileStmt, *ir.RepeatStmt, *ir.LoopStmt,
		*ir.ForStmt, *ir.TryStmt:
		return []ir.Stmt{s}, nil
	default:
		return nil, ir.Unhandled("decode", s)
	}
}

// VisitExpr replaces dispatch calls nested inside other expressions with
// the default of the dispatcher's slot type.
func (dec *decoder) VisitExpr(e ir.Expr) (ir.Expr, error) {
	switch x := e.(type) {
	case *ir.Call:
		if recv, ok := x.Recv.(*ir.Ident); ok && recv.Name == dec.layout.Aux {
			dec.report.Dropped++
			return dispatchDefault(x.Name), nil
		}
		return e, nil
	case *ir.Ident, *ir.Lit, *ir.Hole, *ir.Gen, *ir.FieldAccess, *ir.Index, *ir.Unary,
		*ir.Binary, *ir.Cond, *ir.Cast, *ir.New, *ir.NewArray, *ir.Paren, *ir.Raw:
		return e, nil
	default:
		return nil, ir.Unhandled("decode", e)
	}
}

func dispatchDefault(name string) ir.Expr {
	switch {
	case strings.HasPrefix(name, "i"):
		return ir.Int(0)
	case strings.HasPrefix(name, "b"):
		return ir.Bool(false)
	}
	return ir.Null()
}
