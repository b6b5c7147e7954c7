// Package encode compresses the accessor methods of a template into one
// auxiliary class with bounded dispatch tables the solver can search.
package encode

import (
	"context"
	"fmt"

	"pasket/internal/accessor"
	"pasket/internal/ir"
	"pasket/internal/javasrc"
	"pasket/internal/logging"
)

// DefaultAuxPrefix names auxiliary classes AuxAccessor1, AuxAccessor2, ...
const DefaultAuxPrefix = "AuxAccessor"

// DefaultDelegateDepth bounds nested delegate dispatch.
const DefaultDelegateDepth = 2

// Bounds are the sample-trace maxima that size the invocation caps.
type Bounds struct {
	MaxObjects int `yaml:"max_objects"`
	MaxEvents  int `yaml:"max_events"`
}

// Options configures one encode run.
type Options struct {
	Accessors     accessor.Config
	Bounds        Bounds
	Exclude       []string // classes whose methods are never rerouted
	AuxPrefix     string
	DelegateDepth int
}

// Counts are the invocation-counter bounds baked into the dispatch methods.
type Counts struct {
	Constructor int
	Getter      int
	Setter      int
	Delegate    int
}

// Encoding is what Decode needs to undo an encode run.
type Encoding struct {
	Aux    *ir.Clazz
	Layout *accessor.Layout
	Counts Counts

	// Ranges lists the ids each role may take.
	Ranges map[accessor.RoleKey][]int

	// Rerouted lists the ids of methods whose bodies now call into Aux.
	Rerouted []int
}

// Run encodes t in place: it adds the auxiliary class and reroutes every
// candidate method through it. Method ids are never changed.
func Run(ctx context.Context, t *ir.Template, gen *ir.GenContext, opts Options) (*Encoding, error) {
	timer := logging.StartTimer(logging.CategoryEncode, "encode")
	defer timer.Stop()

	if opts.AuxPrefix == "" {
		opts.AuxPrefix = DefaultAuxPrefix
	}
	if opts.DelegateDepth <= 0 {
		opts.DelegateDepth = DefaultDelegateDepth
	}
	gen.ObserveTemplate(t)

	p := javasrc.NewParser()
	defer p.Close()

	e := &encoder{
		ctx:     ctx,
		t:       t,
		gen:     gen,
		opts:    opts,
		parser:  p,
		exclude: make(map[string]bool),
	}
	for _, name := range opts.Exclude {
		e.exclude[name] = true
	}
	aux := gen.NextAuxName(opts.AuxPrefix)
	e.layout = accessor.NewLayout(aux, opts.Accessors)
	e.collect()
	e.counts = e.computeCounts()

	if err := e.buildAux(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := ir.Walk(t, e); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	t.AddClasses(e.aux)
	t.AuxNames = append(t.AuxNames, aux)

	logging.Encode("encoded %d kinds into %s: %d roles, %d methods rerouted",
		len(e.layout.Kinds), aux, len(e.layout.Keys()), len(e.rerouted))
	return &Encoding{
		Aux:      e.aux,
		Layout:   e.layout,
		Counts:   e.counts,
		Ranges:   e.ranges,
		Rerouted: e.rerouted,
	}, nil
}

type encoder struct {
	ctx     context.Context
	t       *ir.Template
	gen     *ir.GenContext
	opts    Options
	parser  *javasrc.Parser
	exclude map[string]bool

	layout *accessor.Layout
	aux    *ir.Clazz
	counts Counts
	hosted bool // storage lives on the template's Object class

	// candidate ids by shape, template order
	ctors     []*ir.Method
	getters   []*ir.Method
	setters   []*ir.Method
	delegates []*ir.Method
	classes   []*ir.Clazz

	ranges   map[accessor.RoleKey][]int
	rerouted []int
}

// reroutable reports whether methods of c may be rewritten.
func (e *encoder) reroutable(c *ir.Clazz) bool {
	return c != nil && c.IsClass() && !c.IsAux && !c.IsClient && !e.exclude[c.Name]
}

// qualifies reports whether c can stand for an accessor kind's class: a
// class with a constructor or a zero-arg non-void method, or an interface
// with such an implementor.
func (e *encoder) qualifies(c *ir.Clazz, seen map[*ir.Clazz]bool) bool {
	if seen[c] {
		return false
	}
	seen[c] = true
	if c.IsInterface {
		for _, sub := range c.Subs {
			if e.qualifies(sub, seen) {
				return true
			}
		}
		return false
	}
	if !e.reroutable(c) {
		return false
	}
	for _, m := range c.Methods {
		if m.IsConstructor || (len(m.Params) == 0 && !m.IsVoid()) {
			return true
		}
	}
	return false
}

func (e *encoder) collect() {
	for _, c := range e.t.AllClasses() {
		if c.IsAux {
			continue
		}
		if (c.IsInterface && len(c.Subs) > 0) || c.IsClass() {
			if e.qualifies(c, map[*ir.Clazz]bool{}) {
				e.classes = append(e.classes, c)
			}
		}
		if !e.reroutable(c) {
			continue
		}
		for _, m := range c.Methods {
			if m.IsAbstract {
				continue
			}
			switch {
			case m.IsConstructor:
				e.ctors = append(e.ctors, m)
			case len(m.Params) == 0 && !m.IsVoid():
				e.getters = append(e.getters, m)
			case len(m.Params) == 1 && m.IsVoid():
				e.setters = append(e.setters, m)
			case len(m.Params) == 0 && m.IsVoid() && !m.IsStatic:
				e.delegates = append(e.delegates, m)
			}
		}
	}

	e.ranges = make(map[accessor.RoleKey][]int)
	for _, key := range e.layout.Keys() {
		switch key.Category {
		case accessor.Constructor:
			kind, _ := e.layout.Kind(key.Kind)
			var ids []int
			for _, m := range e.ctors {
				if len(m.Params) == kind.Shape.ConstructorArity {
					ids = append(ids, m.ID)
				}
			}
			e.ranges[key] = ids
		case accessor.Class:
			var ids []int
			for _, c := range e.classes {
				ids = append(ids, c.ID)
			}
			e.ranges[key] = ids
		case accessor.Getter:
			e.ranges[key] = methodIDs(e.getters)
		case accessor.Setter:
			e.ranges[key] = methodIDs(e.setters)
		case accessor.Adapter, accessor.Adaptee:
			e.ranges[key] = methodIDs(e.delegates)
		case accessor.Slot:
			kind, _ := e.layout.Kind(key.Kind)
			var slots []int
			for i := 0; i < kind.Shape.ConstructorArity; i++ {
				slots = append(slots, i)
			}
			e.ranges[key] = slots
		}
	}
	logging.EncodeDebug("candidates: %d classes, %d constructors, %d getters, %d setters, %d delegates",
		len(e.classes), len(e.ctors), len(e.getters), len(e.setters), len(e.delegates))
}

func methodIDs(ms []*ir.Method) []int {
	ids := make([]int, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

// computeCounts sizes the invocation counters from the trace maxima and the
// configured role totals.
func (e *encoder) computeCounts() Counts {
	objs, evts := e.opts.Bounds.MaxObjects, e.opts.Bounds.MaxEvents
	var args, getters, setters int
	for _, k := range e.layout.Kinds {
		args += k.Shape.ConstructorArity
		getters += k.Shape.Getters
		setters += k.Shape.Setters
	}
	kinds := max(len(e.layout.Kinds), 1)
	c := (objs + evts + 1) * (args + 1) / kinds
	return Counts{
		Constructor: c,
		Getter:      getters * evts,
		Setter:      setters*evts + c,
		Delegate:    e.opts.DelegateDepth,
	}
}

// VisitTemplate implements ir.Visitor.
func (e *encoder) VisitTemplate(*ir.Template) error { return nil }

// VisitClazz implements ir.Visitor.
func (e *encoder) VisitClazz(*ir.Clazz) error { return nil }

// VisitField implements ir.Visitor.
func (e *encoder) VisitField(*ir.Field) error { return nil }

// VisitMethod reroutes candidate bodies through the auxiliary class.
func (e *encoder) VisitMethod(m *ir.Method) error {
	if !e.reroutable(m.Clazz) || m.IsAbstract {
		return nil
	}
	aux := e.layout.Aux
	callee := ir.Expr(ir.Name("this"))
	if m.IsStatic {
		callee = ir.Null()
	}
	switch {
	case m.IsConstructor:
		for i, prm := range m.Params {
			st := slotTypeOf(prm.Type)
			m.Body = append(m.Body, &ir.ExprStmt{X: &ir.Call{
				Recv: ir.Name(aux),
				Name: st.short + "constructorInOne",
				Args: []ir.Expr{ir.Int(m.ID), ir.Name("this"), &ir.Ident{Name: prm.Name, Type: prm.Type}, ir.Int(i)},
				Site: m.ID,
			}})
		}
		if len(m.Params) == 0 {
			return nil
		}
	case len(m.Params) == 0 && !m.IsVoid():
		st := slotTypeOf(m.Type)
		call := &ir.Call{Recv: ir.Name(aux), Name: st.short + "getterInOne", Args: []ir.Expr{ir.Int(m.ID), callee}, Site: m.ID}
		var v ir.Expr = call
		if st.java != m.Type {
			v = &ir.Cast{Type: m.Type, X: call}
		}
		m.Body = []ir.Stmt{&ir.ReturnStmt{Value: v}}
	case len(m.Params) == 1 && m.IsVoid():
		prm := m.Params[0]
		st := slotTypeOf(prm.Type)
		m.Body = []ir.Stmt{&ir.ExprStmt{X: &ir.Call{
			Recv: ir.Name(aux),
			Name: st.short + "setterInOne",
			Args: []ir.Expr{ir.Int(m.ID), callee, &ir.Ident{Name: prm.Name, Type: prm.Type}},
			Site: m.ID,
		}}}
	case len(m.Params) == 0 && m.IsVoid() && !m.IsStatic:
		m.Body = []ir.Stmt{&ir.ExprStmt{X: &ir.Call{
			Recv: ir.Name(aux),
			Name: "delegateInOne",
			Args: []ir.Expr{ir.Int(m.ID), ir.Name("this")},
			Site: m.ID,
		}}}
	default:
		return nil
	}
	e.rerouted = append(e.rerouted, m.ID)
	return nil
}

// VisitStmt implements ir.Visitor; encode leaves statements alone.
func (e *encoder) VisitStmt(s ir.Stmt) ([]ir.Stmt, error) {
	switch s.(type) {
	case *ir.ExprStmt, *ir.AssertStmt, *ir.ReturnStmt, *ir.AssignStmt, *ir.IfStmt,
		*ir.WhileStmt, *ir.RepeatStmt, *ir.LoopStmt, *ir.ForStmt, *ir.TryStmt:
		return []ir.Stmt{s}, nil
	default:
		return nil, ir.Unhandled("encode", s)
	}
}

// VisitExpr implements ir.Visitor; encode leaves expressions alone.
func (e *encoder) VisitExpr(x ir.Expr) (ir.Expr, error) {
	switch x.(type) {
	case *ir.Ident, *ir.Lit, *ir.Hole, *ir.Gen, *ir.Call, *ir.FieldAccess, *ir.Index, *ir.Unary,
		*ir.Binary, *ir.Cond, *ir.Cast, *ir.New, *ir.NewArray, *ir.Paren, *ir.Raw:
		return x, nil
	default:
		return nil, ir.Unhandled("encode", x)
	}
}
