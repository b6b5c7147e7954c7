package encode

import (
	"fmt"
	"sort"
	"strings"

	"pasket/internal/accessor"
	"pasket/internal/ir"
)

// Counter fields on the auxiliary class.
const (
	GetterCounter      = "getter_cnt"
	SetterCounter      = "setter_cnt"
	ConstructorCounter = "constructor_cnt"
	DelegateDepth      = "delegateInOne_depth"
)

// slotType is one storage type the dispatchers are specialized for.
type slotType struct {
	short string // method name prefix
	java  string
	store string // storage array field
	zero  string // returned when no role matches
}

var slotTypes = []slotType{
	{"", "Object", "_prvt_fld", "null"},
	{"i", "int", "_prvt_ifld", "-1"},
	{"b", "boolean", "_prvt_bfld", "false"},
	{"s", "String", "_prvt_sfld", "null"},
}

func slotTypeOf(typ string) slotType {
	for _, st := range slotTypes[1:] {
		if st.java == typ {
			return st
		}
	}
	return slotTypes[0]
}

// StorageFields lists the names of the storage arrays Encode creates.
func StorageFields() []string {
	out := make([]string, len(slotTypes))
	for i, st := range slotTypes {
		out[i] = st.store
	}
	return out
}

var staticMods = []string{"static"}

func (e *encoder) buildAux() error {
	e.aux = &ir.Clazz{ID: e.gen.NextID(), Name: e.layout.Aux, Mods: []string{"public"}, IsAux: true}
	for _, key := range e.layout.Keys() {
		e.aux.AddField(&ir.Field{Mods: staticMods, Type: "int", Name: e.layout.FieldName(key), Init: e.roleInit(key)})
	}
	for _, name := range []string{GetterCounter, SetterCounter, ConstructorCounter, DelegateDepth} {
		e.aux.AddField(&ir.Field{Mods: staticMods, Type: "int", Name: name, Init: ir.Int(0)})
	}
	e.addStorage()

	ids := e.typeIDs()
	steps := []func() error{
		func() error { return e.addMetadata(ids) },
		e.addCheckRange,
		e.addStorageHelpers,
		e.addDispatchers,
		e.addDelegate,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// roleInit is the initializer the solver resolves: a choice over the
// role's eligible ids, -1 when nothing is eligible, or a hole for the
// slot of a zero-arity kind.
func (e *encoder) roleInit(key accessor.RoleKey) ir.Expr {
	ids := e.ranges[key]
	if len(ids) == 0 {
		if key.Category == accessor.Slot {
			return &ir.Hole{}
		}
		return ir.Int(-1)
	}
	choices := make([]ir.Expr, len(ids))
	for i, id := range ids {
		choices[i] = ir.Int(id)
	}
	return &ir.Gen{Choices: choices}
}

// eligible reports whether key has any candidate at all.
func (e *encoder) eligible(key accessor.RoleKey) bool {
	return key.Category == accessor.Slot || len(e.ranges[key]) > 0
}

// addStorage places the slot arrays on the template's Object class when it
// models one, so every instance carries its own slots. Otherwise they are
// static on the auxiliary class.
func (e *encoder) addStorage() {
	size := 1
	for _, k := range e.layout.Kinds {
		size = max(size, k.Shape.ConstructorArity, k.Shape.Slots())
	}
	host, mods := e.t.ClassByName("Object"), []string(nil)
	if host == nil || host.IsInterface {
		host, mods = e.aux, staticMods
	}
	for _, st := range slotTypes {
		if host.FieldByName(st.store) == nil {
			host.AddField(&ir.Field{
				Mods: mods,
				Type: st.java + "[]",
				Name: st.store,
				Init: &ir.NewArray{Type: st.java, Len: ir.Int(size)},
			})
		}
		if host != e.aux {
			e.layout.Storage = append(e.layout.Storage, accessor.StorageField{Holder: host.Name, Name: st.store})
		}
	}
	e.hosted = host != e.aux
}

// method adds a static helper to the auxiliary class with a body parsed
// from Java source.
func (e *encoder) method(name, typ string, params []ir.Param, src string) error {
	m := &ir.Method{ID: e.gen.NextID(), Mods: staticMods, Type: typ, Name: name, Params: params, IsStatic: true}
	e.aux.AddMethod(m)
	body, err := e.parser.Statements(e.ctx, m, src)
	if err != nil {
		return fmt.Errorf("synthesize %s.%s: %w", e.aux.Name, name, err)
	}
	m.Body = body
	return nil
}

func (e *encoder) candidates() []*ir.Method {
	var out []*ir.Method
	for _, group := range [][]*ir.Method{e.ctors, e.getters, e.setters, e.delegates} {
		out = append(out, group...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// typeIDs numbers every type the metadata helpers mention. Template
// classes use their own id; everything else gets a negative id from -2 on,
// in name order. -1 stays reserved for "no role".
func (e *encoder) typeIDs() map[string]int {
	ids := make(map[string]int)
	var others []string
	note := func(typ string) {
		if typ == "" || typ == "void" {
			return
		}
		if _, ok := ids[typ]; ok {
			return
		}
		if c := e.t.ClassByName(typ); c != nil && !c.IsAux {
			ids[typ] = c.ID
			return
		}
		ids[typ] = 0
		others = append(others, typ)
	}
	for _, m := range e.candidates() {
		if !m.IsConstructor {
			note(m.Type)
		}
		for _, p := range m.Params {
			note(p.Type)
		}
	}
	sort.Strings(others)
	for i, typ := range others {
		ids[typ] = -2 - i
	}
	return ids
}

type lines struct{ strings.Builder }

func (b *lines) add(format string, args ...any) {
	fmt.Fprintf(&b.Builder, format, args...)
	b.WriteByte('\n')
}

// addMetadata emits argNum, belongsTo, retType, argType, paramType and
// subcls: constant tables over candidate ids the range checks query.
func (e *encoder) addMetadata(typeIDs map[string]int) error {
	mtd := []ir.Param{{Type: "int", Name: "mtd_id"}}
	var argNum, belongsTo, retType, argType, paramType lines
	for _, m := range e.candidates() {
		argNum.add("if (mtd_id == %d) {\n  return %d;\n}", m.ID, len(m.Params))
		belongsTo.add("if (mtd_id == %d) {\n  return %d;\n}", m.ID, m.Clazz.ID)
		if !m.IsVoid() {
			retType.add("if (mtd_id == %d) {\n  return %d;\n}", m.ID, typeIDs[m.Type])
		}
		if len(m.Params) > 0 {
			argType.add("if (mtd_id == %d) {\n  return %d;\n}", m.ID, typeIDs[m.Params[0].Type])
		}
		if m.IsConstructor {
			for i, p := range m.Params {
				paramType.add("if (mtd_id == %d && pos == %d) {\n  return %d;\n}", m.ID, i, typeIDs[p.Type])
			}
		}
	}
	tables := []struct {
		name   string
		params []ir.Param
		body   *lines
	}{
		{"argNum", mtd, &argNum},
		{"belongsTo", mtd, &belongsTo},
		{"retType", mtd, &retType},
		{"argType", mtd, &argType},
		{"paramType", []ir.Param{{Type: "int", Name: "mtd_id"}, {Type: "int", Name: "pos"}}, &paramType},
	}
	for _, tbl := range tables {
		tbl.body.add("return -1;")
		if err := e.method(tbl.name, "int", tbl.params, tbl.body.String()); err != nil {
			return err
		}
	}

	var subcls lines
	subcls.add("if (sub == sup) {\n  return true;\n}")
	for _, c := range e.t.AllClasses() {
		if c.IsAux {
			continue
		}
		for _, sup := range e.ancestors(c) {
			subcls.add("if (sub == %d && sup == %d) {\n  return true;\n}", c.ID, sup.ID)
		}
	}
	subcls.add("return false;")
	return e.method("subcls", "boolean", []ir.Param{{Type: "int", Name: "sub"}, {Type: "int", Name: "sup"}}, subcls.String())
}

// ancestors returns every template class or interface c extends or
// implements, transitively, in discovery order.
func (e *encoder) ancestors(c *ir.Clazz) []*ir.Clazz {
	seen := map[*ir.Clazz]bool{c: true}
	var out []*ir.Clazz
	queue := []*ir.Clazz{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		names := cur.Interfaces
		if cur.Super != "" {
			names = append([]string{cur.Super}, names...)
		}
		for _, name := range names {
			sup := e.t.ClassByName(name)
			if sup == nil || seen[sup] {
				continue
			}
			seen[sup] = true
			out = append(out, sup)
			queue = append(queue, sup)
		}
	}
	return out
}

// addCheckRange emits the assertions that keep the solver's choices
// well-typed. Roles with no eligible id get none.
func (e *encoder) addCheckRange() error {
	var b lines
	name := e.layout.FieldName
	for _, k := range e.layout.Kinds {
		cls := accessor.RoleKey{Kind: k.Name, Category: accessor.Class}
		hasCls := e.eligible(cls)
		ctor := accessor.RoleKey{Kind: k.Name, Category: accessor.Constructor}
		hasCtor := k.Shape.ConstructorArity > 0 && e.eligible(ctor)
		if hasCtor {
			b.add("assert argNum(%s) == %d;", name(ctor), k.Shape.ConstructorArity)
			if hasCls {
				b.add("assert belongsTo(%s) == %s;", name(ctor), name(cls))
			}
		}
		for i := 0; i < k.Shape.Getters; i++ {
			g := accessor.RoleKey{Kind: k.Name, Category: accessor.Getter, Slot: i}
			if !e.eligible(g) {
				continue
			}
			b.add("assert argNum(%s) == 0;", name(g))
			if hasCls {
				b.add("assert subcls(%s, belongsTo(%s));", name(cls), name(g))
			}
			if hasCtor {
				gs := accessor.RoleKey{Kind: k.Name, Category: accessor.Slot, Slot: i}
				b.add("assert subcls(paramType(%s, %s), retType(%s));", name(ctor), name(gs), name(g))
			}
		}
		for i := 0; i < k.Shape.Setters; i++ {
			s := accessor.RoleKey{Kind: k.Name, Category: accessor.Setter, Slot: i}
			if !e.eligible(s) {
				continue
			}
			b.add("assert argNum(%s) == 1;", name(s))
			if hasCls {
				b.add("assert subcls(%s, belongsTo(%s));", name(cls), name(s))
			}
			g := accessor.RoleKey{Kind: k.Name, Category: accessor.Getter, Slot: i}
			if i < k.Shape.Getters && e.eligible(g) {
				b.add("assert belongsTo(%s) == belongsTo(%s);", name(g), name(s))
				b.add("assert subcls(argType(%s), retType(%s));", name(s), name(g))
			}
		}
	}
	adapter := accessor.RoleKey{Category: accessor.Adapter}
	if e.eligible(adapter) {
		b.add("assert argNum(%s) == 0;", name(adapter))
		b.add("assert argNum(%s) == 0;", name(accessor.RoleKey{Category: accessor.Adaptee}))
	}
	return e.method("checkRange", "void", nil, b.String())
}

func (e *encoder) addStorageHelpers() error {
	for _, st := range slotTypes {
		getParams := []ir.Param{{Type: "Object", Name: "callee"}, {Type: "int", Name: "fld"}}
		setParams := append(append([]ir.Param(nil), getParams...), ir.Param{Type: st.java, Name: "v"})
		var get, set lines
		if e.hosted {
			get.add("if (callee == null) {\n  return %s;\n}", st.zero)
			get.add("return callee.%s[fld];", st.store)
			set.add("if (callee == null) {\n  return;\n}")
			set.add("callee.%s[fld] = v;", st.store)
		} else {
			get.add("return %s[fld];", st.store)
			set.add("%s[fld] = v;", st.store)
		}
		if err := e.method(st.short+"get", st.java, getParams, get.String()); err != nil {
			return err
		}
		if err := e.method(st.short+"set", "void", setParams, set.String()); err != nil {
			return err
		}
	}
	return nil
}

// guard opens a dispatcher: give up once the counter passes its cap.
func guard(b *lines, counter string, limit int, ret string) {
	b.add("if (%s > %d) {\n  return%s;\n}", counter, limit, ret)
	b.add("%s = %s + 1;", counter, counter)
	b.add("checkRange();")
}

// addDispatchers emits the per-type getterInOne, setterInOne and
// constructorInOne methods.
func (e *encoder) addDispatchers() error {
	name := e.layout.FieldName
	for _, st := range slotTypes {
		var get, set, ctor lines
		guard(&get, GetterCounter, e.counts.Getter, " "+st.zero)
		guard(&set, SetterCounter, e.counts.Setter, "")
		guard(&ctor, ConstructorCounter, e.counts.Constructor, "")
		for _, k := range e.layout.Kinds {
			if k.Shape.ConstructorArity > 0 {
				c := accessor.RoleKey{Kind: k.Name, Category: accessor.Constructor}
				ctor.add("if (mtd_id == %s) {\n  %sset(callee, pos, v);\n}", name(c), st.short)
			}
			for i := 0; i < k.Shape.Getters; i++ {
				g := accessor.RoleKey{Kind: k.Name, Category: accessor.Getter, Slot: i}
				gs := accessor.RoleKey{Kind: k.Name, Category: accessor.Slot, Slot: i}
				get.add("if (mtd_id == %s) {\n  return %sget(callee, %s);\n}", name(g), st.short, name(gs))
			}
			for i := 0; i < k.Shape.Setters; i++ {
				s := accessor.RoleKey{Kind: k.Name, Category: accessor.Setter, Slot: i}
				gs := accessor.RoleKey{Kind: k.Name, Category: accessor.Slot, Slot: i}
				set.add("if (mtd_id == %s) {\n  %sset(callee, %s, v);\n}", name(s), st.short, name(gs))
			}
		}
		get.add("return %s;", st.zero)

		mtd := ir.Param{Type: "int", Name: "mtd_id"}
		callee := ir.Param{Type: "Object", Name: "callee"}
		v := ir.Param{Type: st.java, Name: "v"}
		if err := e.method(st.short+"getterInOne", st.java, []ir.Param{mtd, callee}, get.String()); err != nil {
			return err
		}
		if err := e.method(st.short+"setterInOne", "void", []ir.Param{mtd, callee, v}, set.String()); err != nil {
			return err
		}
		pos := ir.Param{Type: "int", Name: "pos"}
		if err := e.method(st.short+"constructorInOne", "void", []ir.Param{mtd, callee, v, pos}, ctor.String()); err != nil {
			return err
		}
	}
	return nil
}

// addDelegate emits delegateInOne: the adapter forwards to whichever
// zero-arg void method the solver picks as adaptee.
func (e *encoder) addDelegate() error {
	adapter := e.layout.FieldName(accessor.RoleKey{Category: accessor.Adapter})
	adaptee := e.layout.FieldName(accessor.RoleKey{Category: accessor.Adaptee})
	var b lines
	b.add("if (%s > %d) {\n  return;\n}", DelegateDepth, e.counts.Delegate)
	b.add("%s = %s + 1;", DelegateDepth, DelegateDepth)
	b.add("if (mtd_id == %s) {", adapter)
	for _, m := range e.delegates {
		b.add("  if (%s == %d) {\n    ((%s) callee).%s();\n  }", adaptee, m.ID, qualifiedName(m.Clazz), m.Name)
	}
	b.add("}")
	b.add("%s = %s - 1;", DelegateDepth, DelegateDepth)
	return e.method("delegateInOne", "void", []ir.Param{{Type: "int", Name: "mtd_id"}, {Type: "Object", Name: "callee"}}, b.String())
}

func qualifiedName(c *ir.Clazz) string {
	if c.Outer == nil {
		return c.Name
	}
	return qualifiedName(c.Outer) + "." + c.Name
}
