package ir

import (
	"fmt"
	"strings"
)

// Clazz is a class or interface declaration.
type Clazz struct {
	ID         int
	Name       string
	Mods       []string
	Super      string
	Interfaces []string

	// Subs lists direct subclasses and implementors within the template.
	Subs   []*Clazz
	Outer  *Clazz
	Inners []*Clazz

	Fields  []*Field
	Methods []*Method

	IsInterface bool
	IsAux       bool
	IsClient    bool
}

// IsClass reports whether c is a class rather than an interface.
func (c *Clazz) IsClass() bool { return !c.IsInterface }

// HasMod reports whether c carries the given modifier or annotation.
func (c *Clazz) HasMod(mod string) bool { return hasMod(c.Mods, mod) }

// AddField appends f and takes ownership of it.
func (c *Clazz) AddField(f *Field) {
	f.Clazz = c
	c.Fields = append(c.Fields, f)
}

// FieldByName returns the field called name, or nil.
func (c *Clazz) FieldByName(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RemoveField drops the field called name and reports whether it existed.
func (c *Clazz) RemoveField(name string) bool {
	for i, f := range c.Fields {
		if f.Name == name {
			c.Fields = append(c.Fields[:i:i], c.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// AddMethod appends m and takes ownership of it.
func (c *Clazz) AddMethod(m *Method) {
	m.Clazz = c
	c.Methods = append(c.Methods, m)
}

// MethodByName returns the first method called name, or nil.
func (c *Clazz) MethodByName(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// AddInner nests in inside c.
func (c *Clazz) AddInner(in *Clazz) {
	in.Outer = c
	c.Inners = append(c.Inners, in)
}

func (c *Clazz) String() string { return c.Format(ExprString) }

// Format prints the class declaration with its members.
func (c *Clazz) Format(p ExprPrinter) string {
	var b strings.Builder
	c.write(&b, p, "")
	return strings.TrimRight(b.String(), "\n")
}

func (c *Clazz) write(b *strings.Builder, p ExprPrinter, indent string) {
	b.WriteString(indent)
	b.WriteString(joinMods(c.Mods))
	if c.IsInterface {
		b.WriteString("interface ")
	} else {
		b.WriteString("class ")
	}
	b.WriteString(c.Name)
	if c.Super != "" {
		b.WriteString(" extends " + c.Super)
	}
	if len(c.Interfaces) > 0 {
		if c.IsInterface {
			b.WriteString(" extends ")
		} else {
			b.WriteString(" implements ")
		}
		b.WriteString(strings.Join(c.Interfaces, ", "))
	}
	b.WriteString(" {\n")
	inner := indent + Indent
	for _, f := range c.Fields {
		b.WriteString(inner)
		b.WriteString(f.Format(p))
		b.WriteString("\n")
	}
	for _, m := range c.Methods {
		for _, line := range strings.Split(m.Format(p), "\n") {
			b.WriteString(inner)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	for _, in := range c.Inners {
		in.write(b, p, inner)
	}
	b.WriteString(indent)
	b.WriteString("}\n")
}

func (c *Clazz) clone(outer *Clazz, remap map[*Clazz]*Clazz) *Clazz {
	n := &Clazz{
		ID:          c.ID,
		Name:        c.Name,
		Mods:        append([]string(nil), c.Mods...),
		Super:       c.Super,
		Interfaces:  append([]string(nil), c.Interfaces...),
		Subs:        append([]*Clazz(nil), c.Subs...),
		Outer:       outer,
		IsInterface: c.IsInterface,
		IsAux:       c.IsAux,
		IsClient:    c.IsClient,
	}
	remap[c] = n
	for _, f := range c.Fields {
		n.AddField(f.clone())
	}
	for _, m := range c.Methods {
		n.AddMethod(m.clone())
	}
	for _, in := range c.Inners {
		n.Inners = append(n.Inners, in.clone(n, remap))
	}
	return n
}

// Param is one formal parameter.
type Param struct {
	Type string
	Name string
}

// Method is a method or constructor. ID is assigned once when the template
// is built and is the only identity the solver ever sees.
type Method struct {
	ID     int
	Clazz  *Clazz
	Mods   []string
	Type   string
	Name   string
	Params []Param
	Body   []Stmt

	// Locals maps local variable names to declared types.
	Locals map[string]string

	IsConstructor bool
	IsStatic      bool
	IsAbstract    bool
}

// HasMod reports whether m carries the given modifier or annotation.
func (m *Method) HasMod(mod string) bool { return hasMod(m.Mods, mod) }

// IsVoid reports whether m returns nothing. Constructors count as void.
func (m *Method) IsVoid() bool { return m.IsConstructor || m.Type == "" || m.Type == "void" }

// HasReturn reports whether the body ends in a terminating return.
func (m *Method) HasReturn() bool { return terminates(m.Body) }

// Signature is the short "Owner.name(T1,T2)" form used in logs.
func (m *Method) Signature() string {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type
	}
	owner := "?"
	if m.Clazz != nil {
		owner = m.Clazz.Name
	}
	return fmt.Sprintf("%s.%s(%s)", owner, m.Name, strings.Join(types, ","))
}

// Local returns the type of a parameter or local variable in scope.
func (m *Method) Local(name string) (string, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p.Type, true
		}
	}
	if t, ok := m.Locals[name]; ok {
		return t, true
	}
	return "", false
}

// DeclareLocal records the type of a local variable.
func (m *Method) DeclareLocal(name, typ string) {
	if m.Locals == nil {
		m.Locals = make(map[string]string)
	}
	m.Locals[name] = typ
}

func (m *Method) String() string { return m.Format(ExprString) }

// Format prints the method. Abstract methods without a body print as a
// bare declaration.
func (m *Method) Format(p ExprPrinter) string {
	var b strings.Builder
	b.WriteString(joinMods(m.Mods))
	if !m.IsConstructor {
		b.WriteString(m.Type)
		b.WriteString(" ")
	}
	b.WriteString(m.Name)
	b.WriteString("(")
	for i, prm := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prm.Type + " " + prm.Name)
	}
	b.WriteString(")")
	if m.IsAbstract && len(m.Body) == 0 {
		b.WriteString(";")
		return b.String()
	}
	b.WriteString(" {\n")
	b.WriteString(FormatBody(m.Body, p, Indent))
	b.WriteString("}")
	return b.String()
}

func (m *Method) clone() *Method {
	n := &Method{
		ID:            m.ID,
		Mods:          append([]string(nil), m.Mods...),
		Type:          m.Type,
		Name:          m.Name,
		Params:        append([]Param(nil), m.Params...),
		Body:          CloneStmts(m.Body),
		IsConstructor: m.IsConstructor,
		IsStatic:      m.IsStatic,
		IsAbstract:    m.IsAbstract,
	}
	if m.Locals != nil {
		n.Locals = make(map[string]string, len(m.Locals))
		for k, v := range m.Locals {
			n.Locals[k] = v
		}
	}
	return n
}

// Field is a field declaration with an optional initializer.
type Field struct {
	Clazz *Clazz
	Mods  []string
	Type  string
	Name  string
	Init  Expr
}

// IsStatic reports whether the field is static.
func (f *Field) IsStatic() bool { return hasMod(f.Mods, "static") }

func (f *Field) String() string { return f.Format(ExprString) }

// Format prints the declaration including the trailing semicolon.
func (f *Field) Format(p ExprPrinter) string {
	s := joinMods(f.Mods) + f.Type + " " + f.Name
	if f.Init != nil {
		s += " = " + p(f.Init)
	}
	return s + ";"
}

func (f *Field) clone() *Field {
	return &Field{
		Mods: append([]string(nil), f.Mods...),
		Type: f.Type,
		Name: f.Name,
		Init: CloneExpr(f.Init),
	}
}

func hasMod(mods []string, mod string) bool {
	for _, m := range mods {
		if m == mod {
			return true
		}
	}
	return false
}

func joinMods(mods []string) string {
	if len(mods) == 0 {
		return ""
	}
	return strings.Join(mods, " ") + " "
}
