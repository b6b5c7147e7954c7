// Package ir holds the program model the synthesis passes operate on:
// templates, classes, methods, fields and the statement and expression
// trees inside method bodies.
package ir

import (
	"strings"
)

// Template is one synthesis unit: an ordered set of top-level classes plus
// the names of every auxiliary class generated for it.
type Template struct {
	Classes  []*Clazz
	AuxNames []string
}

// NewTemplate returns a template holding the given classes.
func NewTemplate(classes ...*Clazz) *Template {
	t := &Template{}
	t.AddClasses(classes...)
	return t
}

// AddClasses appends top-level classes.
func (t *Template) AddClasses(classes ...*Clazz) {
	for _, c := range classes {
		c.Outer = nil
		t.Classes = append(t.Classes, c)
	}
}

// RemoveClass detaches c from the template, wherever it is nested.
// It reports whether c was found.
func (t *Template) RemoveClass(c *Clazz) bool {
	if c.Outer != nil {
		outer := c.Outer
		for i, in := range outer.Inners {
			if in == c {
				outer.Inners = append(outer.Inners[:i:i], outer.Inners[i+1:]...)
				c.Outer = nil
				return true
			}
		}
		return false
	}
	for i, top := range t.Classes {
		if top == c {
			t.Classes = append(t.Classes[:i:i], t.Classes[i+1:]...)
			return true
		}
	}
	return false
}

// AllClasses flattens the class tree in pre-order: each class precedes its
// inner classes.
func (t *Template) AllClasses() []*Clazz {
	var out []*Clazz
	var visit func(c *Clazz)
	visit = func(c *Clazz) {
		out = append(out, c)
		for _, in := range c.Inners {
			visit(in)
		}
	}
	for _, c := range t.Classes {
		visit(c)
	}
	return out
}

// ClassByName finds a class by simple name. Generic arguments on the query
// are ignored.
func (t *Template) ClassByName(name string) *Clazz {
	name = BaseType(name)
	for _, c := range t.AllClasses() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ClassByID finds a class by id.
func (t *Template) ClassByID(id int) *Clazz {
	for _, c := range t.AllClasses() {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Methods returns every method of every class in pre-order.
func (t *Template) Methods() []*Method {
	var out []*Method
	for _, c := range t.AllClasses() {
		out = append(out, c.Methods...)
	}
	return out
}

// MethodByID finds a method by id.
func (t *Template) MethodByID(id int) *Method {
	for _, c := range t.AllClasses() {
		for _, m := range c.Methods {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

// AuxClasses returns the auxiliary classes still attached to the template.
func (t *Template) AuxClasses() []*Clazz {
	var out []*Clazz
	for _, c := range t.AllClasses() {
		if c.IsAux {
			out = append(out, c)
		}
	}
	return out
}

// String prints every top-level class, separated by blank lines.
func (t *Template) String() string {
	return t.Format(ExprString)
}

// Format prints the template with a custom expression printer.
func (t *Template) Format(p ExprPrinter) string {
	parts := make([]string, 0, len(t.Classes))
	for _, c := range t.Classes {
		parts = append(parts, c.Format(p))
	}
	return strings.Join(parts, "\n\n")
}

// Clone deep-copies the template. Class links (Outer, Subs) and method
// owners point into the copy.
func (t *Template) Clone() *Template {
	remap := make(map[*Clazz]*Clazz)
	out := &Template{AuxNames: append([]string(nil), t.AuxNames...)}
	for _, c := range t.Classes {
		out.Classes = append(out.Classes, c.clone(nil, remap))
	}
	for _, c := range out.AllClasses() {
		for i, s := range c.Subs {
			if n, ok := remap[s]; ok {
				c.Subs[i] = n
			}
		}
	}
	return out
}
