package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTemplate() *Template {
	base := &Clazz{ID: 10, Name: "Base"}
	base.AddMethod(&Method{ID: 11, Name: "id", Type: "int", Body: []Stmt{&ReturnStmt{Value: Int(1)}}})
	foo := sampleClass()
	foo.AddInner(&Clazz{ID: 20, Name: "Part"})
	base.Subs = []*Clazz{foo}
	return NewTemplate(base, foo)
}

func TestTemplateLookup(t *testing.T) {
	tmpl := sampleTemplate()

	names := []string{}
	for _, c := range tmpl.AllClasses() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Base", "Foo", "Part"}, names)

	require.NotNil(t, tmpl.MethodByID(3))
	assert.Equal(t, "getX", tmpl.MethodByID(3).Name)
	assert.Nil(t, tmpl.MethodByID(99))
	assert.Equal(t, "Part", tmpl.ClassByID(20).Name)
	assert.Equal(t, "Foo", tmpl.ClassByName("pkg.Foo<T>").Name)
	assert.Len(t, tmpl.Methods(), 4)
}

func TestTemplateRemoveClass(t *testing.T) {
	tmpl := sampleTemplate()
	part := tmpl.ClassByName("Part")

	assert.True(t, tmpl.RemoveClass(part))
	assert.Nil(t, tmpl.ClassByName("Part"))
	assert.False(t, tmpl.RemoveClass(part))

	foo := tmpl.ClassByName("Foo")
	assert.True(t, tmpl.RemoveClass(foo))
	assert.Len(t, tmpl.Classes, 1)
}

func TestTemplateClone(t *testing.T) {
	tmpl := sampleTemplate()
	tmpl.AuxNames = []string{"AuxAccessor1"}
	cp := tmpl.Clone()

	assert.Equal(t, tmpl.String(), cp.String())
	assert.Equal(t, tmpl.AuxNames, cp.AuxNames)

	foo := cp.ClassByName("Foo")
	assert.Same(t, foo, cp.ClassByName("Base").Subs[0], "subclass links point into the copy")
	assert.Same(t, foo, foo.Methods[0].Clazz)
	assert.Same(t, foo, cp.ClassByName("Part").Outer)

	// mutating the copy leaves the original alone
	foo.Methods[1].Body = nil
	cp.ClassByName("Base").Fields = append(cp.ClassByName("Base").Fields, &Field{Type: "int", Name: "z"})
	assert.NotEqual(t, tmpl.String(), cp.String())
	assert.Len(t, tmpl.ClassByName("Foo").Methods[1].Body, 1)
	assert.Empty(t, tmpl.ClassByName("Base").Fields)
}

func TestHasReturn(t *testing.T) {
	ret := &ReturnStmt{Value: Int(0)}
	tests := []struct {
		name string
		body []Stmt
		want bool
	}{
		{"empty", nil, false},
		{"plain", []Stmt{ret}, true},
		{"trailing call", []Stmt{ret, &ExprStmt{X: &Call{Name: "f"}}}, false},
		{"if both", []Stmt{&IfStmt{Cond: Name("c"), Then: []Stmt{ret}, Else: []Stmt{ret}}}, true},
		{"if one", []Stmt{&IfStmt{Cond: Name("c"), Then: []Stmt{ret}}}, false},
		{"throw", []Stmt{&ExprStmt{X: &Raw{Text: "throw new RuntimeException()"}}}, true},
		{"try", []Stmt{&TryStmt{Body: []Stmt{ret}, Catches: []Catch{{Type: "E", Name: "e", Body: []Stmt{ret}}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Method{Type: "int", Name: "f", Body: tt.body}
			assert.Equal(t, tt.want, m.HasReturn())
		})
	}
}

func TestGenContext(t *testing.T) {
	g := NewGenContext()
	assert.Equal(t, 1, g.NextID())
	g.ObserveTemplate(sampleTemplate())
	assert.Equal(t, 21, g.NextID())
	g.Observe(5)
	assert.Equal(t, 22, g.NextID())

	assert.Equal(t, "AuxAccessor1", g.NextAuxName("AuxAccessor"))
	assert.Equal(t, "AuxAccessor2", g.NextAuxName("AuxAccessor"))
	assert.Equal(t, "Other1", g.NextAuxName("Other"))
}
