package ir

import (
	"strconv"
)

// GenContext hands out fresh ids and auxiliary class names for one run.
// Classes and methods share one id space. Never reset a context while its
// template is still in use; repeated encode and decode cycles in the same
// run must not collide.
type GenContext struct {
	lastID int
	auxSeq map[string]int
}

// NewGenContext returns a context whose first id is 1.
func NewGenContext() *GenContext {
	return &GenContext{auxSeq: make(map[string]int)}
}

// NextID returns a fresh id.
func (g *GenContext) NextID() int {
	g.lastID++
	return g.lastID
}

// Observe makes sure later ids are greater than id. Used when a template
// arrives with ids already assigned.
func (g *GenContext) Observe(id int) {
	if id > g.lastID {
		g.lastID = id
	}
}

// ObserveTemplate observes every class and method id in t.
func (g *GenContext) ObserveTemplate(t *Template) {
	for _, c := range t.AllClasses() {
		g.Observe(c.ID)
		for _, m := range c.Methods {
			g.Observe(m.ID)
		}
	}
}

// NextAuxName returns prefix1, prefix2, ... for successive calls with the
// same prefix.
func (g *GenContext) NextAuxName(prefix string) string {
	if g.auxSeq == nil {
		g.auxSeq = make(map[string]int)
	}
	g.auxSeq[prefix]++
	return prefix + strconv.Itoa(g.auxSeq[prefix])
}
