// Package cleanup normalizes method bodies after decoding so the printed
// program is well-formed: no holes, no literal branches, no empty bodies
// and no missing returns.
package cleanup

import (
	"errors"
	"fmt"

	"pasket/internal/ir"
	"pasket/internal/logging"
)

// ErrEmptyBody means a non-abstract method was still empty after cleanup.
var ErrEmptyBody = errors.New("method body still empty after cleanup")

// DefaultArrayLen is the length given to array fields declared without an
// initializer.
const DefaultArrayLen = 256

// Stats counts what one cleanup run changed.
type Stats struct {
	Pruned  int // literal if statements reduced to a branch
	Holes   int // holes and generators replaced by a literal
	Returns int // default returns appended
	Guards  int // guards placed into empty bodies
	Arrays  int // array fields given an initializer
}

// Run cleans every method of t in place. Auxiliary classes are left as
// they are. Interfaces lose their holes and literal branches but keep
// their bodies and fields otherwise.
func Run(t *ir.Template) (*Stats, error) {
	c := &cleaner{stats: &Stats{}}
	if err := ir.Walk(t, c); err != nil {
		return nil, fmt.Errorf("cleanup: %w", err)
	}
	for _, m := range c.methods {
		c.finish(m)
	}
	if err := Check(t); err != nil {
		return nil, fmt.Errorf("cleanup: %w", err)
	}
	logging.CleanupDebug("cleanup: %+v", *c.stats)
	return c.stats, nil
}

// Check returns ErrEmptyBody for the first non-abstract method of a
// regular class whose body is empty.
func Check(t *ir.Template) error {
	for _, cls := range t.AllClasses() {
		if skipped(cls) {
			continue
		}
		for _, m := range cls.Methods {
			if !m.IsAbstract && len(m.Body) == 0 {
				return fmt.Errorf("%w: %s", ErrEmptyBody, m.Signature())
			}
		}
	}
	return nil
}

type cleaner struct {
	stats   *Stats
	skip    bool // aux class or interface
	aux     bool
	methods []*ir.Method
}

func skipped(c *ir.Clazz) bool {
	return c == nil || c.IsAux || c.IsInterface
}

// VisitTemplate implements ir.Visitor.
func (c *cleaner) VisitTemplate(*ir.Template) error { return nil }

// VisitClazz implements ir.Visitor.
func (c *cleaner) VisitClazz(cls *ir.Clazz) error {
	c.skip = skipped(cls)
	c.aux = cls == nil || cls.IsAux
	return nil
}

// VisitField gives uninitialized array fields a fixed-size array.
func (c *cleaner) VisitField(f *ir.Field) error {
	if c.skip || f.Init != nil || !ir.IsArray(f.Type) {
		return nil
	}
	f.Init = &ir.NewArray{Type: ir.ElemType(f.Type), Len: ir.Int(DefaultArrayLen)}
	c.stats.Arrays++
	return nil
}

// VisitMethod empties abstract methods and queues the rest for the checks
// that need the cleaned body.
func (c *cleaner) VisitMethod(m *ir.Method) error {
	c.skip = skipped(m.Clazz)
	c.aux = m.Clazz == nil || m.Clazz.IsAux
	if c.skip {
		return nil
	}
	if m.IsAbstract {
		m.Body = nil
		return nil
	}
	c.methods = append(c.methods, m)
	return nil
}

// finish appends a default return where one is missing and guards empty
// bodies.
func (c *cleaner) finish(m *ir.Method) {
	if !m.IsVoid() && !m.HasReturn() {
		m.Body = append(m.Body, &ir.ReturnStmt{Value: ir.DefaultValue(m.Type)})
		c.stats.Returns++
	}
	if len(m.Body) == 0 {
		m.Body = []ir.Stmt{ir.Guard()}
		c.stats.Guards++
	}
}

// VisitStmt reduces if statements with a constant condition to the branch
// taken. The walker revisits the branch, so nested constants fold too.
func (c *cleaner) VisitStmt(s ir.Stmt) ([]ir.Stmt, error) {
	switch x := s.(type) {
	case *ir.IfStmt:
		if c.aux {
			return []ir.Stmt{s}, nil
		}
		taken, ok := constant(x.Cond)
		if !ok {
			return []ir.Stmt{s}, nil
		}
		c.stats.Pruned++
		if taken {
			return x.Then, nil
		}
		return x.Else, nil
	case *ir.ExprStmt, *ir.AssertStmt, *ir.ReturnStmt, *ir.AssignStmt, *ir.WhileStmt,
		*ir.RepeatStmt, *ir.LoopStmt, *ir.ForStmt, *ir.TryStmt:
		return []ir.Stmt{s}, nil
	default:
		return nil, ir.Unhandled("cleanup", s)
	}
}

// constant evaluates a branch condition. Holes and generators count as the
// literal they are about to be replaced with.
func constant(e ir.Expr) (bool, bool) {
	switch x := e.(type) {
	case *ir.Hole:
		return false, true
	case *ir.Gen:
		if len(x.Choices) == 0 {
			return false, true
		}
		return constant(x.Choices[0])
	case *ir.Paren:
		return constant(x.X)
	}
	return ir.Truth(e)
}

// VisitExpr replaces leftover holes with 0 and generators with their first
// choice.
func (c *cleaner) VisitExpr(e ir.Expr) (ir.Expr, error) {
	switch x := e.(type) {
	case *ir.Hole:
		if c.aux {
			return e, nil
		}
		c.stats.Holes++
		return ir.Int(0), nil
	case *ir.Gen:
		if c.aux {
			return e, nil
		}
		c.stats.Holes++
		if len(x.Choices) == 0 {
			return ir.Int(0), nil
		}
		return ir.CloneExpr(x.Choices[0]), nil
	case *ir.Ident, *ir.Lit, *ir.Call, *ir.FieldAccess, *ir.Index, *ir.Unary, *ir.Binary,
		*ir.Cond, *ir.Cast, *ir.New, *ir.NewArray, *ir.Paren, *ir.Raw:
		return e, nil
	default:
		return nil, ir.Unhandled("cleanup", e)
	}
}
