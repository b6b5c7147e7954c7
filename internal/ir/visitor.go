package ir

import (
	"fmt"
)

// MaxRewriteDepth bounds how many times in a row a statement handler may
// replace a node with a different node at the same position before Walk
// gives up. A replacement smaller than the node it replaces resets the
// count, so unwrapping nested branches never hits the bound.
const MaxRewriteDepth = 64

// Visitor is implemented by every pass. There is deliberately no embeddable
// no-op visitor: each pass states what it does for every node kind.
//
// VisitStmt returns the statements that take the place of s: nil or empty
// deletes it, several splice in, and []Stmt{s} keeps it. Any returned node
// other than s is visited in turn before Walk descends into it.
//
// VisitExpr returns the expression that takes the place of e; Walk then
// descends into the children of the returned expression.
type Visitor interface {
	VisitTemplate(t *Template) error
	VisitClazz(c *Clazz) error
	VisitField(f *Field) error
	VisitMethod(m *Method) error
	VisitStmt(s Stmt) ([]Stmt, error)
	VisitExpr(e Expr) (Expr, error)
}

// UnhandledNodeError reports a node kind a pass or the walker does not
// know how to process.
type UnhandledNodeError struct {
	Pass string
	Node any
}

func (e *UnhandledNodeError) Error() string {
	if e.Pass == "" {
		return fmt.Sprintf("unhandled node kind %T", e.Node)
	}
	return fmt.Sprintf("%s: unhandled node kind %T", e.Pass, e.Node)
}

// Unhandled builds the error a pass returns from the default branch of its
// type switch.
func Unhandled(pass string, node any) error {
	return &UnhandledNodeError{Pass: pass, Node: node}
}

// Walk traverses t pre-order, depth first, siblings in source order.
// Class, field and method lists are snapshotted before they are walked, so
// handlers may add or remove members of the node being visited.
func Walk(t *Template, v Visitor) error {
	if err := v.VisitTemplate(t); err != nil {
		return err
	}
	classes := append([]*Clazz(nil), t.Classes...)
	for _, c := range classes {
		if err := walkClazz(c, v); err != nil {
			return err
		}
	}
	return nil
}

func walkClazz(c *Clazz, v Visitor) error {
	if err := v.VisitClazz(c); err != nil {
		return err
	}
	for _, f := range append([]*Field(nil), c.Fields...) {
		if err := v.VisitField(f); err != nil {
			return err
		}
		if f.Init != nil {
			init, err := walkExpr(f.Init, v)
			if err != nil {
				return err
			}
			f.Init = init
		}
	}
	for _, m := range append([]*Method(nil), c.Methods...) {
		if err := WalkMethod(m, v); err != nil {
			return err
		}
	}
	for _, in := range append([]*Clazz(nil), c.Inners...) {
		if err := walkClazz(in, v); err != nil {
			return err
		}
	}
	return nil
}

// WalkMethod visits m and then its body.
func WalkMethod(m *Method, v Visitor) error {
	if err := v.VisitMethod(m); err != nil {
		return err
	}
	body, err := WalkStmts(m.Body, v)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Signature(), err)
	}
	m.Body = body
	return nil
}

// WalkStmts visits a statement list and returns the flattened result.
func WalkStmts(ss []Stmt, v Visitor) ([]Stmt, error) {
	if len(ss) == 0 {
		return ss, nil
	}
	out := make([]Stmt, 0, len(ss))
	for _, s := range ss {
		got, err := walkStmt(s, v, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}

func walkStmt(s Stmt, v Visitor, depth int) ([]Stmt, error) {
	if depth > MaxRewriteDepth {
		return nil, fmt.Errorf("statement rewritten more than %d times in place", MaxRewriteDepth)
	}
	repl, err := v.VisitStmt(s)
	if err != nil {
		return nil, err
	}
	out := make([]Stmt, 0, len(repl))
	for _, r := range repl {
		if r != s {
			next := depth + 1
			if stmtSize(r) < stmtSize(s) {
				next = 0
			}
			got, err := walkStmt(r, v, next)
			if err != nil {
				return nil, err
			}
			out = append(out, got...)
			continue
		}
		if err := descendStmt(r, v); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// stmtSize counts s and the statements nested in it.
func stmtSize(s Stmt) int {
	n := 1
	count := func(ss []Stmt) {
		for _, c := range ss {
			n += stmtSize(c)
		}
	}
	switch x := s.(type) {
	case *IfStmt:
		count(x.Then)
		count(x.Else)
	case *WhileStmt:
		count(x.Body)
	case *RepeatStmt:
		count(x.Body)
	case *LoopStmt:
		count(x.Init)
		count(x.Body)
	case *ForStmt:
		count(x.Body)
	case *TryStmt:
		count(x.Body)
		for _, c := range x.Catches {
			count(c.Body)
		}
		count(x.Finally)
	}
	return n
}

func descendStmt(s Stmt, v Visitor) error {
	var err error
	expr := func(e *Expr) {
		if err == nil && *e != nil {
			*e, err = walkExpr(*e, v)
		}
	}
	stmts := func(ss *[]Stmt) {
		if err == nil {
			*ss, err = WalkStmts(*ss, v)
		}
	}
	switch x := s.(type) {
	case *ExprStmt:
		expr(&x.X)
	case *AssertStmt:
		expr(&x.Cond)
	case *ReturnStmt:
		expr(&x.Value)
	case *AssignStmt:
		expr(&x.LHS)
		expr(&x.RHS)
	case *IfStmt:
		expr(&x.Cond)
		stmts(&x.Then)
		stmts(&x.Else)
	case *WhileStmt:
		expr(&x.Cond)
		stmts(&x.Body)
	case *RepeatStmt:
		expr(&x.Count)
		stmts(&x.Body)
	case *LoopStmt:
		stmts(&x.Init)
		expr(&x.Cond)
		for i := range x.Update {
			expr(&x.Update[i])
		}
		stmts(&x.Body)
	case *ForStmt:
		expr(&x.Var)
		expr(&x.Iter)
		stmts(&x.Body)
	case *TryStmt:
		stmts(&x.Body)
		for i := range x.Catches {
			stmts(&x.Catches[i].Body)
		}
		stmts(&x.Finally)
	default:
		return Unhandled("walk", s)
	}
	return err
}

func walkExpr(e Expr, v Visitor) (Expr, error) {
	r, err := v.VisitExpr(e)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("expression handler returned nil for %T", e)
	}
	child := func(c *Expr) {
		if err == nil && *c != nil {
			*c, err = walkExpr(*c, v)
		}
	}
	children := func(cs []Expr) {
		for i := range cs {
			child(&cs[i])
		}
	}
	switch x := r.(type) {
	case *Ident, *Lit, *Hole, *Raw:
	case *Gen:
		children(x.Choices)
	case *Call:
		child(&x.Recv)
		children(x.Args)
	case *FieldAccess:
		child(&x.Recv)
	case *Index:
		child(&x.X)
		child(&x.Index)
	case *Unary:
		child(&x.X)
	case *Binary:
		child(&x.L)
		child(&x.R)
	case *Cond:
		child(&x.Cond)
		child(&x.Then)
		child(&x.Else)
	case *Cast:
		child(&x.X)
	case *New:
		children(x.Args)
	case *NewArray:
		child(&x.Len)
	case *Paren:
		child(&x.X)
	default:
		return nil, Unhandled("walk", r)
	}
	return r, err
}
