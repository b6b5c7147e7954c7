package ir

// Stmt is a statement node. Like Expr the variant set is closed.
type Stmt interface {
	stmtNode()
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	X Expr
}

// AssertStmt is "assert cond;".
type AssertStmt struct {
	Cond Expr
}

// ReturnStmt returns Value, or nothing when Value is nil.
type ReturnStmt struct {
	Value Expr
}

// AssignStmt is "lhs = rhs;". A declaring Ident on the left makes it a
// local variable declaration.
type AssignStmt struct {
	LHS Expr
	RHS Expr
}

// IfStmt carries both branches; Else may be empty.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

type WhileStmt struct {
	Cond Expr
	Body []Stmt
}

// RepeatStmt runs Body Count times.
type RepeatStmt struct {
	Count Expr
	Body  []Stmt
}

// LoopStmt is a classic "for (Init; Cond; Update)" loop. Cond may be nil.
// Init and the loop variable stay scoped to the loop.
type LoopStmt struct {
	Init   []Stmt
	Cond   Expr
	Update []Expr
	Body   []Stmt
}

// ForStmt iterates Var over Iter.
type ForStmt struct {
	Var  Expr
	Iter Expr
	Body []Stmt
}

// Catch is one catch clause of a TryStmt.
type Catch struct {
	Type string
	Name string
	Body []Stmt
}

type TryStmt struct {
	Body    []Stmt
	Catches []Catch
	Finally []Stmt
}

func (*ExprStmt) stmtNode()   {}
func (*AssertStmt) stmtNode() {}
func (*ReturnStmt) stmtNode() {}
func (*AssignStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*RepeatStmt) stmtNode() {}
func (*LoopStmt) stmtNode()   {}
func (*ForStmt) stmtNode()    {}
func (*TryStmt) stmtNode()    {}

// Guard is the harmless statement placed into bodies that would otherwise
// be empty: "if (null != null) return;".
func Guard() Stmt {
	return &IfStmt{
		Cond: &Binary{Op: "!=", L: Null(), R: Null()},
		Then: []Stmt{&ReturnStmt{}},
	}
}

// CloneStmts deep-copies a statement list.
func CloneStmts(ss []Stmt) []Stmt {
	if ss == nil {
		return nil
	}
	out := make([]Stmt, len(ss))
	for i, s := range ss {
		out[i] = CloneStmt(s)
	}
	return out
}

// CloneStmt deep-copies one statement.
func CloneStmt(s Stmt) Stmt {
	switch x := s.(type) {
	case *ExprStmt:
		return &ExprStmt{X: CloneExpr(x.X)}
	case *AssertStmt:
		return &AssertStmt{Cond: CloneExpr(x.Cond)}
	case *ReturnStmt:
		return &ReturnStmt{Value: CloneExpr(x.Value)}
	case *AssignStmt:
		return &AssignStmt{LHS: CloneExpr(x.LHS), RHS: CloneExpr(x.RHS)}
	case *IfStmt:
		return &IfStmt{Cond: CloneExpr(x.Cond), Then: CloneStmts(x.Then), Else: CloneStmts(x.Else)}
	case *WhileStmt:
		return &WhileStmt{Cond: CloneExpr(x.Cond), Body: CloneStmts(x.Body)}
	case *RepeatStmt:
		return &RepeatStmt{Count: CloneExpr(x.Count), Body: CloneStmts(x.Body)}
	case *LoopStmt:
		n := &LoopStmt{Init: CloneStmts(x.Init), Cond: CloneExpr(x.Cond), Body: CloneStmts(x.Body)}
		for _, u := range x.Update {
			n.Update = append(n.Update, CloneExpr(u))
		}
		return n
	case *ForStmt:
		return &ForStmt{Var: CloneExpr(x.Var), Iter: CloneExpr(x.Iter), Body: CloneStmts(x.Body)}
	case *TryStmt:
		n := &TryStmt{Body: CloneStmts(x.Body), Finally: CloneStmts(x.Finally)}
		for _, c := range x.Catches {
			n.Catches = append(n.Catches, Catch{Type: c.Type, Name: c.Name, Body: CloneStmts(c.Body)})
		}
		return n
	default:
		panic(&UnhandledNodeError{Node: s})
	}
}

// terminates reports whether control cannot fall off the end of body.
func terminates(body []Stmt) bool {
	if len(body) == 0 {
		return false
	}
	switch last := body[len(body)-1].(type) {
	case *ReturnStmt:
		return true
	case *IfStmt:
		return terminates(last.Then) && terminates(last.Else)
	case *TryStmt:
		if terminates(last.Finally) {
			return true
		}
		if !terminates(last.Body) {
			return false
		}
		for _, c := range last.Catches {
			if !terminates(c.Body) {
				return false
			}
		}
		return true
	case *ExprStmt:
		// throw statements are carried as raw text
		if r, ok := last.X.(*Raw); ok {
			return len(r.Text) >= 6 && r.Text[:6] == "throw "
		}
	}
	return false
}
