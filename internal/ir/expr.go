package ir

import "strconv"

// Expr is an expression node. The set of variants is closed; passes switch
// over it exhaustively.
type Expr interface {
	exprNode()
}

// Ident is a name. With Decl set it prints as a declaration ("T x").
type Ident struct {
	Name string
	Type string
	Decl bool
}

// LitKind classifies literals.
type LitKind int

const (
	IntLit LitKind = iota
	FloatLit
	BoolLit
	CharLit
	StringLit
	NullLit
)

// Lit is a literal; Value holds its source text.
type Lit struct {
	Kind  LitKind
	Value string
}

// Hole is an unresolved choice the solver fills.
type Hole struct{}

// Gen is a solver-controlled choice among a fixed set of expressions.
type Gen struct {
	Choices []Expr
}

// Call is a method call. Site carries the id of the method whose body was
// rerouted through this call, or 0 for ordinary calls.
type Call struct {
	Recv Expr
	Name string
	Args []Expr
	Site int
}

// FieldAccess is "recv.name".
type FieldAccess struct {
	Recv Expr
	Name string
}

// Index is "x[i]".
type Index struct {
	X     Expr
	Index Expr
}

// Unary is a prefix or postfix operator application.
type Unary struct {
	Op      string
	X       Expr
	Postfix bool
}

// Binary is "l op r". Compound assignments use it too.
type Binary struct {
	Op string
	L  Expr
	R  Expr
}

// Cond is "c ? a : b".
type Cond struct {
	Cond Expr
	Then Expr
	Else Expr
}

// Cast is "(T) x".
type Cast struct {
	Type string
	X    Expr
}

// New is "new T(args)".
type New struct {
	Type string
	Args []Expr
}

// NewArray is "new T[len]".
type NewArray struct {
	Type string
	Len  Expr
}

// Paren is "(x)".
type Paren struct {
	X Expr
}

// Raw is expression text carried through verbatim.
type Raw struct {
	Text string
}

func (*Ident) exprNode()       {}
func (*Lit) exprNode()         {}
func (*Hole) exprNode()        {}
func (*Gen) exprNode()         {}
func (*Call) exprNode()        {}
func (*FieldAccess) exprNode() {}
func (*Index) exprNode()       {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Cond) exprNode()        {}
func (*Cast) exprNode()        {}
func (*New) exprNode()         {}
func (*NewArray) exprNode()    {}
func (*Paren) exprNode()       {}
func (*Raw) exprNode()         {}

// Constructors for the literals the passes emit.

func Int(v int) *Lit          { return &Lit{Kind: IntLit, Value: strconv.Itoa(v)} }
func Bool(v bool) *Lit        { return &Lit{Kind: BoolLit, Value: strconv.FormatBool(v)} }
func Null() *Lit              { return &Lit{Kind: NullLit, Value: "null"} }
func Name(name string) *Ident { return &Ident{Name: name} }

// CloneExpr deep-copies e. A nil expression clones to nil.
func CloneExpr(e Expr) Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *Ident:
		n := *x
		return &n
	case *Lit:
		n := *x
		return &n
	case *Hole:
		return &Hole{}
	case *Gen:
		return &Gen{Choices: cloneExprs(x.Choices)}
	case *Call:
		return &Call{Recv: CloneExpr(x.Recv), Name: x.Name, Args: cloneExprs(x.Args), Site: x.Site}
	case *FieldAccess:
		return &FieldAccess{Recv: CloneExpr(x.Recv), Name: x.Name}
	case *Index:
		return &Index{X: CloneExpr(x.X), Index: CloneExpr(x.Index)}
	case *Unary:
		return &Unary{Op: x.Op, X: CloneExpr(x.X), Postfix: x.Postfix}
	case *Binary:
		return &Binary{Op: x.Op, L: CloneExpr(x.L), R: CloneExpr(x.R)}
	case *Cond:
		return &Cond{Cond: CloneExpr(x.Cond), Then: CloneExpr(x.Then), Else: CloneExpr(x.Else)}
	case *Cast:
		return &Cast{Type: x.Type, X: CloneExpr(x.X)}
	case *New:
		return &New{Type: x.Type, Args: cloneExprs(x.Args)}
	case *NewArray:
		return &NewArray{Type: x.Type, Len: CloneExpr(x.Len)}
	case *Paren:
		return &Paren{X: CloneExpr(x.X)}
	case *Raw:
		n := *x
		return &n
	default:
		panic(&UnhandledNodeError{Node: e})
	}
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CloneExpr(e)
	}
	return out
}
