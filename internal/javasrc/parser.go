// Package javasrc turns Java source text into the ir model using the
// tree-sitter Java grammar. It parses whole template files as well as
// statement snippets scoped to an existing method.
package javasrc

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"pasket/internal/ir"
)

// Parser wraps a tree-sitter parser configured for Java. It is not safe for
// concurrent use; create one per goroutine.
type Parser struct {
	p *sitter.Parser
}

// NewParser creates a Java parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{p: p}
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	p.p.Close()
}

func (p *Parser) parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	return tree, nil
}

const (
	snippetHead  = "class __Snippet {\nvoid __snippet() {\n"
	snippetTail  = "\n}\n}\n"
	exprHead     = "class __Snippet {\nObject __e =\n"
	exprTail     = "\n;\n}\n"
	wrapperLines = 2
)

// Statements parses src as a statement sequence in the scope of m.
// Parameters, locals and fields of m's class resolve identifier types;
// local declarations in src are recorded on m. m may be nil.
func (p *Parser) Statements(ctx context.Context, m *ir.Method, src string) ([]ir.Stmt, error) {
	text := []byte(snippetHead + src + snippetTail)
	tree, err := p.parse(ctx, text)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if err := checkSyntax(root, text, "snippet", wrapperLines); err != nil {
		return nil, err
	}
	body := descend(root, "class_declaration", "body", "method_declaration", "body")
	if body == nil {
		return nil, fmt.Errorf("snippet: unexpected tree shape")
	}
	// src must not close the wrapper method and continue outside it
	if err := singleMember(root, text); err != nil {
		return nil, err
	}
	if end := uint32(len(snippetHead) + len(src)); body.EndByte() < end {
		return nil, escapeError(text, body.EndByte())
	}
	sc := &scope{src: text, m: m}
	return sc.block(body), nil
}

// Expression parses src as a single expression in the scope of m.
func (p *Parser) Expression(ctx context.Context, m *ir.Method, src string) (ir.Expr, error) {
	text := []byte(exprHead + src + exprTail)
	tree, err := p.parse(ctx, text)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if err := checkSyntax(root, text, "snippet", wrapperLines); err != nil {
		return nil, err
	}
	if err := singleMember(root, text); err != nil {
		return nil, err
	}
	field := descend(root, "class_declaration", "body", "field_declaration")
	if field == nil {
		return nil, fmt.Errorf("expression: unexpected tree shape")
	}
	if decls := namedChildren(field, "variable_declarator"); len(decls) > 1 {
		return nil, escapeError(text, decls[0].EndByte())
	}
	decl := field.ChildByFieldName("declarator")
	if decl == nil || decl.ChildByFieldName("value") == nil {
		return nil, fmt.Errorf("expression: unexpected tree shape")
	}
	sc := &scope{src: text, m: m}
	return sc.expr(decl.ChildByFieldName("value")), nil
}

// singleMember rejects snippet text that added declarations next to the
// wrapper: a second class, or a second member of the wrapper class.
func singleMember(root *sitter.Node, text []byte) error {
	var members []*sitter.Node
	for _, n := range []*sitter.Node{root, descend(root, "class_declaration", "body")} {
		if n == nil {
			return fmt.Errorf("snippet: unexpected tree shape")
		}
		members = members[:0]
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "line_comment" && c.Type() != "block_comment" {
				members = append(members, c)
			}
		}
		if len(members) == 0 {
			return fmt.Errorf("snippet: unexpected tree shape")
		}
		if len(members) > 1 {
			return escapeError(text, members[0].EndByte())
		}
	}
	return nil
}

// Statements is a one-shot convenience around Parser.Statements.
func Statements(m *ir.Method, src string) ([]ir.Stmt, error) {
	p := NewParser()
	defer p.Close()
	return p.Statements(context.Background(), m, src)
}

// Expression is a one-shot convenience around Parser.Expression.
func Expression(m *ir.Method, src string) (ir.Expr, error) {
	p := NewParser()
	defer p.Close()
	return p.Expression(context.Background(), m, src)
}

// descend follows a path of node types (first matching named child) or
// field names.
func descend(n *sitter.Node, path ...string) *sitter.Node {
	for _, step := range path {
		if n == nil {
			return nil
		}
		if next := n.ChildByFieldName(step); next != nil {
			n = next
			continue
		}
		n = namedChildOfType(n, step)
	}
	return n
}

func namedChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

// scope maps syntax nodes into ir inside one method.
type scope struct {
	src []byte
	m   *ir.Method
}

func (s *scope) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(s.src)
}

func (s *scope) lookup(name string) string {
	if s.m == nil {
		return ""
	}
	if t, ok := s.m.Local(name); ok {
		return t
	}
	if s.m.Clazz != nil {
		if f := s.m.Clazz.FieldByName(name); f != nil {
			return f.Type
		}
	}
	return ""
}

func (s *scope) declare(name, typ string) {
	if s.m != nil {
		s.m.DeclareLocal(name, typ)
	}
}

func (s *scope) block(n *sitter.Node) []ir.Stmt {
	var out []ir.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, s.stmt(n.NamedChild(i))...)
	}
	return out
}

// body maps a statement used as a loop or branch body.
func (s *scope) body(n *sitter.Node) []ir.Stmt {
	if n == nil {
		return nil
	}
	return s.stmt(n)
}

func (s *scope) stmt(n *sitter.Node) []ir.Stmt {
	switch n.Type() {
	case "line_comment", "block_comment":
		return nil
	case "block", "constructor_body":
		return s.block(n)
	case "local_variable_declaration":
		return s.localDecl(n)
	case "expression_statement":
		return []ir.Stmt{s.exprStmt(n.NamedChild(0))}
	case "return_statement":
		if n.NamedChildCount() == 0 {
			return []ir.Stmt{&ir.ReturnStmt{}}
		}
		return []ir.Stmt{&ir.ReturnStmt{Value: s.expr(n.NamedChild(0))}}
	case "assert_statement":
		return []ir.Stmt{&ir.AssertStmt{Cond: s.expr(n.NamedChild(0))}}
	case "if_statement":
		return []ir.Stmt{&ir.IfStmt{
			Cond: s.expr(unparen(n.ChildByFieldName("condition"))),
			Then: s.body(n.ChildByFieldName("consequence")),
			Else: s.body(n.ChildByFieldName("alternative")),
		}}
	case "while_statement":
		return []ir.Stmt{&ir.WhileStmt{
			Cond: s.expr(unparen(n.ChildByFieldName("condition"))),
			Body: s.body(n.ChildByFieldName("body")),
		}}
	case "for_statement":
		return s.forLoop(n)
	case "enhanced_for_statement":
		typ := s.text(n.ChildByFieldName("type"))
		name := s.text(n.ChildByFieldName("name"))
		s.declare(name, typ)
		return []ir.Stmt{&ir.ForStmt{
			Var:  &ir.Ident{Name: name, Type: typ, Decl: true},
			Iter: s.expr(n.ChildByFieldName("value")),
			Body: s.body(n.ChildByFieldName("body")),
		}}
	case "try_statement":
		return []ir.Stmt{s.try(n)}
	}
	text := strings.TrimSuffix(strings.TrimSpace(s.text(n)), ";")
	return []ir.Stmt{&ir.ExprStmt{X: &ir.Raw{Text: text}}}
}

func (s *scope) localDecl(n *sitter.Node) []ir.Stmt {
	typ := s.text(n.ChildByFieldName("type"))
	var out []ir.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		name := s.text(d.ChildByFieldName("name"))
		s.declare(name, typ)
		lhs := &ir.Ident{Name: name, Type: typ, Decl: true}
		if v := d.ChildByFieldName("value"); v != nil {
			out = append(out, &ir.AssignStmt{LHS: lhs, RHS: s.expr(v)})
		} else {
			out = append(out, &ir.ExprStmt{X: lhs})
		}
	}
	return out
}

// exprStmt keeps plain assignments as AssignStmt; compound assignments and
// everything else become expression statements.
func (s *scope) exprStmt(n *sitter.Node) ir.Stmt {
	if n.Type() == "assignment_expression" && s.text(n.ChildByFieldName("operator")) == "=" {
		return &ir.AssignStmt{
			LHS: s.expr(n.ChildByFieldName("left")),
			RHS: s.expr(n.ChildByFieldName("right")),
		}
	}
	return &ir.ExprStmt{X: s.expr(n)}
}

// forLoop keeps a classic for loop whole, so continue still runs the
// update and the loop variable stays scoped to the loop.
func (s *scope) forLoop(n *sitter.Node) []ir.Stmt {
	loop := &ir.LoopStmt{}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch n.FieldNameForChild(i) {
		case "init":
			if c.Type() == "local_variable_declaration" {
				loop.Init = append(loop.Init, s.localDecl(c)...)
			} else {
				loop.Init = append(loop.Init, s.exprStmt(c))
			}
		case "update":
			loop.Update = append(loop.Update, s.expr(c))
		}
	}
	if c := n.ChildByFieldName("condition"); c != nil {
		loop.Cond = s.expr(c)
	}
	loop.Body = s.body(n.ChildByFieldName("body"))
	return []ir.Stmt{loop}
}

func (s *scope) try(n *sitter.Node) ir.Stmt {
	t := &ir.TryStmt{Body: s.body(n.ChildByFieldName("body"))}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "catch_clause":
			param := namedChildOfType(c, "catch_formal_parameter")
			var typ, name string
			if param != nil {
				typ = s.text(namedChildOfType(param, "catch_type"))
				name = s.text(param.ChildByFieldName("name"))
				s.declare(name, typ)
			}
			t.Catches = append(t.Catches, ir.Catch{Type: typ, Name: name, Body: s.body(c.ChildByFieldName("body"))})
		case "finally_clause":
			if b := namedChildOfType(c, "block"); b != nil {
				t.Finally = s.block(b)
			}
		}
	}
	return t
}

func unparen(n *sitter.Node) *sitter.Node {
	if n != nil && n.Type() == "parenthesized_expression" && n.NamedChildCount() == 1 {
		return n.NamedChild(0)
	}
	return n
}

func (s *scope) exprs(n *sitter.Node) []ir.Expr {
	if n == nil {
		return nil
	}
	out := []ir.Expr{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "line_comment" || c.Type() == "block_comment" {
			continue
		}
		out = append(out, s.expr(c))
	}
	return out
}

func (s *scope) expr(n *sitter.Node) ir.Expr {
	if n == nil {
		return &ir.Raw{}
	}
	switch n.Type() {
	case "identifier":
		name := s.text(n)
		return &ir.Ident{Name: name, Type: s.lookup(name)}
	case "this", "super":
		return &ir.Ident{Name: n.Type()}
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		return &ir.Lit{Kind: ir.IntLit, Value: s.text(n)}
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		return &ir.Lit{Kind: ir.FloatLit, Value: s.text(n)}
	case "true", "false":
		return &ir.Lit{Kind: ir.BoolLit, Value: n.Type()}
	case "null_literal":
		return ir.Null()
	case "character_literal":
		return &ir.Lit{Kind: ir.CharLit, Value: s.text(n)}
	case "string_literal":
		return &ir.Lit{Kind: ir.StringLit, Value: s.text(n)}
	case "parenthesized_expression":
		return &ir.Paren{X: s.expr(n.NamedChild(0))}
	case "method_invocation":
		call := &ir.Call{
			Name: s.text(n.ChildByFieldName("name")),
			Args: s.exprs(n.ChildByFieldName("arguments")),
		}
		if obj := n.ChildByFieldName("object"); obj != nil {
			call.Recv = s.expr(obj)
		}
		return call
	case "field_access":
		return &ir.FieldAccess{Recv: s.expr(n.ChildByFieldName("object")), Name: s.text(n.ChildByFieldName("field"))}
	case "array_access":
		return &ir.Index{X: s.expr(n.ChildByFieldName("array")), Index: s.expr(n.ChildByFieldName("index"))}
	case "assignment_expression", "binary_expression":
		return &ir.Binary{
			Op: s.text(n.ChildByFieldName("operator")),
			L:  s.expr(n.ChildByFieldName("left")),
			R:  s.expr(n.ChildByFieldName("right")),
		}
	case "unary_expression":
		return &ir.Unary{Op: s.text(n.ChildByFieldName("operator")), X: s.expr(n.ChildByFieldName("operand"))}
	case "update_expression":
		return s.update(n)
	case "ternary_expression":
		return &ir.Cond{
			Cond: s.expr(n.ChildByFieldName("condition")),
			Then: s.expr(n.ChildByFieldName("consequence")),
			Else: s.expr(n.ChildByFieldName("alternative")),
		}
	case "cast_expression":
		return &ir.Cast{Type: s.text(n.ChildByFieldName("type")), X: s.expr(n.ChildByFieldName("value"))}
	case "object_creation_expression":
		if namedChildOfType(n, "class_body") == nil {
			return &ir.New{Type: s.text(n.ChildByFieldName("type")), Args: s.exprs(n.ChildByFieldName("arguments"))}
		}
	case "array_creation_expression":
		if dims := namedChildren(n, "dimensions_expr"); len(dims) == 1 && namedChildOfType(n, "dimensions") == nil {
			return &ir.NewArray{Type: s.text(n.ChildByFieldName("type")), Len: s.expr(dims[0].NamedChild(0))}
		}
	}
	return &ir.Raw{Text: s.text(n)}
}

func (s *scope) update(n *sitter.Node) ir.Expr {
	u := &ir.Unary{}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.IsNamed() {
			u.X = s.expr(c)
			continue
		}
		u.Op = s.text(c)
		u.Postfix = u.X != nil
	}
	return u
}

func namedChildren(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}
