package ir

import (
	"strings"
)

// Indent is one level of nesting in printed output.
const Indent = "  "

// ExprPrinter renders an expression as source text.
type ExprPrinter func(Expr) string

// ExprString is the default expression printer.
func ExprString(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e, ExprString)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr, p ExprPrinter) {
	switch x := e.(type) {
	case nil:
	case *Ident:
		if x.Decl && x.Type != "" {
			b.WriteString(x.Type + " ")
		}
		b.WriteString(x.Name)
	case *Lit:
		b.WriteString(x.Value)
	case *Hole:
		b.WriteString("??")
	case *Gen:
		b.WriteString("{|")
		for i, c := range x.Choices {
			if i > 0 {
				b.WriteString(" |")
			}
			b.WriteString(" " + p(c))
		}
		b.WriteString(" |}")
	case *Call:
		if x.Recv != nil {
			b.WriteString(p(x.Recv) + ".")
		}
		b.WriteString(x.Name + "(" + joinExprs(x.Args, p) + ")")
	case *FieldAccess:
		b.WriteString(p(x.Recv) + "." + x.Name)
	case *Index:
		b.WriteString(p(x.X) + "[" + p(x.Index) + "]")
	case *Unary:
		if x.Postfix {
			b.WriteString(p(x.X) + x.Op)
		} else {
			b.WriteString(x.Op + p(x.X))
		}
	case *Binary:
		b.WriteString(p(x.L) + " " + x.Op + " " + p(x.R))
	case *Cond:
		b.WriteString(p(x.Cond) + " ? " + p(x.Then) + " : " + p(x.Else))
	case *Cast:
		b.WriteString("(" + x.Type + ") " + p(x.X))
	case *New:
		b.WriteString("new " + x.Type + "(" + joinExprs(x.Args, p) + ")")
	case *NewArray:
		b.WriteString("new " + x.Type + "[" + p(x.Len) + "]")
	case *Paren:
		b.WriteString("(" + p(x.X) + ")")
	case *Raw:
		b.WriteString(x.Text)
	default:
		panic(&UnhandledNodeError{Node: e})
	}
}

func joinExprs(es []Expr, p ExprPrinter) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = p(e)
	}
	return strings.Join(parts, ", ")
}

// StmtString prints s with the default expression printer.
func StmtString(s Stmt) string { return FormatStmt(s, ExprString) }

// FormatStmt prints one statement. Nested bodies are indented; the result
// has no trailing newline.
func FormatStmt(s Stmt, p ExprPrinter) string {
	var b strings.Builder
	writeStmt(&b, s, p, "")
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatBody prints a statement list, one line per output line, each
// prefixed with indent.
func FormatBody(ss []Stmt, p ExprPrinter, indent string) string {
	var b strings.Builder
	for _, s := range ss {
		writeStmt(&b, s, p, indent)
	}
	return b.String()
}

func writeStmt(b *strings.Builder, s Stmt, p ExprPrinter, indent string) {
	line := func(text string) {
		b.WriteString(indent + text + "\n")
	}
	block := func(head string, body []Stmt) {
		line(head + " {")
		b.WriteString(FormatBody(body, p, indent+Indent))
		line("}")
	}
	switch x := s.(type) {
	case *ExprStmt:
		line(p(x.X) + ";")
	case *AssertStmt:
		line("assert " + p(x.Cond) + ";")
	case *ReturnStmt:
		if x.Value == nil {
			line("return;")
		} else {
			line("return " + p(x.Value) + ";")
		}
	case *AssignStmt:
		line(p(x.LHS) + " = " + p(x.RHS) + ";")
	case *IfStmt:
		block("if ("+p(x.Cond)+")", x.Then)
		if len(x.Else) > 0 {
			block("else", x.Else)
		}
	case *WhileStmt:
		block("while ("+p(x.Cond)+")", x.Body)
	case *RepeatStmt:
		block("repeat ("+p(x.Count)+")", x.Body)
	case *LoopStmt:
		cond := ""
		if x.Cond != nil {
			cond = " " + p(x.Cond)
		}
		update := joinExprs(x.Update, p)
		if update != "" {
			update = " " + update
		}
		block("for ("+loopInit(x.Init, p)+";"+cond+";"+update+")", x.Body)
	case *ForStmt:
		block("for ("+p(x.Var)+" : "+p(x.Iter)+")", x.Body)
	case *TryStmt:
		block("try", x.Body)
		for _, c := range x.Catches {
			block("catch ("+c.Type+" "+c.Name+")", c.Body)
		}
		if len(x.Finally) > 0 {
			block("finally", x.Finally)
		}
	default:
		panic(&UnhandledNodeError{Node: s})
	}
}

// loopInit prints the initializer of a classic for loop. Declarators after
// the first share its type, so only the first carries it.
func loopInit(ss []Stmt, p ExprPrinter) string {
	parts := make([]string, 0, len(ss))
	for i, s := range ss {
		var lhs, rhs Expr
		switch x := s.(type) {
		case *AssignStmt:
			lhs, rhs = x.LHS, x.RHS
		case *ExprStmt:
			lhs = x.X
		default:
			parts = append(parts, strings.TrimSuffix(FormatStmt(s, p), ";"))
			continue
		}
		text := p(lhs)
		if id, ok := lhs.(*Ident); ok && id.Decl && i > 0 {
			text = id.Name
		}
		if rhs != nil {
			text += " = " + p(rhs)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", ")
}
