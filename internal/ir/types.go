package ir

import (
	"strconv"
	"strings"
)

var primitives = map[string]bool{
	"byte": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "char": true, "boolean": true,
}

// IsPrimitive reports whether typ is a Java primitive type.
func IsPrimitive(typ string) bool { return primitives[typ] }

// IsArray reports whether typ is an array type.
func IsArray(typ string) bool { return strings.HasSuffix(typ, "]") }

// ElemType strips one array dimension.
func ElemType(typ string) string {
	if i := strings.LastIndex(typ, "["); i >= 0 && IsArray(typ) {
		return strings.TrimSpace(typ[:i])
	}
	return typ
}

// BaseType strips generic arguments, array dimensions and package
// qualifiers: "java.util.List<String>[]" becomes "List".
func BaseType(typ string) string {
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		typ = typ[:i]
	}
	if i := strings.IndexByte(typ, '['); i >= 0 {
		typ = typ[:i]
	}
	typ = strings.TrimSpace(typ)
	if i := strings.LastIndexByte(typ, '.'); i >= 0 {
		typ = typ[i+1:]
	}
	return typ
}

// DefaultValue is the canonical default of typ: zero for numeric
// primitives, false for boolean, '\0' for char and a typed null for
// everything else.
func DefaultValue(typ string) Expr {
	switch typ {
	case "byte", "short", "int", "long":
		return Int(0)
	case "float":
		return &Lit{Kind: FloatLit, Value: "0.0f"}
	case "double":
		return &Lit{Kind: FloatLit, Value: "0.0"}
	case "boolean":
		return Bool(false)
	case "char":
		return &Lit{Kind: CharLit, Value: `'\0'`}
	}
	return &Cast{Type: typ, X: Null()}
}

// Truth evaluates a literal condition. ok is false when e is not a literal
// the passes treat as constant: true, false, or an integer literal (zero is
// false).
func Truth(e Expr) (value, ok bool) {
	switch x := e.(type) {
	case *Lit:
		switch x.Kind {
		case BoolLit:
			return x.Value == "true", true
		case IntLit:
			v := strings.ReplaceAll(strings.TrimRight(x.Value, "lL"), "_", "")
			n, err := strconv.ParseInt(v, 0, 64)
			if err != nil {
				return false, false
			}
			return n != 0, true
		}
	case *Paren:
		return Truth(x.X)
	}
	return false, false
}
