package javasrc

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// SyntaxError reports Java text the grammar rejected.
type SyntaxError struct {
	Source string // file path, or "snippet"
	Line   int    // 1-based
	Column int    // 1-based
	Near   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error near %q", e.Source, e.Line, e.Column, e.Near)
}

// firstError finds the first ERROR or MISSING node under n, or nil when the
// tree is clean.
func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return n
}

// checkSyntax converts the first error in the tree into a SyntaxError.
// lineOffset is subtracted from reported lines to hide wrapper text.
func checkSyntax(root *sitter.Node, src []byte, source string, lineOffset int) error {
	bad := firstError(root)
	if bad == nil {
		return nil
	}
	near := bad.Content(src)
	if bad.IsMissing() {
		near = "missing " + bad.Type()
	}
	pt := bad.StartPoint()
	line := int(pt.Row) + 1 - lineOffset
	if line < 1 {
		line = 1
	}
	return &SyntaxError{Source: source, Line: line, Column: int(pt.Column) + 1, Near: clip(near, maxNear)}
}

const maxNear = 40

// clip shortens s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// escapeError reports snippet text that parsed cleanly but reached past
// the wrapper it was placed in. at is the byte offset where the wrapper
// construct ended early.
func escapeError(text []byte, at uint32) error {
	before := text[:at]
	line := bytes.Count(before, []byte("\n")) + 1 - wrapperLines
	if line < 1 {
		line = 1
	}
	col := int(at) - (bytes.LastIndexByte(before, '\n') + 1) + 1
	near := strings.TrimSpace(string(text[at:]))
	return &SyntaxError{Source: "snippet", Line: line, Column: col, Near: clip(near, maxNear)}
}
