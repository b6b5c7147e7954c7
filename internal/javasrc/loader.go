package javasrc

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"pasket/internal/ir"
	"pasket/internal/logging"
)

// ClientAnnotation marks classes that belong to the client side of the
// adaptation and are never rerouted.
const ClientAnnotation = "@Client"

// Source is one template file.
type Source struct {
	Path    string
	Content []byte
}

// ParseTemplate parses sources concurrently and assembles them into one
// template. Ids are assigned afterwards in source order (classes pre-order,
// each class followed by its methods), so the result does not depend on
// scheduling.
func ParseTemplate(ctx context.Context, gen *ir.GenContext, sources ...Source) (*ir.Template, error) {
	timer := logging.StartTimer(logging.CategoryParse, "ParseTemplate")
	defer timer.Stop()

	units := make([][]*ir.Clazz, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, src := range sources {
		g.Go(func() error {
			p := NewParser()
			defer p.Close()
			classes, err := p.File(gctx, src)
			if err != nil {
				return err
			}
			units[i] = classes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := ir.NewTemplate()
	for _, classes := range units {
		t.AddClasses(classes...)
	}
	for _, c := range t.AllClasses() {
		c.ID = gen.NextID()
		for _, m := range c.Methods {
			m.ID = gen.NextID()
		}
	}
	Link(t)
	logging.ParseDebug("parsed %d files: %d classes, %d methods", len(sources), len(t.AllClasses()), len(t.Methods()))
	return t, nil
}

// Link rebuilds every class's Subs from the extends and implements clauses.
func Link(t *ir.Template) {
	classes := t.AllClasses()
	for _, c := range classes {
		c.Subs = nil
	}
	for _, c := range classes {
		parents := append([]string{}, c.Interfaces...)
		if c.Super != "" {
			parents = append([]string{c.Super}, parents...)
		}
		for _, name := range parents {
			if p := t.ClassByName(name); p != nil && p != c {
				p.Subs = append(p.Subs, c)
			}
		}
	}
}

// LoadFiles reads and parses the given files.
func LoadFiles(ctx context.Context, gen *ir.GenContext, paths ...string) (*ir.Template, error) {
	sources := make([]Source, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			sources[i] = Source{Path: path, Content: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ParseTemplate(ctx, gen, sources...)
}

// JavaFiles lists the .java files under root in lexical order.
func JavaFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".java") {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// LoadPaths expands directories and loads every .java file found.
func LoadPaths(ctx context.Context, gen *ir.GenContext, roots ...string) (*ir.Template, error) {
	var paths []string
	for _, root := range roots {
		found, err := JavaFiles(root)
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .java files under %s", strings.Join(roots, ", "))
	}
	return LoadFiles(ctx, gen, paths...)
}

// File parses one compilation unit into classes without ids.
func (p *Parser) File(ctx context.Context, src Source) ([]*ir.Clazz, error) {
	tree, err := p.parse(ctx, src.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if err := checkSyntax(root, src.Content, src.Path, 0); err != nil {
		return nil, err
	}
	u := &unit{src: src.Content}
	var out []*ir.Clazz
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "class_declaration":
			out = append(out, u.clazz(n, false))
		case "interface_declaration":
			out = append(out, u.clazz(n, true))
		}
	}
	return out, nil
}

type unit struct {
	src []byte
}

func (u *unit) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(u.src)
}

func (u *unit) mods(n *sitter.Node) []string {
	mods := namedChildOfType(n, "modifiers")
	if mods == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(mods.ChildCount()); i++ {
		out = append(out, u.text(mods.Child(i)))
	}
	return out
}

func (u *unit) typeList(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	list := namedChildOfType(n, "type_list")
	if list == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		out = append(out, u.text(list.NamedChild(i)))
	}
	return out
}

func (u *unit) clazz(n *sitter.Node, isInterface bool) *ir.Clazz {
	c := &ir.Clazz{
		Name:        u.text(n.ChildByFieldName("name")),
		Mods:        u.mods(n),
		IsInterface: isInterface,
	}
	c.IsClient = c.HasMod(ClientAnnotation)
	if isInterface {
		c.Interfaces = u.typeList(namedChildOfType(n, "extends_interfaces"))
	} else {
		if sc := n.ChildByFieldName("superclass"); sc != nil && sc.NamedChildCount() > 0 {
			c.Super = u.text(sc.NamedChild(0))
		}
		c.Interfaces = u.typeList(n.ChildByFieldName("interfaces"))
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return c
	}
	// fields first so method bodies can resolve them
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if m.Type() == "field_declaration" || m.Type() == "constant_declaration" {
			u.fields(c, m)
		}
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		switch m.Type() {
		case "method_declaration":
			c.AddMethod(u.method(c, m))
		case "constructor_declaration":
			c.AddMethod(u.constructor(c, m))
		case "class_declaration":
			c.AddInner(u.clazz(m, false))
		case "interface_declaration":
			c.AddInner(u.clazz(m, true))
		}
	}
	return c
}

func (u *unit) fields(c *ir.Clazz, n *sitter.Node) {
	mods := u.mods(n)
	typ := u.text(n.ChildByFieldName("type"))
	sc := &scope{src: u.src}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		f := &ir.Field{Mods: append([]string(nil), mods...), Type: typ, Name: u.text(d.ChildByFieldName("name"))}
		if v := d.ChildByFieldName("value"); v != nil {
			f.Init = sc.expr(v)
		}
		c.AddField(f)
	}
}

func (u *unit) params(n *sitter.Node) []ir.Param {
	var out []ir.Param
	if n == nil {
		return out
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			out = append(out, ir.Param{Type: u.text(p.ChildByFieldName("type")), Name: u.text(p.ChildByFieldName("name"))})
		case "spread_parameter":
			typ := ""
			name := ""
			for j := 0; j < int(p.NamedChildCount()); j++ {
				c := p.NamedChild(j)
				switch c.Type() {
				case "variable_declarator":
					name = u.text(c.ChildByFieldName("name"))
				case "modifiers":
				default:
					if typ == "" {
						typ = u.text(c)
					}
				}
			}
			out = append(out, ir.Param{Type: typ + "...", Name: name})
		}
	}
	return out
}

func (u *unit) method(c *ir.Clazz, n *sitter.Node) *ir.Method {
	m := &ir.Method{
		Mods:   u.mods(n),
		Type:   u.text(n.ChildByFieldName("type")),
		Name:   u.text(n.ChildByFieldName("name")),
		Params: u.params(n.ChildByFieldName("parameters")),
	}
	m.Clazz = c
	m.IsStatic = m.HasMod("static")
	body := n.ChildByFieldName("body")
	m.IsAbstract = m.HasMod("abstract") || (c.IsInterface && body == nil)
	if body != nil {
		sc := &scope{src: u.src, m: m}
		m.Body = sc.block(body)
	}
	return m
}

func (u *unit) constructor(c *ir.Clazz, n *sitter.Node) *ir.Method {
	m := &ir.Method{
		Mods:          u.mods(n),
		Name:          u.text(n.ChildByFieldName("name")),
		Params:        u.params(n.ChildByFieldName("parameters")),
		IsConstructor: true,
	}
	m.Clazz = c
	if body := n.ChildByFieldName("body"); body != nil {
		sc := &scope{src: u.src, m: m}
		m.Body = sc.block(body)
	}
	return m
}
