package encode

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasket/internal/accessor"
	"pasket/internal/ir"
	"pasket/internal/javasrc"
)

// Widget 1, Widget() 2, getSize 3, setSize 4, getTitle 5, refresh 6,
// Listener 7, fire 8, Panel 9, fire 10, Main 11, run 12.
const widgetSrc = `
class Widget {
  int size;
  String title;
  Widget(int size) { this.size = size; }
  int getSize() { return size; }
  void setSize(int s) { size = s; }
  String getTitle() { return title; }
  void refresh() { }
}
interface Listener { void fire(); }
class Panel implements Listener {
  public void fire() { }
}
@Client
class Main {
  void run() { Widget w = new Widget(3); }
}
`

func load(t *testing.T, src string) (*ir.Template, *ir.GenContext) {
	t.Helper()
	gen := ir.NewGenContext()
	tmpl, err := javasrc.ParseTemplate(context.Background(), gen, javasrc.Source{Path: "Widget.java", Content: []byte(src)})
	require.NoError(t, err)
	return tmpl, gen
}

func widgetOptions() Options {
	return Options{
		Accessors: accessor.Config{"widget": {ConstructorArity: 1, Getters: 1, Setters: 1}},
		Bounds:    Bounds{MaxObjects: 2, MaxEvents: 3},
	}
}

func body(m *ir.Method) string { return ir.FormatBody(m.Body, ir.ExprString, "") }

func TestRunRanges(t *testing.T) {
	tmpl, gen := load(t, widgetSrc)
	enc, err := Run(context.Background(), tmpl, gen, widgetOptions())
	require.NoError(t, err)

	assert.Equal(t, "AuxAccessor1", enc.Aux.Name)
	assert.Equal(t, 13, enc.Aux.ID)
	assert.True(t, enc.Aux.IsAux)
	assert.Same(t, enc.Aux, tmpl.ClassByName("AuxAccessor1"))
	assert.Equal(t, []string{"AuxAccessor1"}, tmpl.AuxNames)

	want := map[accessor.RoleKey][]int{
		{Kind: "widget", Category: accessor.Constructor}: {2},
		{Kind: "widget", Category: accessor.Class}:       {1},
		{Kind: "widget", Category: accessor.Getter}:      {3, 5},
		{Kind: "widget", Category: accessor.Setter}:      {4},
		{Kind: "widget", Category: accessor.Slot}:        {0},
		{Category: accessor.Adapter}:                     {6, 10},
		{Category: accessor.Adaptee}:                     {6, 10},
	}
	if diff := cmp.Diff(want, enc.Ranges); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}

	inits := map[string]string{}
	for _, f := range enc.Aux.Fields {
		inits[f.Name] = ir.ExprString(f.Init)
	}
	assert.Equal(t, "{| 2 |}", inits["constructor_widget_0_AuxAccessor1"])
	assert.Equal(t, "{| 3 | 5 |}", inits["getter_widget_0_AuxAccessor1"])
	assert.Equal(t, "{| 0 |}", inits["gs_widget_0_AuxAccessor1"])
	assert.Equal(t, "{| 6 | 10 |}", inits["adaptee_0_AuxAccessor1"])
	assert.Equal(t, "0", inits[GetterCounter])
	assert.Equal(t, "new int[1]", inits["_prvt_ifld"])
}

func TestRunRewritesCandidates(t *testing.T) {
	tmpl, gen := load(t, widgetSrc)
	enc, err := Run(context.Background(), tmpl, gen, widgetOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4, 5, 6, 10}, enc.Rerouted)

	tests := []struct {
		id   int
		want string
	}{
		{2, "this.size = size;\nAuxAccessor1.iconstructorInOne(2, this, size, 0);\n"},
		{3, "return AuxAccessor1.igetterInOne(3, this);\n"},
		{4, "AuxAccessor1.isetterInOne(4, this, s);\n"},
		{5, "return AuxAccessor1.sgetterInOne(5, this);\n"},
		{6, "AuxAccessor1.delegateInOne(6, this);\n"},
		{10, "AuxAccessor1.delegateInOne(10, this);\n"},
		{12, "Widget w = new Widget(3);\n"},
	}
	for _, tt := range tests {
		m := tmpl.MethodByID(tt.id)
		assert.Equal(t, tt.want, body(m), m.Signature())
	}

	// every rerouted call is tagged with its site
	call := tmpl.MethodByID(3).Body[0].(*ir.ReturnStmt).Value.(*ir.Call)
	assert.Equal(t, 3, call.Site)
	assert.Empty(t, tmpl.MethodByID(8).Body, "abstract methods are left alone")
}

func TestRunCastsReferenceGetters(t *testing.T) {
	tmpl, gen := load(t, `
class Box {
  Box() { }
  Box inner() { return this; }
  static long stamp() { return 0L; }
}`)
	_, err := Run(context.Background(), tmpl, gen, Options{Accessors: accessor.Config{"box": {Getters: 1}}})
	require.NoError(t, err)

	assert.Equal(t, "return (Box) AuxAccessor1.getterInOne(3, this);\n", body(tmpl.ClassByName("Box").MethodByName("inner")))
	assert.Equal(t, "return (long) AuxAccessor1.getterInOne(4, null);\n", body(tmpl.ClassByName("Box").MethodByName("stamp")))
	assert.Empty(t, body(tmpl.ClassByName("Box").MethodByName("Box")), "nullary constructors keep their body")
}

func TestRunDispatchers(t *testing.T) {
	tmpl, gen := load(t, widgetSrc)
	enc, err := Run(context.Background(), tmpl, gen, widgetOptions())
	require.NoError(t, err)

	assert.Equal(t, Counts{Constructor: 12, Getter: 3, Setter: 15, Delegate: DefaultDelegateDepth}, enc.Counts)

	get := enc.Aux.MethodByName("igetterInOne")
	require.NotNil(t, get)
	assert.True(t, get.IsStatic)
	assert.Equal(t, `if (getter_cnt > 3) {
  return -1;
}
getter_cnt = getter_cnt + 1;
checkRange();
if (mtd_id == getter_widget_0_AuxAccessor1) {
  return iget(callee, gs_widget_0_AuxAccessor1);
}
return -1;
`, body(get))

	ctor := enc.Aux.MethodByName("constructorInOne")
	require.NotNil(t, ctor)
	assert.Contains(t, body(ctor), "if (constructor_cnt > 12) {\n  return;\n}\n")
	assert.Contains(t, body(ctor), "if (mtd_id == constructor_widget_0_AuxAccessor1) {\n  set(callee, pos, v);\n}\n")

	delegate := enc.Aux.MethodByName("delegateInOne")
	require.NotNil(t, delegate)
	assert.Contains(t, body(delegate), "if (adaptee_0_AuxAccessor1 == 10) {\n    ((Panel) callee).fire();\n  }")
	assert.True(t, strings.HasSuffix(body(delegate), "delegateInOne_depth = delegateInOne_depth - 1;\n"))

	// storage is static on the auxiliary class without an Object model
	assert.Equal(t, "return _prvt_ifld[fld];\n", body(enc.Aux.MethodByName("iget")))
	assert.Empty(t, enc.Layout.Storage)
}

func TestRunMetadataAndChecks(t *testing.T) {
	tmpl, gen := load(t, widgetSrc)
	enc, err := Run(context.Background(), tmpl, gen, widgetOptions())
	require.NoError(t, err)

	argNum := body(enc.Aux.MethodByName("argNum"))
	assert.Contains(t, argNum, "if (mtd_id == 4) {\n  return 1;\n}")
	assert.True(t, strings.HasSuffix(argNum, "return -1;\n"))

	// String is not a template class: first negative type id
	assert.Contains(t, body(enc.Aux.MethodByName("retType")), "if (mtd_id == 5) {\n  return -2;\n}")
	assert.Contains(t, body(enc.Aux.MethodByName("subcls")), "if (sub == 9 && sup == 7) {\n  return true;\n}")

	checks := body(enc.Aux.MethodByName("checkRange"))
	for _, want := range []string{
		"assert argNum(constructor_widget_0_AuxAccessor1) == 1;",
		"assert belongsTo(constructor_widget_0_AuxAccessor1) == accessor_widget_0_AuxAccessor1;",
		"assert subcls(accessor_widget_0_AuxAccessor1, belongsTo(getter_widget_0_AuxAccessor1));",
		"assert belongsTo(getter_widget_0_AuxAccessor1) == belongsTo(setter_widget_0_AuxAccessor1);",
		"assert subcls(argType(setter_widget_0_AuxAccessor1), retType(getter_widget_0_AuxAccessor1));",
		"assert argNum(adapter_0_AuxAccessor1) == 0;",
	} {
		assert.Contains(t, checks, want)
	}
}

func TestRunNoEligibleIDs(t *testing.T) {
	tmpl, gen := load(t, widgetSrc)
	enc, err := Run(context.Background(), tmpl, gen, Options{
		Accessors: accessor.Config{"ghost": {ConstructorArity: 4, Getters: 1}},
	})
	require.NoError(t, err)

	ctor := enc.Aux.FieldByName("constructor_ghost_0_AuxAccessor1")
	require.NotNil(t, ctor)
	assert.Equal(t, "-1", ir.ExprString(ctor.Init))
	assert.NotContains(t, body(enc.Aux.MethodByName("checkRange")), "constructor_ghost_0")
}

func TestRunHoleForNullaryKinds(t *testing.T) {
	tmpl, gen := load(t, widgetSrc)
	enc, err := Run(context.Background(), tmpl, gen, Options{Accessors: accessor.Config{"flag": {Getters: 1}}})
	require.NoError(t, err)
	assert.Equal(t, "??", ir.ExprString(enc.Aux.FieldByName("gs_flag_0_AuxAccessor1").Init))
}

func TestRunExcludeAndHostStorage(t *testing.T) {
	tmpl, gen := load(t, "class Object { }\n"+widgetSrc)
	opts := widgetOptions()
	opts.Exclude = []string{"Panel"}
	enc, err := Run(context.Background(), tmpl, gen, opts)
	require.NoError(t, err)

	panel := tmpl.ClassByName("Panel")
	assert.Equal(t, "", body(panel.MethodByName("fire")))
	assert.NotContains(t, enc.Rerouted, panel.MethodByName("fire").ID)

	object := tmpl.ClassByName("Object")
	require.NotNil(t, object.FieldByName("_prvt_fld"))
	assert.False(t, object.FieldByName("_prvt_fld").IsStatic())
	assert.Len(t, enc.Layout.Storage, len(StorageFields()))
	assert.Equal(t, accessor.StorageField{Holder: "Object", Name: "_prvt_fld"}, enc.Layout.Storage[0])
	assert.Contains(t, body(enc.Aux.MethodByName("iget")), "return callee._prvt_ifld[fld];")
}

func TestRunRepeatedEncodesDoNotCollide(t *testing.T) {
	tmpl, gen := load(t, widgetSrc)
	first, err := Run(context.Background(), tmpl, gen, widgetOptions())
	require.NoError(t, err)
	second, err := Run(context.Background(), tmpl, gen, widgetOptions())
	require.NoError(t, err)

	assert.Equal(t, "AuxAccessor2", second.Aux.Name)
	seen := map[int]string{}
	for _, c := range tmpl.AllClasses() {
		for _, m := range c.Methods {
			prev, dup := seen[m.ID]
			assert.False(t, dup, "id %d used by %s and %s", m.ID, prev, m.Signature())
			seen[m.ID] = m.Signature()
		}
	}
	assert.Greater(t, second.Aux.ID, first.Aux.Methods[len(first.Aux.Methods)-1].ID)
}

func TestRunDeterministic(t *testing.T) {
	a, genA := load(t, widgetSrc)
	b, genB := load(t, widgetSrc)
	_, err := Run(context.Background(), a, genA, widgetOptions())
	require.NoError(t, err)
	_, err = Run(context.Background(), b, genB, widgetOptions())
	require.NoError(t, err)
	if diff := cmp.Diff(a.String(), b.String()); diff != "" {
		t.Errorf("encode output differs between runs (-a +b):\n%s", diff)
	}
}
