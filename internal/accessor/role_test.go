package accessor

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayoutNames(t *testing.T) {
	l := NewLayout("AuxAccessor1", Config{
		"k":   {Getters: 1},
		"bar": {ConstructorArity: 2, Getters: 2, Setters: 1},
	})

	var names []string
	for _, k := range l.Keys() {
		names = append(names, l.FieldName(k))
	}
	assert.Equal(t, []string{
		"constructor_bar_0_AuxAccessor1",
		"accessor_bar_0_AuxAccessor1",
		"getter_bar_0_AuxAccessor1",
		"getter_bar_1_AuxAccessor1",
		"setter_bar_0_AuxAccessor1",
		"gs_bar_0_AuxAccessor1",
		"gs_bar_1_AuxAccessor1",
		"accessor_k_0_AuxAccessor1",
		"getter_k_0_AuxAccessor1",
		"gs_k_0_AuxAccessor1",
		"adapter_0_AuxAccessor1",
		"adaptee_0_AuxAccessor1",
	}, names)
}

func TestConfigKindsSkipsMalformed(t *testing.T) {
	kinds := Config{
		"ok":       {ConstructorArity: 1, Getters: -2, Setters: 1},
		"":         {Getters: 1},
		"9lives":   {Getters: 1},
		"has-dash": {Getters: 1},
	}.Kinds()

	require.Len(t, kinds, 1)
	assert.Equal(t, "ok", kinds[0].Name)
	assert.Equal(t, Shape{ConstructorArity: 1, Getters: 0, Setters: 1}, kinds[0].Shape)

	l := NewLayout("Aux1", Config{"ok": {Getters: -1, Setters: -1}})
	assert.Empty(t, l.KeysOf("ok", Getter))
	assert.Empty(t, l.KeysOf("ok", Setter))
	assert.Empty(t, l.KeysOf("ok", Slot))
	assert.Empty(t, l.KeysOf("ok", Constructor), "zero arity contributes no constructor role")
	assert.Len(t, l.KeysOf("ok", Class), 1)
}

func TestLayoutResolve(t *testing.T) {
	l := NewLayout("AuxAccessor1", Config{"k": {Getters: 2, Setters: 2}, "k_1": {Getters: 1}})

	tests := []struct {
		name string
		want RoleKey
		ok   bool
	}{
		{"getter_k_1_AuxAccessor1", RoleKey{"k", Getter, 1}, true},
		{"getter_k_1_AuxAccessor1__ANONYMOUS_s12", RoleKey{"k", Getter, 1}, true},
		{"getter_k_1_0_AuxAccessor1", RoleKey{"k_1", Getter, 0}, true},
		{"getter_k_1_AuxAccessor10", RoleKey{}, false},
		{"gs_k_0_AuxAccessor1.x", RoleKey{"k", Slot, 0}, true},
		{"adapter_0_AuxAccessor1", RoleKey{"", Adapter, 0}, true},
		{"setter_k_5_AuxAccessor1", RoleKey{}, false},
		{"getter_k_0_AuxAccessor2", RoleKey{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := l.Resolve(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleCoverageProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("layout allocates exactly the configured roles without collisions", prop.ForAll(
		func(arityA, getA, setA, arityB, getB, setB int) bool {
			cfg := Config{
				"alpha": {ConstructorArity: arityA, Getters: getA, Setters: setA},
				"beta":  {ConstructorArity: arityB, Getters: getB, Setters: setB},
			}
			l := NewLayout("Aux7", cfg)

			seen := map[string]bool{}
			for _, k := range l.Keys() {
				name := l.FieldName(k)
				if seen[name] {
					return false
				}
				seen[name] = true
				if back, ok := l.Resolve(name); !ok || back != k {
					return false
				}
			}
			for name, shape := range cfg {
				ctor := 0
				if shape.ConstructorArity > 0 {
					ctor = 1
				}
				if len(l.KeysOf(name, Constructor)) != ctor ||
					len(l.KeysOf(name, Getter)) != max(shape.Getters, 0) ||
					len(l.KeysOf(name, Setter)) != max(shape.Setters, 0) ||
					len(l.KeysOf(name, Slot)) != max(shape.Getters, shape.Setters, 0) {
					return false
				}
			}
			return true
		},
		gen.IntRange(-1, 3), gen.IntRange(-1, 4), gen.IntRange(-1, 4),
		gen.IntRange(-1, 3), gen.IntRange(-1, 4), gen.IntRange(-1, 4),
	))

	properties.TestingRun(t)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"always":     AlwaysMaterialize,
		"android":    AlwaysMaterialize,
		"if_invoked": MaterializeIfInvoked,
		"GUI":        MaterializeIfInvoked,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("sometimes")
	assert.Error(t, err)

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("if_invoked")))
	assert.Equal(t, "if_invoked", m.String())
}

func TestRoleTableKeysOrdered(t *testing.T) {
	table := RoleTable{
		{"b", Getter, 0}:      4,
		{"a", Setter, 1}:      3,
		{"a", Setter, 0}:      2,
		{"a", Constructor, 0}: 1,
	}
	assert.Equal(t, []RoleKey{
		{"a", Constructor, 0},
		{"a", Setter, 0},
		{"a", Setter, 1},
		{"b", Getter, 0},
	}, table.Keys())

	v, ok := table.Lookup("a", Setter, 1)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}
