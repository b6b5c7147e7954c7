package accessor

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RoleCategory is what a role stands for.
type RoleCategory int

const (
	Constructor RoleCategory = iota // constructor of the kind's class
	Class                           // the class the kind is bound to
	Getter
	Setter
	Slot    // storage slot shared by getter i and setter i
	Adapter // method rerouted through the delegate dispatch
	Adaptee // method the adapter forwards to
)

var categoryNames = [...]string{
	Constructor: "constructor",
	Class:       "accessor",
	Getter:      "getter",
	Setter:      "setter",
	Slot:        "gs",
	Adapter:     "adapter",
	Adaptee:     "adaptee",
}

func (c RoleCategory) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("RoleCategory(%d)", int(c))
}

// ParseRoleCategory is the inverse of RoleCategory.String.
func ParseRoleCategory(s string) (RoleCategory, bool) {
	for i, name := range categoryNames {
		if name == s {
			return RoleCategory(i), true
		}
	}
	return 0, false
}

// RoleKey identifies one role. Kind is empty for the global delegate roles.
type RoleKey struct {
	Kind     string
	Category RoleCategory
	Slot     int
}

func (k RoleKey) String() string {
	if k.Kind == "" {
		return fmt.Sprintf("%s[%d]", k.Category, k.Slot)
	}
	return fmt.Sprintf("%s.%s[%d]", k.Kind, k.Category, k.Slot)
}

// RoleTable holds the solver's assignment for each role.
type RoleTable map[RoleKey]int

// Lookup returns the value assigned to key.
func (t RoleTable) Lookup(kind string, cat RoleCategory, slot int) (int, bool) {
	v, ok := t[RoleKey{Kind: kind, Category: cat, Slot: slot}]
	return v, ok
}

// Keys returns the assigned keys in layout order (kind, category, slot).
func (t RoleTable) Keys() []RoleKey {
	keys := make([]RoleKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	return keys
}

func lessKey(a, b RoleKey) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.Slot < b.Slot
}

// Layout is the role set of one auxiliary class. Field names are
// "<category>_<kind>_<slot>_<aux>", or "<category>_<slot>_<aux>" for the
// global roles; they are what the solver reports back.
type Layout struct {
	Aux   string
	Kinds []Kind

	keys   []RoleKey
	names  map[RoleKey]string
	byName map[string]RoleKey

	// Storage records the array fields Encode placed on a host class.
	Storage []StorageField
}

// StorageField is a synthetic field added outside the auxiliary class.
type StorageField struct {
	Holder string
	Name   string
}

// NewLayout allocates the roles of cfg for the auxiliary class aux.
func NewLayout(aux string, cfg Config) *Layout {
	l := &Layout{
		Aux:    aux,
		Kinds:  cfg.Kinds(),
		names:  make(map[RoleKey]string),
		byName: make(map[string]RoleKey),
	}
	for _, k := range l.Kinds {
		if k.Shape.ConstructorArity > 0 {
			l.add(RoleKey{k.Name, Constructor, 0})
		}
		l.add(RoleKey{k.Name, Class, 0})
		for i := 0; i < k.Shape.Getters; i++ {
			l.add(RoleKey{k.Name, Getter, i})
		}
		for i := 0; i < k.Shape.Setters; i++ {
			l.add(RoleKey{k.Name, Setter, i})
		}
		for i := 0; i < k.Shape.Slots(); i++ {
			l.add(RoleKey{k.Name, Slot, i})
		}
	}
	l.add(RoleKey{"", Adapter, 0})
	l.add(RoleKey{"", Adaptee, 0})
	return l
}

func (l *Layout) add(k RoleKey) {
	var name string
	if k.Kind == "" {
		name = fmt.Sprintf("%s_%d_%s", k.Category, k.Slot, l.Aux)
	} else {
		name = fmt.Sprintf("%s_%s_%d_%s", k.Category, k.Kind, k.Slot, l.Aux)
	}
	l.keys = append(l.keys, k)
	l.names[k] = name
	l.byName[name] = k
}

// Keys returns every role in allocation order.
func (l *Layout) Keys() []RoleKey { return append([]RoleKey(nil), l.keys...) }

// KeysOf returns the roles of one kind and category in slot order.
func (l *Layout) KeysOf(kind string, cat RoleCategory) []RoleKey {
	var out []RoleKey
	for _, k := range l.keys {
		if k.Kind == kind && k.Category == cat {
			out = append(out, k)
		}
	}
	return out
}

// Has reports whether key belongs to the layout.
func (l *Layout) Has(key RoleKey) bool {
	_, ok := l.names[key]
	return ok
}

// FieldName is the auxiliary field backing key.
func (l *Layout) FieldName(key RoleKey) string { return l.names[key] }

// Kind returns the validated kind called name.
func (l *Layout) Kind(name string) (Kind, bool) {
	for _, k := range l.Kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// Resolve maps a reported variable name to its role. The name may carry a
// solver-added suffix as long as the suffix does not continue the
// identifier's last word (so "getter_k_1_Aux1" never matches a report for
// "getter_k_1_Aux10"). The longest matching field name wins.
func (l *Layout) Resolve(name string) (RoleKey, bool) {
	if k, ok := l.byName[name]; ok {
		return k, true
	}
	var (
		best    RoleKey
		bestLen int
	)
	for field, k := range l.byName {
		if len(field) <= bestLen || !strings.HasPrefix(name, field) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(name[len(field):])
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			continue
		}
		best, bestLen = k, len(field)
	}
	return best, bestLen > 0
}
