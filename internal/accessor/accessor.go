// Package accessor describes accessor kinds and the solver roles they
// expand into. Encode allocates roles from a Config; Decode maps the
// solver's assignments back through the same Layout.
package accessor

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"pasket/internal/logging"
)

// Shape is the role quota of one accessor kind.
type Shape struct {
	ConstructorArity int `yaml:"constructor_arity" json:"constructor_arity"`
	Getters          int `yaml:"getters" json:"getters"`
	Setters          int `yaml:"setters" json:"setters"`
}

// Slots is the number of storage slots a kind's getter/setter pairs use.
func (s Shape) Slots() int {
	return max(s.Getters, s.Setters, 0)
}

// Config maps accessor kind keys to their quotas.
type Config map[string]Shape

// Kind is one validated accessor kind.
type Kind struct {
	Name  string
	Shape Shape
}

// Kinds returns the usable kinds sorted by name. Kinds whose key is not an
// identifier are dropped; negative counts are clamped to zero. Both are
// logged and never fatal.
func (c Config) Kinds() []Kind {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Kind, 0, len(names))
	for _, name := range names {
		if !isIdent(name) {
			logging.AccessorWarn("skipping accessor kind %q: not an identifier", name)
			continue
		}
		shape := c[name]
		if shape.ConstructorArity < 0 {
			logging.AccessorWarn("kind %s: negative constructor arity %d, skipping constructor role", name, shape.ConstructorArity)
			shape.ConstructorArity = 0
		}
		if shape.Getters < 0 {
			logging.AccessorWarn("kind %s: negative getter count %d, skipping getters", name, shape.Getters)
			shape.Getters = 0
		}
		if shape.Setters < 0 {
			logging.AccessorWarn("kind %s: negative setter count %d, skipping setters", name, shape.Setters)
			shape.Setters = 0
		}
		out = append(out, Kind{Name: name, Shape: shape})
	}
	return out
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// Mode selects when Decode materializes resolved accessors.
type Mode int

const (
	// AlwaysMaterialize materializes every resolved role.
	AlwaysMaterialize Mode = iota
	// MaterializeIfInvoked materializes a role only when the solver run
	// exercised one of the methods involved.
	MaterializeIfInvoked
)

func (m Mode) String() string {
	switch m {
	case AlwaysMaterialize:
		return "always"
	case MaterializeIfInvoked:
		return "if_invoked"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "always" and "if_invoked", plus the historical
// aliases "android" and "gui".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "android":
		return AlwaysMaterialize, nil
	case "if_invoked", "if-invoked", "gui":
		return MaterializeIfInvoked, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want always or if_invoked)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
