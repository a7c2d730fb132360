package feature

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
)

// Level is a tier of the administrative hierarchy.
type Level string

// Hierarchy levels.
const (
	LevelState    Level = "state"
	LevelDistrict Level = "district"
)

// ParseLevel converts a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelState, LevelDistrict:
		return Level(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidLevel, "unknown level %q (want state or district)", s)
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == LevelState || l == LevelDistrict
}

// Feature is an immutable map entity produced by the data loader.
// The interaction core references features and never modifies them.
type Feature struct {
	ID       string `json:"id"`
	Level    Level  `json:"level"`
	ParentID string `json:"parent_id,omitempty"`

	Name       string         `json:"name,omitempty"`
	Population int64          `json:"population,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Geometry   orb.Geometry   `json:"-"`

	// Stub marks a placeholder state synthesized from a district's parent code.
	Stub bool `json:"stub,omitempty"`
}

// String returns "level:id", with a "~" suffix for stubs.
func (f *Feature) String() string {
	if f == nil {
		return "<none>"
	}
	if f.Stub {
		return fmt.Sprintf("%s:%s~", f.Level, f.ID)
	}
	return fmt.Sprintf("%s:%s", f.Level, f.ID)
}

// DisplayName returns the feature name, falling back to its identifier.
func (f *Feature) DisplayName() string {
	if f == nil {
		return ""
	}
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// Is reports whether f is a concrete feature of the given level.
func (f *Feature) Is(level Level) bool {
	return f != nil && f.Level == level
}

// Equal compares features by identifier and level. Two absent features are
// equal; an absent and a concrete feature are not.
func Equal(a, b *Feature) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Level == b.Level
}

// ParentOf returns the state identifier owning a district.
// It reports false for states, absent features and districts missing a parent reference.
func ParentOf(f *Feature) (string, bool) {
	if !f.Is(LevelDistrict) || f.ParentID == "" {
		return "", false
	}
	return f.ParentID, true
}

// DeriveParentSelection builds a minimal state stub for a district's parent.
// It returns nil when the district has no parent reference.
func DeriveParentSelection(district *Feature) *Feature {
	parent, ok := ParentOf(district)
	if !ok {
		return nil
	}
	return &Feature{ID: parent, Level: LevelState, Stub: true}
}

// Reconcile returns full when it is the loaded counterpart of current,
// otherwise current unchanged. It is used to replace stubs once the real
// state feature becomes available.
func Reconcile(current, full *Feature) *Feature {
	if current == nil || full == nil || full.Stub {
		return current
	}
	if current.Stub && Equal(current, full) {
		return full
	}
	return current
}

// IDs returns the identifiers of features in order.
func IDs(features []*Feature) []string {
	ids := make([]string, 0, len(features))
	for _, f := range features {
		if f != nil {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
