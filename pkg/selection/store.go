// Package selection holds hover and select state for one hierarchy level.
//
// A [Store] is a passive holder: it validates nothing and never calls into
// map effects. It publishes a [Change] to its listeners whenever a value
// actually changes under the feature identity model, so a repeated
// selection of the same feature produces no downstream work.
//
// Stores are not safe for concurrent use. The engine owns one store per
// level and serializes every mutation.
package selection

import (
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Field identifies which slot of a store changed.
type Field string

// Store slots.
const (
	FieldHovered  Field = "hovered"
	FieldSelected Field = "selected"
)

// Change describes one slot transition.
type Change struct {
	Level feature.Level
	Field Field
	Old   *feature.Feature
	New   *feature.Feature
}

// Listener receives store changes.
type Listener func(Change)

// State is a copy of a store's two slots.
type State struct {
	Hovered  *feature.Feature `json:"hovered,omitempty"`
	Selected *feature.Feature `json:"selected,omitempty"`
}

// Store holds the hovered and selected feature for one level.
type Store struct {
	level     feature.Level
	hovered   *feature.Feature
	selected  *feature.Feature
	listeners map[int]Listener
	nextID    int
}

// New creates an empty store for level.
func New(level feature.Level) *Store {
	return &Store{level: level, listeners: make(map[int]Listener)}
}

// Level returns the level this store tracks.
func (s *Store) Level() feature.Level { return s.level }

// Hovered returns the hovered feature, or nil.
func (s *Store) Hovered() *feature.Feature { return s.hovered }

// Selected returns the selected feature, or nil.
func (s *Store) Selected() *feature.Feature { return s.selected }

// State returns both slots.
func (s *Store) State() State {
	return State{Hovered: s.hovered, Selected: s.selected}
}

// SetHovered replaces the hovered feature and reports whether it changed.
func (s *Store) SetHovered(f *feature.Feature) bool {
	old := s.hovered
	s.hovered = f
	return s.notify(FieldHovered, old, f)
}

// SetSelected replaces the selected feature and reports whether it changed.
func (s *Store) SetSelected(f *feature.Feature) bool {
	old := s.selected
	s.selected = f
	return s.notify(FieldSelected, old, f)
}

// Clear sets both slots to absent.
func (s *Store) Clear() {
	s.SetHovered(nil)
	s.SetSelected(nil)
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() { delete(s.listeners, id) }
}

// notify publishes a change unless old and new are the same feature.
// The slot is replaced either way so a loaded feature can take the place of
// an equal stub without downstream work.
func (s *Store) notify(field Field, old, next *feature.Feature) bool {
	if feature.Equal(old, next) {
		return false
	}
	c := Change{Level: s.level, Field: field, Old: old, New: next}
	for i := 0; i < s.nextID; i++ {
		if l, ok := s.listeners[i]; ok {
			l(c)
		}
	}
	return true
}
