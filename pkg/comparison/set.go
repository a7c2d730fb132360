// Package comparison implements the bounded set of districts queued for
// side-by-side inspection.
//
// The set keeps insertion order (oldest first), rejects duplicates and
// rejects additions past its capacity instead of evicting older members.
// Rejections are returned as *errors.Error values carrying
// [errors.ErrCodeAlreadyPresent] or [errors.ErrCodeCapacityExceeded]; the set
// is unchanged in both cases.
//
// The members render into the path consumed by the comparison page:
//
//	comparison/4314902+4205407+3550308
package comparison

import (
	"strings"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Capacity is the maximum number of districts held for comparison.
const Capacity = 4

// RoutePrefix starts every comparison route.
const RoutePrefix = "comparison/"

// routeSeparator joins member identifiers in a route.
const routeSeparator = "+"

// Outcome reports what Toggle did.
type Outcome string

// Toggle outcomes.
const (
	Added    Outcome = "added"
	Removed  Outcome = "removed"
	Rejected Outcome = "rejected"
)

// Set is an ordered, duplicate-free collection of district features.
// It is not safe for concurrent use.
type Set struct {
	members  []*feature.Feature
	capacity int

	// toggledOut remembers the slot of the member the last Toggle removed,
	// so toggling it back restores the original order.
	toggledOut *slot
}

type slot struct {
	id    string
	index int
}

// New creates an empty set with the default capacity.
func New() *Set {
	return NewWithCapacity(Capacity)
}

// NewWithCapacity creates an empty set holding at most capacity members.
// Non-positive capacities fall back to the default.
func NewWithCapacity(capacity int) *Set {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Set{capacity: capacity}
}

// Add appends f. A duplicate identifier is reported before a full set.
func (s *Set) Add(f *feature.Feature) error {
	if f == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cannot compare an absent feature")
	}
	if s.Contains(f.ID) {
		return errors.New(errors.ErrCodeAlreadyPresent, "district %s is already in comparison", f.ID)
	}
	if s.Full() {
		return errors.New(errors.ErrCodeCapacityExceeded, "comparison holds at most %d districts", s.capacity)
	}
	s.toggledOut = nil
	s.members = append(s.members, f)
	return nil
}

// Remove drops the member with f's identifier and reports whether one was removed.
func (s *Set) Remove(f *feature.Feature) bool {
	if f == nil {
		return false
	}
	i := s.indexOf(f.ID)
	if i < 0 {
		return false
	}
	s.toggledOut = nil
	s.members = append(s.members[:i], s.members[i+1:]...)
	return true
}

// Toggle removes f when present and adds it otherwise. Toggling the member
// the previous Toggle removed puts it back in its old position, so two
// toggles in a row leave membership and order unchanged.
func (s *Set) Toggle(f *feature.Feature) (Outcome, error) {
	if f != nil {
		if i := s.indexOf(f.ID); i >= 0 {
			s.Remove(f)
			s.toggledOut = &slot{id: f.ID, index: i}
			return Removed, nil
		}
	}

	back := s.toggledOut
	if err := s.Add(f); err != nil {
		s.toggledOut = back
		return Rejected, err
	}
	if back != nil && back.id == f.ID && back.index < len(s.members)-1 {
		copy(s.members[back.index+1:], s.members[back.index:len(s.members)-1])
		s.members[back.index] = f
	}
	return Added, nil
}

// Contains reports whether a member has the given identifier.
func (s *Set) Contains(id string) bool {
	return s.indexOf(id) >= 0
}

// Members returns the members in insertion order. The slice is a copy.
func (s *Set) Members() []*feature.Feature {
	out := make([]*feature.Feature, len(s.members))
	copy(out, s.members)
	return out
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.members) }

// Cap returns the set capacity.
func (s *Set) Cap() int { return s.capacity }

// Full reports whether another Add would exceed capacity.
func (s *Set) Full() bool { return len(s.members) >= s.capacity }

// Clear removes every member.
func (s *Set) Clear() {
	s.members = nil
	s.toggledOut = nil
}

// Route renders the members as "comparison/<id1>+<id2>+...".
// An empty set renders as the bare prefix without a trailing separator.
func (s *Set) Route() string {
	return Route(feature.IDs(s.members))
}

func (s *Set) indexOf(id string) int {
	for i, m := range s.members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Route joins ids into a comparison route.
func Route(ids []string) string {
	return RoutePrefix + strings.Join(ids, routeSeparator)
}

// ParseRoute splits a comparison route (with or without the "comparison/"
// prefix or a leading slash) into member identifiers. Routes with more than
// capacity members are rejected; a non-positive capacity means [Capacity].
func ParseRoute(route string, capacity int) ([]string, error) {
	if capacity <= 0 {
		capacity = Capacity
	}
	route = strings.TrimPrefix(route, "/")
	route = strings.TrimPrefix(route, RoutePrefix)
	if route == "" {
		return nil, errors.New(errors.ErrCodeInvalidRoute, "comparison route has no members")
	}

	ids := strings.Split(route, routeSeparator)
	if len(ids) > capacity {
		return nil, errors.New(errors.ErrCodeInvalidRoute, "comparison route has %d members (max %d)", len(ids), capacity)
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := errors.ValidateFeatureID(id); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRoute, err, "invalid member in route")
		}
		if seen[id] {
			return nil, errors.New(errors.ErrCodeInvalidRoute, "duplicate member %q in route", id)
		}
		seen[id] = true
	}
	return ids, nil
}
