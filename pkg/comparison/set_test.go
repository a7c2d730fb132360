package comparison

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

func district(id string) *feature.Feature {
	return &feature.Feature{ID: id, Level: feature.LevelDistrict, ParentID: "RS"}
}

func TestAddDuplicate(t *testing.T) {
	s := New()
	d := district("4314902")

	if err := s.Add(d); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	err := s.Add(district("4314902"))
	if !errors.Is(err, errors.ErrCodeAlreadyPresent) {
		t.Errorf("second Add() error = %v, want %v", err, errors.ErrCodeAlreadyPresent)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestAddBeyondCapacity(t *testing.T) {
	s := New()
	for i := 0; i < Capacity; i++ {
		if err := s.Add(district(fmt.Sprintf("d%d", i))); err != nil {
			t.Fatalf("Add(d%d) error: %v", i, err)
		}
	}
	if !s.Full() {
		t.Error("Full() = false after four adds")
	}

	err := s.Add(district("d4"))
	if !errors.Is(err, errors.ErrCodeCapacityExceeded) {
		t.Errorf("fifth Add() error = %v, want %v", err, errors.ErrCodeCapacityExceeded)
	}
	want := []string{"d0", "d1", "d2", "d3"}
	if got := feature.IDs(s.Members()); !reflect.DeepEqual(got, want) {
		t.Errorf("Members() = %v, want %v", got, want)
	}
}

func TestAddDuplicateWhenFull(t *testing.T) {
	s := New()
	for i := 0; i < Capacity; i++ {
		_ = s.Add(district(fmt.Sprintf("d%d", i)))
	}
	err := s.Add(district("d2"))
	if !errors.Is(err, errors.ErrCodeAlreadyPresent) {
		t.Errorf("Add(duplicate) on full set = %v, want %v", err, errors.ErrCodeAlreadyPresent)
	}
}

func TestAddNil(t *testing.T) {
	s := New()
	if err := s.Add(nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Add(nil) error = %v, want %v", err, errors.ErrCodeInvalidInput)
	}
}

func TestRemove(t *testing.T) {
	s := New()
	_ = s.Add(district("a"))
	_ = s.Add(district("b"))
	_ = s.Add(district("c"))

	if !s.Remove(district("b")) {
		t.Error("Remove(b) = false, want true")
	}
	if s.Remove(district("b")) {
		t.Error("Remove(b) twice = true, want false")
	}
	if s.Remove(nil) {
		t.Error("Remove(nil) = true, want false")
	}
	if got := feature.IDs(s.Members()); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Members() = %v, want [a c]", got)
	}
}

func TestToggleTwiceRestoresOrder(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		toggle  string
	}{
		{"absent feature", []string{"a", "b"}, "c"},
		{"first member", []string{"a", "b", "c"}, "a"},
		{"middle member", []string{"a", "b", "c"}, "b"},
		{"last member", []string{"a", "b", "c"}, "c"},
		{"middle of full set", []string{"a", "b", "c", "d"}, "c"},
		{"only member", []string{"a"}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			for _, id := range tt.members {
				if err := s.Add(district(id)); err != nil {
					t.Fatalf("Add(%s) error: %v", id, err)
				}
			}

			f := district(tt.toggle)
			first, err := s.Toggle(f)
			if err != nil {
				t.Fatalf("Toggle(%s) error: %v", tt.toggle, err)
			}
			second, err := s.Toggle(f)
			if err != nil {
				t.Fatalf("Toggle(%s) again error: %v", tt.toggle, err)
			}
			if first == second {
				t.Errorf("Toggle outcomes = %v, %v, want opposite", first, second)
			}
			if got := feature.IDs(s.Members()); !reflect.DeepEqual(got, tt.members) {
				t.Errorf("Members() = %v, want %v", got, tt.members)
			}
		})
	}
}

func TestToggleBackAfterOtherChangeAppends(t *testing.T) {
	s := New()
	_ = s.Add(district("a"))
	_ = s.Add(district("b"))
	_ = s.Add(district("c"))

	_, _ = s.Toggle(district("a"))
	_ = s.Add(district("d"))
	_, _ = s.Toggle(district("a"))

	want := []string{"b", "c", "d", "a"}
	if got := feature.IDs(s.Members()); !reflect.DeepEqual(got, want) {
		t.Errorf("Members() = %v, want %v", got, want)
	}
}

func TestToggleFull(t *testing.T) {
	s := New()
	for i := 0; i < Capacity; i++ {
		if out, err := s.Toggle(district(fmt.Sprintf("d%d", i))); out != Added || err != nil {
			t.Fatalf("Toggle(d%d) = (%v, %v)", i, out, err)
		}
	}

	out, err := s.Toggle(district("d4"))
	if out != Rejected || !errors.Is(err, errors.ErrCodeCapacityExceeded) {
		t.Errorf("Toggle(fifth) = (%v, %v), want (rejected, %v)", out, err, errors.ErrCodeCapacityExceeded)
	}

	// Removing a member of a full set still works.
	if out, _ := s.Toggle(district("d0")); out != Removed {
		t.Errorf("Toggle(d0) on full set = %v, want removed", out)
	}
}

func TestMembersIsCopy(t *testing.T) {
	s := New()
	_ = s.Add(district("a"))
	m := s.Members()
	m[0] = district("z")
	if !s.Contains("a") || s.Contains("z") {
		t.Error("mutating Members() result should not affect the set")
	}
}

func TestRoute(t *testing.T) {
	s := New()
	if got := s.Route(); got != "comparison/" {
		t.Errorf("Route() on empty set = %q", got)
	}

	_ = s.Add(district("4314902"))
	_ = s.Add(district("4205407"))
	_ = s.Add(district("3550308"))

	want := "comparison/4314902+4205407+3550308"
	if got := s.Route(); got != want {
		t.Errorf("Route() = %q, want %q", got, want)
	}
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		name     string
		route    string
		capacity int
		want     []string
		wantErr  bool
	}{
		{"full route", "comparison/1+2+3", 0, []string{"1", "2", "3"}, false},
		{"leading slash", "/comparison/1+2", 0, []string{"1", "2"}, false},
		{"bare ids", "1+2", 0, []string{"1", "2"}, false},
		{"single", "comparison/4314902", 0, []string{"4314902"}, false},
		{"custom capacity", "comparison/1+2+3+4+5+6", 6, []string{"1", "2", "3", "4", "5", "6"}, false},

		{"empty", "comparison/", 0, nil, true},
		{"trailing separator", "comparison/1+", 0, nil, true},
		{"too many", "comparison/1+2+3+4+5", 0, nil, true},
		{"past custom capacity", "comparison/1+2+3", 2, nil, true},
		{"duplicate", "comparison/1+1", 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRoute(tt.route, tt.capacity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRoute(%q) error = %v, wantErr %v", tt.route, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidRoute) {
				t.Errorf("ParseRoute(%q) code = %v", tt.route, errors.GetCode(err))
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRoute(%q) = %v, want %v", tt.route, got, tt.want)
			}
		})
	}
}

func TestNewWithCapacity(t *testing.T) {
	if got := NewWithCapacity(0).Cap(); got != Capacity {
		t.Errorf("NewWithCapacity(0).Cap() = %d, want %d", got, Capacity)
	}
	s := NewWithCapacity(2)
	_ = s.Add(district("a"))
	_ = s.Add(district("b"))
	if err := s.Add(district("c")); !errors.Is(err, errors.ErrCodeCapacityExceeded) {
		t.Errorf("Add() past custom capacity = %v", err)
	}
}
