package engine

import (
	"github.com/gpmc-lab-ufrgs/atlas/pkg/comparison"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/selection"
)

// Resolver looks up a loaded state feature by identifier.
// It returns nil when the state is not (yet) known.
type Resolver func(stateID string) *feature.Feature

// Snapshot is the full interaction state of one view.
type Snapshot struct {
	State    selection.State `json:"state"`
	District selection.State `json:"district"`
	Cursor   *Position       `json:"cursor,omitempty"`

	Comparison []*feature.Feature `json:"comparison"`
	Capacity   int                `json:"capacity"`
	Route      string             `json:"route"`
}

// DistrictLayerVisible reports whether the district layer is shown, which
// is the case exactly when a state is selected.
func (s Snapshot) DistrictLayerVisible() bool {
	return s.State.Selected != nil
}

// compareOp is the comparison set change a transition asks for.
type compareOp int

const (
	compareNone compareOp = iota
	compareToggle
	compareAdd
	compareRemove
)

// Transition is the pure outcome of planning one event.
type Transition struct {
	Next       Snapshot
	Directives []Directive
	Status     errors.Code
	Message    string

	compare compareOp
	target  *feature.Feature
}

// Plan computes the transition for ev from cur without side effects.
// resolve may be nil.
func Plan(cur Snapshot, ev Event, resolve Resolver) Transition {
	t := &Transition{Next: cur}
	if ev.Position != nil {
		t.Next.Cursor = ev.Position
	}

	f := ev.Feature
	switch ev.Kind {
	case EventHoverState:
		if f != nil && !f.Is(feature.LevelState) {
			t.reject("hover_state expects a state feature, got %v", f)
			break
		}
		t.hover(&t.Next.State, f)

	case EventHoverDistrict:
		if f != nil && !f.Is(feature.LevelDistrict) {
			t.reject("hover_district expects a district feature, got %v", f)
			break
		}
		// Hovering an invisible layer is dropped; clearing a hover never is.
		if f != nil && !t.Next.DistrictLayerVisible() {
			break
		}
		t.hover(&t.Next.District, f)

	case EventSelectState:
		if f != nil && !f.Is(feature.LevelState) {
			t.reject("select_state expects a state feature, got %v", f)
			break
		}
		t.selectState(f, ev.Position != nil)

	case EventSelectDistrict:
		if f != nil && !f.Is(feature.LevelDistrict) {
			t.reject("select_district expects a district feature, got %v", f)
			break
		}
		t.selectDistrict(f, ev.Position != nil, resolve)

	case EventResetAll:
		t.reset()

	case EventToggleComparison, EventAddComparison, EventRemoveComparison:
		if !f.Is(feature.LevelDistrict) {
			t.reject("%s expects a district feature, got %v", ev.Kind, f)
			break
		}
		t.target = f
		switch ev.Kind {
		case EventToggleComparison:
			t.compare = compareToggle
		case EventAddComparison:
			t.compare = compareAdd
		default:
			t.compare = compareRemove
		}

	default:
		t.reject("unknown event %q", ev.Kind)
	}
	return *t
}

func (t *Transition) reject(format string, args ...any) {
	e := errors.New(errors.ErrCodeInvalidInput, format, args...)
	t.Status = e.Code
	t.Message = e.Message
}

func (t *Transition) emit(ds ...Directive) {
	t.Directives = append(t.Directives, ds...)
}

func (t *Transition) hover(slot *selection.State, f *feature.Feature) {
	old := slot.Hovered
	slot.Hovered = f
	if feature.Equal(old, f) {
		return
	}
	if f == nil {
		t.emit(HidePopup())
		return
	}
	t.emit(ShowPopup(f, t.Next.Cursor, PopupHover))
}

// selectState sets the state selection and reports whether it changed.
func (t *Transition) selectState(f *feature.Feature, clicked bool) bool {
	old := t.Next.State.Selected
	t.Next.State.Selected = f
	if feature.Equal(old, f) {
		return false
	}

	if f == nil {
		// A district cannot stay selected without its state in view.
		t.Next.District = selection.State{}
		t.emit(CenterDefault(), SetVisible(feature.LevelDistrict, false))
		return true
	}

	if parent, ok := feature.ParentOf(t.Next.District.Selected); ok && parent != f.ID {
		t.Next.District.Selected = nil
	}
	staleHover := false
	if parent, ok := feature.ParentOf(t.Next.District.Hovered); ok && parent != f.ID {
		t.Next.District.Hovered = nil
		staleHover = true
	}
	t.emit(BoundTo(f), SetVisible(feature.LevelDistrict, true), SetVisible(feature.LevelState, true))
	if staleHover {
		t.emit(HidePopup())
	}
	if clicked {
		t.emit(ShowPopup(f, t.Next.Cursor, PopupClick))
	}
	return true
}

func (t *Transition) selectDistrict(f *feature.Feature, clicked bool, resolve Resolver) {
	old := t.Next.District.Selected

	if f == nil {
		t.Next.District.Selected = nil
		if old == nil {
			return
		}
		if s := t.Next.State.Selected; s != nil {
			t.emit(BoundTo(s))
		} else {
			t.emit(CenterDefault())
		}
		return
	}

	autoSelected := false
	state := t.Next.State.Selected
	if parentID, ok := feature.ParentOf(f); !ok {
		if state == nil {
			e := errors.New(errors.ErrCodeUnresolvedParent, "district %s has no parent reference", f.ID)
			t.Status, t.Message = e.Code, e.Message
		}
	} else if state == nil || state.ID != parentID {
		mark := len(t.Directives)
		autoSelected = t.selectState(parentSelection(f, resolve), false)
		for i := mark; i < len(t.Directives); i++ {
			if t.Directives[i].Target() == "viewport" {
				t.Directives[i].Intermediate = true
			}
		}
	}

	t.Next.District.Selected = f
	if feature.Equal(old, f) && !autoSelected {
		return
	}
	// Issued last so the district framing is the effective viewport.
	t.emit(BoundTo(f))
	if clicked {
		t.emit(ShowPopup(f, t.Next.Cursor, PopupClick))
	}
}

func (t *Transition) reset() {
	t.Next.State = selection.State{}
	t.Next.District = selection.State{}
	t.emit(
		CenterDefault(),
		SetVisible(feature.LevelState, true),
		SetVisible(feature.LevelDistrict, false),
		HidePopup(),
	)
}

// parentSelection returns the loaded parent state when resolve knows it and
// a stub otherwise.
func parentSelection(district *feature.Feature, resolve Resolver) *feature.Feature {
	stub := feature.DeriveParentSelection(district)
	if stub == nil || resolve == nil {
		return stub
	}
	if full := resolve(stub.ID); full.Is(feature.LevelState) {
		return full
	}
	return stub
}

// route renders the comparison members of a snapshot.
func route(members []*feature.Feature) string {
	return comparison.Route(feature.IDs(members))
}
