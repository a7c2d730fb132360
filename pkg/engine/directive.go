package engine

import (
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// DirectiveKind identifies an instruction to an effect sink.
type DirectiveKind string

// Directive kinds.
const (
	DirectiveBoundTo       DirectiveKind = "viewport.bound_to"
	DirectiveCenterDefault DirectiveKind = "viewport.center_default"
	DirectiveSetVisible    DirectiveKind = "layer.set_visible"
	DirectiveShowPopup     DirectiveKind = "popup.show"
	DirectiveHidePopup     DirectiveKind = "popup.hide"
)

// PopupKind tells the popup controller why a popup is shown.
type PopupKind string

// Popup kinds.
const (
	PopupHover PopupKind = "hover"
	PopupClick PopupKind = "click"
)

// Directive is one instruction issued to an effect sink.
// Only the fields relevant to Kind are set.
type Directive struct {
	Kind DirectiveKind `json:"kind"`

	// Features is the bounding target of a bound_to directive.
	Features []*feature.Feature `json:"features,omitempty"`

	// Level and Visible describe a set_visible directive.
	Level   feature.Level `json:"level,omitempty"`
	Visible bool          `json:"visible"`

	// Feature, Position and Popup describe a popup.show directive.
	Feature  *feature.Feature `json:"feature,omitempty"`
	Position *Position        `json:"position,omitempty"`
	Popup    PopupKind        `json:"popup,omitempty"`

	// Intermediate marks a viewport directive superseded later in the same event.
	Intermediate bool `json:"intermediate,omitempty"`
}

// BoundTo requests the viewport to frame features.
func BoundTo(features ...*feature.Feature) Directive {
	return Directive{Kind: DirectiveBoundTo, Features: features}
}

// CenterDefault requests the default viewport.
func CenterDefault() Directive {
	return Directive{Kind: DirectiveCenterDefault}
}

// SetVisible requests a layer visibility change.
func SetVisible(level feature.Level, visible bool) Directive {
	return Directive{Kind: DirectiveSetVisible, Level: level, Visible: visible}
}

// ShowPopup requests a popup for f at pos.
func ShowPopup(f *feature.Feature, pos *Position, kind PopupKind) Directive {
	return Directive{Kind: DirectiveShowPopup, Feature: f, Position: pos, Popup: kind}
}

// HidePopup requests the popup to close.
func HidePopup() Directive {
	return Directive{Kind: DirectiveHidePopup}
}

// Target names the sink state a directive overwrites. Directives with the
// same target supersede each other.
func (d Directive) Target() string {
	switch d.Kind {
	case DirectiveBoundTo, DirectiveCenterDefault:
		return "viewport"
	case DirectiveSetVisible:
		return "layer:" + string(d.Level)
	case DirectiveShowPopup, DirectiveHidePopup:
		return "popup"
	}
	return string(d.Kind)
}

// Coalesce keeps only the last directive per target, ordered by where that
// last directive appeared. Sinks receiving bursts use it to apply only the
// most recent instruction of each kind.
func Coalesce(directives []Directive) []Directive {
	last := make(map[string]int, len(directives))
	for i, d := range directives {
		last[d.Target()] = i
	}
	out := make([]Directive, 0, len(last))
	for i, d := range directives {
		if last[d.Target()] == i {
			out = append(out, d)
		}
	}
	return out
}
