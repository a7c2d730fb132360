package engine

import (
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Viewport is the external viewport controller.
type Viewport interface {
	// BoundTo frames features. An empty list must behave like CenterDefault.
	BoundTo(features []*feature.Feature)
	CenterDefault()
}

// Layers is the external layer visibility controller.
type Layers interface {
	SetVisible(level feature.Level, visible bool)
}

// Popups is the external popup controller.
type Popups interface {
	Show(f *feature.Feature, pos *Position, kind PopupKind)
	Hide()
}

// Sinks groups the effect sinks an engine issues directives to.
// Nil members discard their directives.
type Sinks struct {
	Viewport Viewport
	Layers   Layers
	Popups   Popups
}

// Apply issues d to the matching sink.
func (s Sinks) Apply(d Directive) {
	switch d.Kind {
	case DirectiveBoundTo:
		if s.Viewport == nil {
			return
		}
		if len(d.Features) == 0 {
			s.Viewport.CenterDefault()
			return
		}
		s.Viewport.BoundTo(d.Features)
	case DirectiveCenterDefault:
		if s.Viewport != nil {
			s.Viewport.CenterDefault()
		}
	case DirectiveSetVisible:
		if s.Layers != nil {
			s.Layers.SetVisible(d.Level, d.Visible)
		}
	case DirectiveShowPopup:
		if s.Popups != nil {
			s.Popups.Show(d.Feature, d.Position, d.Popup)
		}
	case DirectiveHidePopup:
		if s.Popups != nil {
			s.Popups.Hide()
		}
	}
}
