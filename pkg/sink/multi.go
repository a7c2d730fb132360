package sink

import (
	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

type multi []engine.Sinks

// Multi returns a sink set that applies every directive to each of sets in
// order.
func Multi(sets ...engine.Sinks) engine.Sinks {
	m := multi(sets)
	return engine.Sinks{Viewport: m, Layers: m, Popups: m}
}

func (m multi) apply(d engine.Directive) {
	for _, s := range m {
		s.Apply(d)
	}
}

func (m multi) BoundTo(features []*feature.Feature) { m.apply(engine.BoundTo(features...)) }
func (m multi) CenterDefault()                      { m.apply(engine.CenterDefault()) }

func (m multi) SetVisible(level feature.Level, visible bool) {
	m.apply(engine.SetVisible(level, visible))
}

func (m multi) Show(f *feature.Feature, pos *engine.Position, kind engine.PopupKind) {
	m.apply(engine.ShowPopup(f, pos, kind))
}

func (m multi) Hide() { m.apply(engine.HidePopup()) }
