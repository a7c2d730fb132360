package sink

import (
	"slices"
	"sync"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Popup is the popup currently shown by a view.
type Popup struct {
	Feature  *feature.Feature `json:"feature"`
	Position *engine.Position `json:"position,omitempty"`
	Kind     engine.PopupKind `json:"kind"`
}

// View is the map state produced by the directives applied so far.
type View struct {
	// Centered is true while the viewport shows the default extent.
	Centered bool `json:"centered"`
	// Framed lists the features the viewport is fitted to.
	Framed []string `json:"framed,omitempty"`

	Layers map[feature.Level]bool `json:"layers"`
	Popup  *Popup                 `json:"popup,omitempty"`
}

// Recorder records directives and keeps the resulting view.
// It is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	directives []engine.Directive
	view       View
	changes    int
}

// NewRecorder creates a recorder showing the default view: centered, state
// layer visible, district layer hidden.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.reset()
	return r
}

func (r *Recorder) reset() {
	r.directives = nil
	r.changes = 0
	r.view = View{
		Centered: true,
		Layers: map[feature.Level]bool{
			feature.LevelState:    true,
			feature.LevelDistrict: false,
		},
	}
}

// Sinks returns r as a full sink set.
func (r *Recorder) Sinks() engine.Sinks {
	return engine.Sinks{Viewport: r, Layers: r, Popups: r}
}

// BoundTo implements engine.Viewport.
func (r *Recorder) BoundTo(features []*feature.Feature) {
	if len(features) == 0 {
		r.CenterDefault()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.directives = append(r.directives, engine.BoundTo(features...))
	ids := feature.IDs(features)
	if !r.view.Centered && slices.Equal(r.view.Framed, ids) {
		return
	}
	r.view.Centered = false
	r.view.Framed = ids
	r.changes++
}

// CenterDefault implements engine.Viewport.
func (r *Recorder) CenterDefault() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.directives = append(r.directives, engine.CenterDefault())
	if r.view.Centered {
		return
	}
	r.view.Centered = true
	r.view.Framed = nil
	r.changes++
}

// SetVisible implements engine.Layers.
func (r *Recorder) SetVisible(level feature.Level, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.directives = append(r.directives, engine.SetVisible(level, visible))
	if cur, ok := r.view.Layers[level]; ok && cur == visible {
		return
	}
	r.view.Layers[level] = visible
	r.changes++
}

// Show implements engine.Popups.
func (r *Recorder) Show(f *feature.Feature, pos *engine.Position, kind engine.PopupKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.directives = append(r.directives, engine.ShowPopup(f, pos, kind))
	if p := r.view.Popup; p != nil && feature.Equal(p.Feature, f) && p.Kind == kind && p.Position == pos {
		return
	}
	r.view.Popup = &Popup{Feature: f, Position: pos, Kind: kind}
	r.changes++
}

// Hide implements engine.Popups.
func (r *Recorder) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.directives = append(r.directives, engine.HidePopup())
	if r.view.Popup == nil {
		return
	}
	r.view.Popup = nil
	r.changes++
}

// Directives returns a copy of every directive received.
func (r *Recorder) Directives() []engine.Directive {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Directive, len(r.directives))
	copy(out, r.directives)
	return out
}

// Drain returns the directives received since the last Drain and forgets them.
// The view is kept.
func (r *Recorder) Drain() []engine.Directive {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.directives
	r.directives = nil
	return out
}

// View returns a copy of the current view.
func (r *Recorder) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.view
	v.Framed = append([]string(nil), r.view.Framed...)
	v.Layers = make(map[feature.Level]bool, len(r.view.Layers))
	for k, b := range r.view.Layers {
		v.Layers[k] = b
	}
	if r.view.Popup != nil {
		p := *r.view.Popup
		v.Popup = &p
	}
	return v
}

// Changes counts directives that actually altered the view.
func (r *Recorder) Changes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes
}

// Reset forgets recorded directives and restores the default view.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}
