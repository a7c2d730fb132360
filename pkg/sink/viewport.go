package sink

import (
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Geometry looks up the geometry of a feature that arrived without one,
// typically a stub state.
type Geometry func(f *feature.Feature) orb.Geometry

// Camera is a concrete map camera.
type Camera struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Bound  orb.Bound `json:"bound"`
}

// Default camera limits.
const (
	MaxZoom        = 18
	DefaultPadding = 0.05
)

// Viewport fits the camera to feature geometries. It implements
// engine.Viewport.
type Viewport struct {
	mu       sync.Mutex
	def      Camera
	cur      Camera
	padding  float64
	geometry Geometry
	logger   *log.Logger
	moves    int
}

// ViewportOption configures a Viewport.
type ViewportOption func(*Viewport)

// WithGeometry sets the fallback geometry lookup.
func WithGeometry(g Geometry) ViewportOption {
	return func(v *Viewport) { v.geometry = g }
}

// WithPadding sets the fraction of the bound added on each side.
func WithPadding(p float64) ViewportOption {
	return func(v *Viewport) {
		if p >= 0 {
			v.padding = p
		}
	}
}

// WithViewportLogger sets the logger used for features without geometry.
func WithViewportLogger(l *log.Logger) ViewportOption {
	return func(v *Viewport) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewViewport creates a viewport whose default camera is center at zoom.
func NewViewport(center orb.Point, zoom float64, opts ...ViewportOption) *Viewport {
	def := Camera{Center: center, Zoom: zoom, Bound: orb.Bound{Min: center, Max: center}}
	v := &Viewport{
		def:     def,
		cur:     def,
		padding: DefaultPadding,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// BoundTo fits the camera to the union of the features' bounds. Features
// without a known geometry are skipped; if none has one the camera is left
// where it is.
func (v *Viewport) BoundTo(features []*feature.Feature) {
	b, ok := v.bound(features)
	if !ok {
		if len(features) == 0 {
			v.CenterDefault()
			return
		}
		v.logger.Debug("no geometry to frame", "features", feature.IDs(features))
		return
	}
	v.move(fit(b, v.padding))
}

// CenterDefault restores the default camera.
func (v *Viewport) CenterDefault() {
	v.move(v.def)
}

// Camera returns the current camera.
func (v *Viewport) Camera() Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Moves counts camera changes. Repeating a directive does not move the camera.
func (v *Viewport) Moves() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.moves
}

func (v *Viewport) move(c Camera) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if c == v.cur {
		return
	}
	v.cur = c
	v.moves++
}

func (v *Viewport) bound(features []*feature.Feature) (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	for _, f := range features {
		g := f.Geometry
		if g == nil && v.geometry != nil {
			g = v.geometry(f)
		}
		if g == nil {
			continue
		}
		if !found {
			b, found = g.Bound(), true
			continue
		}
		b = b.Union(g.Bound())
	}
	return b, found
}

// fit returns the camera that shows b with padding on each side.
func fit(b orb.Bound, padding float64) Camera {
	span := math.Max(b.Right()-b.Left(), b.Top()-b.Bottom())
	b = b.Pad(span * padding)
	span = math.Max(b.Right()-b.Left(), b.Top()-b.Bottom())

	zoom := float64(MaxZoom)
	if span > 0 {
		zoom = math.Min(MaxZoom, math.Max(0, math.Log2(360/span)))
	}
	return Camera{Center: b.Center(), Zoom: math.Round(zoom*100) / 100, Bound: b}
}
