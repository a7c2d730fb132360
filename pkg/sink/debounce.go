package sink

import (
	"sync"
	"time"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Debouncer buffers directives and applies them to the wrapped sinks after
// a quiet interval. Only the latest directive per target survives a burst,
// so a reset or new selection supersedes everything queued before it.
type Debouncer struct {
	mu       sync.Mutex
	next     engine.Sinks
	interval time.Duration
	pending  []engine.Directive
	timer    *time.Timer
	closed   bool
}

// NewDebouncer wraps next. A non-positive interval flushes on every call.
func NewDebouncer(next engine.Sinks, interval time.Duration) *Debouncer {
	return &Debouncer{next: next, interval: interval}
}

// Sinks returns d as a full sink set.
func (d *Debouncer) Sinks() engine.Sinks {
	return engine.Sinks{Viewport: d, Layers: d, Popups: d}
}

// BoundTo implements engine.Viewport.
func (d *Debouncer) BoundTo(features []*feature.Feature) { d.push(engine.BoundTo(features...)) }

// CenterDefault implements engine.Viewport.
func (d *Debouncer) CenterDefault() { d.push(engine.CenterDefault()) }

// SetVisible implements engine.Layers.
func (d *Debouncer) SetVisible(level feature.Level, visible bool) {
	d.push(engine.SetVisible(level, visible))
}

// Show implements engine.Popups.
func (d *Debouncer) Show(f *feature.Feature, pos *engine.Position, kind engine.PopupKind) {
	d.push(engine.ShowPopup(f, pos, kind))
}

// Hide implements engine.Popups.
func (d *Debouncer) Hide() { d.push(engine.HidePopup()) }

// Pending returns the number of buffered directives.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush applies buffered directives now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	batch := engine.Coalesce(d.pending)
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	for _, dir := range batch {
		d.next.Apply(dir)
	}
}

// Close flushes buffered directives and drops later ones.
func (d *Debouncer) Close() error {
	d.Flush()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *Debouncer) push(dir engine.Directive) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.pending = append(d.pending, dir)
	if d.interval <= 0 {
		d.mu.Unlock()
		d.Flush()
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.Flush)
	} else {
		d.timer.Reset(d.interval)
	}
	d.mu.Unlock()
}
