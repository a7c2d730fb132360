package engine

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/comparison"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/observability"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/selection"
)

// Result reports what one event did.
type Result struct {
	Event      EventKind          `json:"event"`
	Directives []Directive        `json:"directives"`
	Status     errors.Code        `json:"status,omitempty"`
	Message    string             `json:"message,omitempty"`
	Comparison comparison.Outcome `json:"comparison,omitempty"`
}

// OK reports whether the event completed without a status code.
func (r Result) OK() bool { return r.Status == "" }

// Option configures an Engine.
type Option func(*Engine)

// WithSinks sets the effect sinks directives are issued to.
func WithSinks(s Sinks) Option {
	return func(e *Engine) { e.sinks = s }
}

// WithResolver sets the lookup used to auto-select a loaded parent state
// instead of a stub.
func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolve = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithComparisonCapacity overrides the comparison set capacity.
func WithComparisonCapacity(n int) Option {
	return func(e *Engine) { e.compare = comparison.NewWithCapacity(n) }
}

// Engine owns the interaction state of one map view.
type Engine struct {
	mu sync.Mutex

	states    *selection.Store
	districts *selection.Store
	compare   *comparison.Set
	cursor    *Position

	sinks   Sinks
	resolve Resolver
	logger  *log.Logger

	unsubscribe []func()
	closed      bool
}

// New creates the engine for a freshly mounted view.
func New(opts ...Option) *Engine {
	e := &Engine{
		states:    selection.New(feature.LevelState),
		districts: selection.New(feature.LevelDistrict),
		compare:   comparison.New(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch fully processes one event: plan, store mutations, comparison
// change, then directives. Events on a closed engine are ignored.
func (e *Engine) Dispatch(ctx context.Context, ev Event) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res := Result{Event: ev.Kind, Directives: []Directive{}}
	if e.closed {
		res.Status = errors.ErrCodeViewExpired
		res.Message = "view has been unmounted"
		return res
	}

	t := Plan(e.snapshotLocked(), ev, e.resolve)
	e.applyLocked(t.Next)
	res.Status, res.Message = t.Status, t.Message

	if t.compare != compareNone {
		res.Comparison, res.Status, res.Message = e.compareLocked(ctx, t.compare, t.target)
	}

	for _, d := range t.Directives {
		e.issue(ctx, d)
	}
	res.Directives = append(res.Directives, t.Directives...)

	observability.Engine().OnEvent(ctx, string(ev.Kind), len(t.Directives), string(res.Status), time.Since(start))
	e.logger.Debug("event handled",
		"event", ev.Kind,
		"feature", ev.Feature,
		"directives", len(t.Directives),
		"status", res.Status)
	if res.Status != "" {
		e.logger.Info("event reported status", "event", ev.Kind, "status", res.Status, "message", res.Message)
	}
	return res
}

// HoverState handles a hover (or leave, with f nil) on the state layer.
func (e *Engine) HoverState(ctx context.Context, f *feature.Feature, pos *Position) Result {
	return e.Dispatch(ctx, Event{Kind: EventHoverState, Feature: f, Position: pos})
}

// HoverDistrict handles a hover (or leave, with f nil) on the district layer.
func (e *Engine) HoverDistrict(ctx context.Context, f *feature.Feature, pos *Position) Result {
	return e.Dispatch(ctx, Event{Kind: EventHoverDistrict, Feature: f, Position: pos})
}

// SelectState selects a state, or clears the state selection when f is nil.
func (e *Engine) SelectState(ctx context.Context, f *feature.Feature, pos *Position) Result {
	return e.Dispatch(ctx, Event{Kind: EventSelectState, Feature: f, Position: pos})
}

// SelectDistrict selects a district, or clears the district selection when f is nil.
func (e *Engine) SelectDistrict(ctx context.Context, f *feature.Feature, pos *Position) Result {
	return e.Dispatch(ctx, Event{Kind: EventSelectDistrict, Feature: f, Position: pos})
}

// ResetAll clears both selection stores and restores the default view.
func (e *Engine) ResetAll(ctx context.Context) Result {
	return e.Dispatch(ctx, Event{Kind: EventResetAll})
}

// ToggleComparison adds f to the comparison set, or removes it when present.
func (e *Engine) ToggleComparison(ctx context.Context, f *feature.Feature) Result {
	return e.Dispatch(ctx, Event{Kind: EventToggleComparison, Feature: f})
}

// AddComparison adds f to the comparison set.
func (e *Engine) AddComparison(ctx context.Context, f *feature.Feature) Result {
	return e.Dispatch(ctx, Event{Kind: EventAddComparison, Feature: f})
}

// RemoveComparison removes f from the comparison set.
func (e *Engine) RemoveComparison(ctx context.Context, f *feature.Feature) Result {
	return e.Dispatch(ctx, Event{Kind: EventRemoveComparison, Feature: f})
}

// HandleMapEvent translates a raw map notification and dispatches it.
func (e *Engine) HandleMapEvent(ctx context.Context, me MapEvent) Result {
	ev, err := Translate(me)
	if err != nil {
		return Result{
			Directives: []Directive{},
			Status:     errors.GetCode(err),
			Message:    errors.UserMessage(err),
		}
	}
	return e.Dispatch(ctx, ev)
}

// Reconcile replaces stub selections equal to full with full itself. It
// issues no directives and publishes no change, since the selection is the
// same feature.
func (e *Engine) Reconcile(full *feature.Feature) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if full == nil || full.Stub {
		return false
	}
	store := e.store(full.Level)
	if store == nil {
		return false
	}
	replaced := false
	if cur := store.Selected(); feature.Reconcile(cur, full) != cur {
		store.SetSelected(full)
		replaced = true
	}
	if cur := store.Hovered(); feature.Reconcile(cur, full) != cur {
		store.SetHovered(full)
		replaced = true
	}
	return replaced
}

// Snapshot returns a copy of the current interaction state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Route returns the comparison route for the current members.
func (e *Engine) Route() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compare.Route()
}

// Subscribe registers l for changes of either selection store. Listeners
// run synchronously inside Dispatch and must not call back into the engine.
func (e *Engine) Subscribe(l selection.Listener) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u1 := e.states.Subscribe(l)
	u2 := e.districts.Subscribe(l)
	u := func() { u1(); u2() }
	e.unsubscribe = append(e.unsubscribe, u)
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		u()
	}
}

// Close unmounts the view: both stores and the comparison set are emptied,
// listeners are detached and later events are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.districts.Clear()
	e.states.Clear()
	e.compare.Clear()
	for _, u := range e.unsubscribe {
		u()
	}
	e.unsubscribe = nil
	e.closed = true
	return nil
}

func (e *Engine) snapshotLocked() Snapshot {
	members := e.compare.Members()
	return Snapshot{
		State:      e.states.State(),
		District:   e.districts.State(),
		Cursor:     e.cursor,
		Comparison: members,
		Capacity:   e.compare.Cap(),
		Route:      route(members),
	}
}

// applyLocked writes next into the stores. A district selection being
// cleared is written before the state store so listeners never observe a
// district selected without its state.
func (e *Engine) applyLocked(next Snapshot) {
	e.cursor = next.Cursor
	if next.District.Selected == nil {
		e.districts.SetSelected(nil)
	}
	e.states.SetHovered(next.State.Hovered)
	e.states.SetSelected(next.State.Selected)
	e.districts.SetHovered(next.District.Hovered)
	e.districts.SetSelected(next.District.Selected)
}

func (e *Engine) compareLocked(ctx context.Context, op compareOp, f *feature.Feature) (comparison.Outcome, errors.Code, string) {
	var (
		outcome comparison.Outcome
		err     error
	)
	switch op {
	case compareToggle:
		outcome, err = e.compare.Toggle(f)
	case compareAdd:
		if err = e.compare.Add(f); err == nil {
			outcome = comparison.Added
		} else {
			outcome = comparison.Rejected
		}
	case compareRemove:
		if e.compare.Remove(f) {
			outcome = comparison.Removed
		}
	}

	observability.Engine().OnComparisonSize(ctx, e.compare.Len())
	if err != nil {
		return outcome, errors.GetCode(err), errors.UserMessage(err)
	}
	return outcome, "", ""
}

// issue applies d to the sinks. A panicking sink is logged and skipped; the
// stores already hold the new state.
func (e *Engine) issue(ctx context.Context, d Directive) {
	defer func() {
		if r := recover(); r != nil {
			observability.Engine().OnSinkPanic(ctx, string(d.Kind))
			e.logger.Warn("effect sink panicked", "directive", d.Kind, "panic", r)
		}
	}()
	observability.Engine().OnDirective(ctx, string(d.Kind))
	e.sinks.Apply(d)
}

func (e *Engine) store(level feature.Level) *selection.Store {
	switch level {
	case feature.LevelState:
		return e.states
	case feature.LevelDistrict:
		return e.districts
	}
	return nil
}
