package engine

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/comparison"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/selection"
)

// recorder is a sink set that records every call it receives.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) BoundTo(fs []*feature.Feature) { r.add(describe(BoundTo(fs...))) }
func (r *recorder) CenterDefault()                { r.add("center") }
func (r *recorder) SetVisible(l feature.Level, v bool) {
	r.add(describe(SetVisible(l, v)))
}
func (r *recorder) Show(f *feature.Feature, pos *Position, kind PopupKind) {
	r.add(describe(ShowPopup(f, pos, kind)))
}
func (r *recorder) Hide() { r.add("hide") }

func (r *recorder) sinks() Sinks { return Sinks{Viewport: r, Layers: r, Popups: r} }

func (r *recorder) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func newRecorded(opts ...Option) (*Engine, *recorder) {
	rec := &recorder{}
	return New(append([]Option{WithSinks(rec.sinks())}, opts...)...), rec
}

func TestEngineSelectDistrictScenario(t *testing.T) {
	ctx := context.Background()
	e, rec := newRecorded()

	res := e.SelectDistrict(ctx, poa, nil)
	if !res.OK() {
		t.Fatalf("SelectDistrict() status = %q", res.Status)
	}

	snap := e.Snapshot()
	if s := snap.State.Selected; s == nil || !s.Stub || s.ID != "RS" {
		t.Errorf("state selected = %v, want stub RS", s)
	}
	if snap.District.Selected != poa {
		t.Errorf("district selected = %v, want %v", snap.District.Selected, poa)
	}

	// Sinks do not see the intermediate flag; the final viewport call is the district.
	want := []string{"bound:state:RS~", "visible:district=true", "visible:state=true", "bound:district:4314902"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("sink calls = %v, want %v", rec.calls, want)
	}
	if !res.Directives[0].Intermediate || res.Directives[len(res.Directives)-1].Intermediate {
		t.Errorf("intermediate flags wrong: %v", describeAll(res.Directives))
	}
}

func TestEngineSelectStateThenDeselect(t *testing.T) {
	ctx := context.Background()
	e, rec := newRecorded()

	e.SelectState(ctx, rs, nil)
	e.SelectDistrict(ctx, poa, nil)
	rec.reset()

	e.SelectState(ctx, nil, nil)
	snap := e.Snapshot()
	if snap.District.Selected != nil {
		t.Errorf("district selected = %v, want absent", snap.District.Selected)
	}
	if snap.DistrictLayerVisible() {
		t.Error("district layer should be hidden")
	}
	want := []string{"center", "visible:district=false"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("sink calls = %v, want %v", rec.calls, want)
	}
}

func TestEngineIdempotentSelect(t *testing.T) {
	ctx := context.Background()
	e, rec := newRecorded()

	if res := e.SelectState(ctx, nil, nil); len(res.Directives) != 0 {
		t.Errorf("SelectState(nil) on fresh engine issued %v", describeAll(res.Directives))
	}
	e.SelectState(ctx, rs, nil)
	n := len(rec.calls)
	e.SelectState(ctx, rs, nil)
	if len(rec.calls) != n {
		t.Errorf("repeated SelectState issued %v", rec.calls[n:])
	}
}

func TestEngineResetAll(t *testing.T) {
	ctx := context.Background()
	e, _ := newRecorded()

	sequences := [][]func(){
		{},
		{func() { e.HoverState(ctx, sc, nil) }},
		{func() { e.SelectDistrict(ctx, floripa, nil) }, func() { e.HoverDistrict(ctx, joinvile, nil) }},
		{func() { e.SelectState(ctx, rs, nil) }, func() { e.ToggleComparison(ctx, poa) }},
	}

	for _, seq := range sequences {
		for _, step := range seq {
			step()
		}
		before := e.Snapshot().Comparison
		res := e.ResetAll(ctx)
		if !res.OK() {
			t.Errorf("ResetAll() status = %q", res.Status)
		}
		snap := e.Snapshot()
		if snap.State != (selection.State{}) || snap.District != (selection.State{}) {
			t.Errorf("after ResetAll stores = %+v %+v, want empty", snap.State, snap.District)
		}
		if !reflect.DeepEqual(feature.IDs(snap.Comparison), feature.IDs(before)) {
			t.Errorf("ResetAll changed comparison: %v -> %v", before, snap.Comparison)
		}
	}
}

func TestEngineComparison(t *testing.T) {
	ctx := context.Background()
	e, rec := newRecorded()

	districts := []*feature.Feature{poa, pelotas, floripa, joinvile}
	for _, d := range districts {
		if res := e.AddComparison(ctx, d); res.Comparison != comparison.Added {
			t.Fatalf("AddComparison(%v) = %+v", d, res)
		}
	}

	if res := e.AddComparison(ctx, poa); res.Status != errors.ErrCodeAlreadyPresent {
		t.Errorf("duplicate add status = %q, want %q", res.Status, errors.ErrCodeAlreadyPresent)
	}

	fifth := &feature.Feature{ID: "4106902", Level: feature.LevelDistrict, ParentID: "PR"}
	res := e.ToggleComparison(ctx, fifth)
	if res.Status != errors.ErrCodeCapacityExceeded || res.Comparison != comparison.Rejected {
		t.Errorf("fifth toggle = %+v, want rejected with %q", res, errors.ErrCodeCapacityExceeded)
	}
	if got := len(e.Snapshot().Comparison); got != comparison.Capacity {
		t.Errorf("comparison size = %d, want %d", got, comparison.Capacity)
	}

	if res := e.ToggleComparison(ctx, pelotas); res.Comparison != comparison.Removed {
		t.Errorf("toggle member = %q, want %q", res.Comparison, comparison.Removed)
	}
	if got, want := e.Route(), "comparison/4314902+4205407+4209102"; got != want {
		t.Errorf("Route() = %q, want %q", got, want)
	}
	if res := e.RemoveComparison(ctx, pelotas); res.Comparison != "" || !res.OK() {
		t.Errorf("remove absent = %+v, want no-op", res)
	}

	if len(rec.calls) != 0 {
		t.Errorf("comparison issued sink calls %v", rec.calls)
	}
	if e.Snapshot().State.Selected != nil {
		t.Error("comparison changed selection")
	}
}

func TestEngineComparisonCapacity(t *testing.T) {
	ctx := context.Background()
	e, _ := newRecorded(WithComparisonCapacity(2))

	e.AddComparison(ctx, poa)
	e.AddComparison(ctx, floripa)
	if res := e.AddComparison(ctx, joinvile); res.Status != errors.ErrCodeCapacityExceeded {
		t.Errorf("third add status = %q, want %q", res.Status, errors.ErrCodeCapacityExceeded)
	}
	if snap := e.Snapshot(); snap.Capacity != 2 || len(snap.Comparison) != 2 {
		t.Errorf("snapshot = %d members of %d, want 2 of 2", len(snap.Comparison), snap.Capacity)
	}

	if got := New().Snapshot().Capacity; got != comparison.Capacity {
		t.Errorf("default capacity = %d, want %d", got, comparison.Capacity)
	}
}

func TestEngineToggleTwiceRestores(t *testing.T) {
	ctx := context.Background()
	e, _ := newRecorded()
	e.AddComparison(ctx, poa)
	e.AddComparison(ctx, floripa)
	before := feature.IDs(e.Snapshot().Comparison)

	e.ToggleComparison(ctx, joinvile)
	e.ToggleComparison(ctx, joinvile)
	if got := feature.IDs(e.Snapshot().Comparison); !reflect.DeepEqual(got, before) {
		t.Errorf("after double toggle = %v, want %v", got, before)
	}

	e.AddComparison(ctx, pelotas)
	before = feature.IDs(e.Snapshot().Comparison)
	e.ToggleComparison(ctx, floripa)
	e.ToggleComparison(ctx, floripa)
	if got := feature.IDs(e.Snapshot().Comparison); !reflect.DeepEqual(got, before) {
		t.Errorf("after double toggle of a middle member = %v, want %v", got, before)
	}
}

func TestEngineInvariantHolds(t *testing.T) {
	ctx := context.Background()
	e, _ := newRecorded()

	steps := []func(){
		func() { e.SelectDistrict(ctx, poa, nil) },
		func() { e.SelectState(ctx, sc, nil) },
		func() { e.SelectDistrict(ctx, joinvile, nil) },
		func() { e.HoverDistrict(ctx, floripa, nil) },
		func() { e.SelectDistrict(ctx, pelotas, nil) },
		func() { e.SelectState(ctx, nil, nil) },
		func() { e.SelectDistrict(ctx, floripa, nil) },
		func() { e.ResetAll(ctx) },
	}
	for i, step := range steps {
		step()
		snap := e.Snapshot()
		d := snap.District.Selected
		if d == nil {
			continue
		}
		s := snap.State.Selected
		if s == nil || s.ID != d.ParentID {
			t.Errorf("step %d: district %v selected under state %v", i, d, s)
		}
	}
}

func TestEngineListenersNeverSeeOrphanDistrict(t *testing.T) {
	ctx := context.Background()
	e := New()

	// Mirror the stores from the change stream; Snapshot cannot be called
	// from inside a listener.
	var state, district *feature.Feature
	e.Subscribe(func(c selection.Change) {
		if c.Field != selection.FieldSelected {
			return
		}
		if c.Level == feature.LevelState {
			state = c.New
		} else {
			district = c.New
		}
		if district != nil && state == nil {
			t.Errorf("listener observed district %v without a state", district)
		}
	})

	e.SelectDistrict(ctx, poa, nil)
	e.SelectDistrict(ctx, floripa, nil)
	e.SelectState(ctx, nil, nil)
	e.SelectDistrict(ctx, joinvile, nil)
	e.ResetAll(ctx)
}

func TestEngineSubscribe(t *testing.T) {
	ctx := context.Background()
	e := New()

	var changes []selection.Change
	unsubscribe := e.Subscribe(func(c selection.Change) { changes = append(changes, c) })

	e.SelectDistrict(ctx, poa, nil)
	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	if changes[0].Level != feature.LevelState || changes[1].Level != feature.LevelDistrict {
		t.Errorf("change order = %v then %v, want state then district", changes[0].Level, changes[1].Level)
	}

	unsubscribe()
	e.ResetAll(ctx)
	if len(changes) != 2 {
		t.Errorf("changes after unsubscribe = %d, want 2", len(changes))
	}
}

type panicky struct{ recorder }

func (p *panicky) BoundTo([]*feature.Feature) { panic("viewport detached") }

func TestEngineSinkPanic(t *testing.T) {
	ctx := context.Background()
	p := &panicky{}
	e := New(WithSinks(Sinks{Viewport: p, Layers: p, Popups: p}))

	res := e.SelectState(ctx, rs, nil)
	if !res.OK() {
		t.Errorf("status = %q, want ok", res.Status)
	}
	if e.Snapshot().State.Selected != rs {
		t.Error("selection rolled back by sink panic")
	}
	want := []string{"visible:district=true", "visible:state=true"}
	if !reflect.DeepEqual(p.calls, want) {
		t.Errorf("remaining sink calls = %v, want %v", p.calls, want)
	}
}

func TestEngineHandleMapEvent(t *testing.T) {
	ctx := context.Background()
	e, _ := newRecorded()
	pos := &Position{Lng: -51.2, Lat: -30.0}

	e.HandleMapEvent(ctx, MapEvent{Kind: MapClick, Level: feature.LevelState, Feature: rs, Position: pos})
	e.HandleMapEvent(ctx, MapEvent{Kind: MapHover, Level: feature.LevelDistrict, Feature: poa, Position: pos})
	snap := e.Snapshot()
	if snap.State.Selected != rs || snap.District.Hovered != poa {
		t.Errorf("snapshot = %+v", snap)
	}

	e.HandleMapEvent(ctx, MapEvent{Kind: MapLeave, Level: feature.LevelDistrict, Position: pos})
	if e.Snapshot().District.Hovered != nil {
		t.Error("leave did not clear district hover")
	}

	e.HandleMapEvent(ctx, MapEvent{Kind: MapClick, Level: feature.LevelState, Position: pos})
	if e.Snapshot().State.Selected != nil {
		t.Error("click on empty map did not reset")
	}

	res := e.HandleMapEvent(ctx, MapEvent{Kind: MapHover, Level: "country", Feature: rs})
	if res.Status != errors.ErrCodeInvalidLevel {
		t.Errorf("status = %q, want %q", res.Status, errors.ErrCodeInvalidLevel)
	}
}

func TestEngineReconcile(t *testing.T) {
	ctx := context.Background()
	e, rec := newRecorded()

	var changes int
	e.Subscribe(func(selection.Change) { changes++ })
	e.SelectDistrict(ctx, poa, nil)
	changes = 0
	rec.reset()

	if e.Reconcile(sc) {
		t.Error("Reconcile(SC) replaced an unrelated selection")
	}
	if !e.Reconcile(rs) {
		t.Fatal("Reconcile(RS) = false, want true")
	}
	if e.Snapshot().State.Selected != rs {
		t.Errorf("state selected = %v, want %v", e.Snapshot().State.Selected, rs)
	}
	if changes != 0 || len(rec.calls) != 0 {
		t.Errorf("Reconcile published %d changes and %v", changes, rec.calls)
	}
}

func TestEngineClose(t *testing.T) {
	ctx := context.Background()
	e, rec := newRecorded()
	e.SelectDistrict(ctx, poa, nil)
	e.AddComparison(ctx, poa)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	snap := e.Snapshot()
	if snap.State.Selected != nil || len(snap.Comparison) != 0 {
		t.Errorf("snapshot after Close = %+v", snap)
	}

	rec.reset()
	res := e.SelectState(ctx, rs, nil)
	if res.Status != errors.ErrCodeViewExpired {
		t.Errorf("status = %q, want %q", res.Status, errors.ErrCodeViewExpired)
	}
	if len(rec.calls) != 0 {
		t.Errorf("closed engine issued %v", rec.calls)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestEngineConcurrentDispatch(t *testing.T) {
	ctx := context.Background()
	e, _ := newRecorded()

	districts := []*feature.Feature{poa, pelotas, floripa, joinvile}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := districts[i%len(districts)]
			switch i % 3 {
			case 0:
				e.SelectDistrict(ctx, d, nil)
			case 1:
				e.HoverDistrict(ctx, d, nil)
			default:
				e.ToggleComparison(ctx, d)
			}
		}(i)
	}
	wg.Wait()

	snap := e.Snapshot()
	if d := snap.District.Selected; d != nil && (snap.State.Selected == nil || snap.State.Selected.ID != d.ParentID) {
		t.Errorf("district %v selected under state %v", d, snap.State.Selected)
	}
	if len(snap.Comparison) > comparison.Capacity {
		t.Errorf("comparison size = %d", len(snap.Comparison))
	}
}
