package engine

import (
	"testing"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

func TestTranslate(t *testing.T) {
	pos := &Position{Lng: -51.2, Lat: -30.0}
	tests := []struct {
		name        string
		in          MapEvent
		wantKind    EventKind
		wantFeature *feature.Feature
		wantCode    errors.Code
	}{
		{"hover state", MapEvent{Kind: MapHover, Level: feature.LevelState, Feature: rs, Position: pos}, EventHoverState, rs, ""},
		{"hover district", MapEvent{Kind: MapHover, Level: feature.LevelDistrict, Feature: poa}, EventHoverDistrict, poa, ""},
		{"leave drops feature", MapEvent{Kind: MapLeave, Level: feature.LevelState, Feature: rs}, EventHoverState, nil, ""},
		{"click state", MapEvent{Kind: MapClick, Level: feature.LevelState, Feature: rs}, EventSelectState, rs, ""},
		{"click district", MapEvent{Kind: MapClick, Level: feature.LevelDistrict, Feature: poa}, EventSelectDistrict, poa, ""},
		{"click empty map", MapEvent{Kind: MapClick, Level: feature.LevelDistrict}, EventResetAll, nil, ""},
		{"click empty unknown level", MapEvent{Kind: MapClick}, EventResetAll, nil, ""},
		{"unknown level", MapEvent{Kind: MapHover, Level: "country", Feature: rs}, "", nil, errors.ErrCodeInvalidLevel},
		{"unknown kind", MapEvent{Kind: "dblclick", Level: feature.LevelState, Feature: rs}, "", nil, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Translate(tt.in)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("Translate() error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if ev.Kind != tt.wantKind {
				t.Errorf("Translate().Kind = %q, want %q", ev.Kind, tt.wantKind)
			}
			if ev.Feature != tt.wantFeature {
				t.Errorf("Translate().Feature = %v, want %v", ev.Feature, tt.wantFeature)
			}
			if ev.Position != tt.in.Position {
				t.Errorf("Translate().Position = %v, want %v", ev.Position, tt.in.Position)
			}
		})
	}
}

func TestDirectiveTarget(t *testing.T) {
	tests := []struct {
		d    Directive
		want string
	}{
		{BoundTo(rs), "viewport"},
		{CenterDefault(), "viewport"},
		{SetVisible(feature.LevelState, true), "layer:state"},
		{SetVisible(feature.LevelDistrict, false), "layer:district"},
		{ShowPopup(rs, nil, PopupHover), "popup"},
		{HidePopup(), "popup"},
	}
	for _, tt := range tests {
		if got := tt.d.Target(); got != tt.want {
			t.Errorf("%s.Target() = %q, want %q", tt.d.Kind, got, tt.want)
		}
	}
}

func TestCoalesce(t *testing.T) {
	in := []Directive{
		BoundTo(rs),
		SetVisible(feature.LevelDistrict, true),
		SetVisible(feature.LevelState, true),
		BoundTo(poa),
		SetVisible(feature.LevelDistrict, false),
	}
	got := describeAll(Coalesce(in))
	want := []string{"visible:state=true", "bound:district:4314902", "visible:district=false"}
	if len(got) != len(want) {
		t.Fatalf("Coalesce() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Coalesce()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if out := Coalesce(nil); len(out) != 0 {
		t.Errorf("Coalesce(nil) = %v, want empty", out)
	}
}

func TestSinksApplyEmptyBoundFallsBack(t *testing.T) {
	rec := &recorder{}
	s := Sinks{Viewport: rec}
	s.Apply(BoundTo())
	s.Apply(SetVisible(feature.LevelState, true)) // no layer sink: dropped
	if len(rec.calls) != 1 || rec.calls[0] != "center" {
		t.Errorf("calls = %v, want [center]", rec.calls)
	}
}

func TestPositionString(t *testing.T) {
	var p *Position
	if got := p.String(); got != "<unknown>" {
		t.Errorf("nil Position.String() = %q", got)
	}
	p = &Position{Lng: -51.23, Lat: -30.03}
	if got, want := p.String(), "(-51.23000, -30.03000)"; got != want {
		t.Errorf("Position.String() = %q, want %q", got, want)
	}
}
