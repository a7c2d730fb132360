package engine

import (
	"fmt"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// EventKind identifies an engine entry point.
type EventKind string

// Engine events.
const (
	EventHoverState       EventKind = "hover_state"
	EventHoverDistrict    EventKind = "hover_district"
	EventSelectState      EventKind = "select_state"
	EventSelectDistrict   EventKind = "select_district"
	EventResetAll         EventKind = "reset_all"
	EventToggleComparison EventKind = "toggle_comparison"
	EventAddComparison    EventKind = "add_comparison"
	EventRemoveComparison EventKind = "remove_comparison"
)

// Position is a cursor location in map coordinates.
type Position struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

func (p *Position) String() string {
	if p == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("(%.5f, %.5f)", p.Lng, p.Lat)
}

// Event is one input to the engine. Feature is nil for "absent".
// Position is nil when the event source does not know the cursor.
type Event struct {
	Kind     EventKind
	Feature  *feature.Feature
	Position *Position
}

// MapEventKind is the raw interaction reported by the map widget.
type MapEventKind string

// Raw map interactions.
const (
	MapHover MapEventKind = "hover"
	MapClick MapEventKind = "click"
	MapLeave MapEventKind = "leave"
)

// MapEvent is a notification from the map event source.
type MapEvent struct {
	Kind     MapEventKind
	Level    feature.Level
	Feature  *feature.Feature
	Position *Position
}

// Translate maps a raw map notification onto an engine event.
//
// A click that hits no feature becomes ResetAll regardless of level. A leave
// clears the hover of its level.
func Translate(me MapEvent) (Event, error) {
	if me.Kind == MapClick && me.Feature == nil {
		return Event{Kind: EventResetAll, Position: me.Position}, nil
	}
	if !me.Level.Valid() {
		return Event{}, errors.New(errors.ErrCodeInvalidLevel, "map event has unknown level %q", me.Level)
	}

	ev := Event{Feature: me.Feature, Position: me.Position}
	switch me.Kind {
	case MapHover, MapLeave:
		if me.Kind == MapLeave {
			ev.Feature = nil
		}
		ev.Kind = EventHoverState
		if me.Level == feature.LevelDistrict {
			ev.Kind = EventHoverDistrict
		}
	case MapClick:
		ev.Kind = EventSelectState
		if me.Level == feature.LevelDistrict {
			ev.Kind = EventSelectDistrict
		}
	default:
		return Event{}, errors.New(errors.ErrCodeInvalidInput, "unknown map event kind %q", me.Kind)
	}
	return ev, nil
}
