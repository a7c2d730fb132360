// Package engine implements the map interaction state synchronization engine.
//
// One [Engine] exists per mounted map view. It owns the state-level and
// district-level selection stores and the comparison set, and it is the only
// component allowed to mutate more than one of them or to talk to the effect
// sinks (viewport, layer visibility, popups).
//
// # Events
//
// Every entry point is event shaped:
//
//	HoverState(f)       state store hover; popup follows the hover
//	HoverDistrict(f)    district store hover, only while the district layer is visible
//	SelectState(f)      state selection; absent cascades to the district selection
//	SelectDistrict(f)   district selection; auto-selects the parent state first
//	ResetAll()          clears both stores, restores the default view
//	ToggleComparison(f) adds or removes a district from the comparison set
//
// # Planning and dispatch
//
// Handling an event is split in two halves. [Plan] is a pure function from the
// current [Snapshot] and an [Event] to a [Transition]: the next snapshot, the
// ordered directive list and a status code. [Engine.Dispatch] applies the
// transition to the stores first and only then issues the directives, so a
// failing sink can never roll back a selection.
//
// When one gesture produces two viewport directives (auto-selecting a parent
// state, then the district), the coarser one is flagged intermediate and the
// district directive is issued last, so the effective viewport always frames
// the most specific selection.
//
// # Status values
//
// No event fails the engine. Recoverable outcomes are reported through
// [Result.Status] using codes from pkg/errors: CAPACITY_EXCEEDED and
// ALREADY_PRESENT for comparison changes, UNRESOLVED_PARENT for a district
// without a parent reference, INVALID_INPUT for events whose feature does
// not match the event level.
//
// # Concurrency
//
// Dispatch holds the engine mutex for the whole event, including directive
// issue. Hosts with many goroutines (the HTTP server) are therefore
// serialized through a single writer per view. Sinks must not call back into
// the engine.
package engine
