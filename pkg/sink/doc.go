// Package sink provides effect sinks for the interaction engine.
//
// The engine only issues [engine.Directive] values; what a directive means
// for a real map widget lives behind the [engine.Viewport], [engine.Layers]
// and [engine.Popups] interfaces. This package implements them for the
// places atlas renders a map without a browser:
//
//   - [Recorder] records every directive and materializes the resulting
//     view (camera target, layer visibility, open popup). The HTTP server
//     and the terminal explorer read their map state from it.
//   - [Viewport] turns bound_to directives into a concrete camera using
//     feature geometries.
//   - [Debouncer] buffers bursts and applies only the latest directive per
//     target.
//   - [Multi] fans directives out to several sink sets and [NewLog] logs
//     them.
//
// All sinks are idempotent: applying the same directive twice leaves the
// view unchanged the second time.
package sink
