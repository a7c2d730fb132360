// Package pkg holds the libraries behind atlas, an interaction core for
// two-level administrative maps (states containing districts).
//
// # Overview
//
// A map widget reports hovers, clicks and leaves. atlas keeps the resulting
// hover, selection and comparison state consistent across both levels and
// turns every change into directives for three external controllers: the
// viewport, the layer visibility switch and the popup.
//
//	map widget events
//	         ↓
//	    [engine] (translate, plan, mutate stores)
//	         ↓
//	    [selection] + [comparison] (state per level, bounded set)
//	         ↓
//	    directives → [sink] (viewport camera, recorder, log, debounce)
//
// # Quick Start
//
//	rec := sink.NewRecorder()
//	eng := engine.New(engine.WithSinks(rec.Sinks()), engine.WithResolver(cat.Resolve))
//	defer eng.Close()
//
//	res := eng.HandleMapEvent(ctx, engine.MapEvent{
//	    Kind:    engine.MapClick,
//	    Level:   feature.LevelDistrict,
//	    Feature: cat.District("4314902"),
//	})
//	fmt.Println(res.Directives, rec.View().Framed)
//
// # Main Packages
//
// ## Interaction Core
//
// [feature] - Map features, levels and the parent-stub convention for
// districts whose state is not loaded yet.
//
// [selection] - One hovered and one selected feature per level, with
// change listeners.
//
// [comparison] - The insertion-ordered comparison set (at most four
// districts) and its route encoding.
//
// [engine] - Event handling, the directive plan for each event kind and the
// sink interfaces.
//
// [sink] - Sink implementations: a camera that fits bounds, a recorder that
// projects the map state, logging, fan-out and debouncing.
//
// ## Data
//
// [geodata] - GeoJSON loading into a catalogue of states and districts with
// geometry lookup and search.
//
// [cache] - Dataset cache backends (file, Redis, null).
//
// ## Infrastructure
//
// [config] - TOML and ATLAS_* environment configuration.
//
// [session] - Registry of live map views with sliding expiry.
//
// [observability] - Hooks for engine, cache and HTTP metrics.
//
// [errors] - Error codes shared by the engine status and the HTTP API.
//
// [buildinfo] - Version stamp.
//
// # Testing
//
//	go test ./pkg/...                     # All tests
//	go test -run Example ./pkg/engine     # Examples only
//	ATLAS_TEST_REDIS_ADDR=localhost:6379 go test ./pkg/cache
//
// [feature]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/feature
// [selection]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/selection
// [comparison]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/comparison
// [engine]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/engine
// [sink]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/sink
// [geodata]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/geodata
// [cache]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/cache
// [config]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/config
// [session]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/session
// [observability]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/observability
// [errors]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/gpmc-lab-ufrgs/atlas/pkg/buildinfo
package pkg
