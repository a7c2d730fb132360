// Package session keeps the live map views served by atlas.
//
// A view is one mounted map: an [engine.Engine] plus the [sink.Recorder]
// its directives materialize into. Views live in memory only and expire
// after a period without use; expiry and deletion unmount the engine, so a
// late event for an expired view is reported instead of applied.
//
// # Usage
//
//	reg := session.NewRegistry(factory, session.DefaultTTL)
//	go reg.Run(ctx, time.Minute) // expire idle views
//
//	v, err := reg.Create(ctx)
//	v, err = reg.Get(ctx, v.ID) // refreshes the expiry
//	err = reg.Delete(ctx, v.ID)
package session

import (
	"context"
	"time"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/sink"
)

// DefaultTTL is how long an idle view is kept.
const DefaultTTL = 30 * time.Minute

// View is one mounted map.
type View struct {
	ID        string         `json:"id"`
	Engine    *engine.Engine `json:"-"`
	Recorder  *sink.Recorder `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Factory builds the engine and recorder of a new view.
type Factory func(id string) (*engine.Engine, *sink.Recorder)

// Store is the interface for view registries.
type Store interface {
	// Create mounts a new view.
	Create(ctx context.Context) (View, error)

	// Get returns a view and extends its expiry. Unknown views fail with
	// VIEW_NOT_FOUND, expired ones with VIEW_EXPIRED.
	Get(ctx context.Context, id string) (View, error)

	// Delete unmounts a view.
	Delete(ctx context.Context, id string) error

	// Cleanup unmounts expired views and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
}
