package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Registry is the in-memory Store.
type Registry struct {
	mu      sync.Mutex
	views   map[string]*View
	factory Factory
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Logger
}

// NewRegistry creates an empty registry. A non-positive ttl uses DefaultTTL.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		views:   make(map[string]*View),
		factory: factory,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.Default(),
	}
}

// SetLogger sets the registry logger.
func (r *Registry) SetLogger(l *log.Logger) {
	if l != nil {
		r.logger = l
	}
}

// TTL returns the idle expiry.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Create mounts a new view with a random identifier.
func (r *Registry) Create(ctx context.Context) (View, error) {
	id := uuid.NewString()
	eng, rec := r.factory(id)
	if eng == nil {
		return View{}, errors.New(errors.ErrCodeInternal, "view factory returned no engine")
	}

	now := r.now()
	v := &View{ID: id, Engine: eng, Recorder: rec, CreatedAt: now, ExpiresAt: now.Add(r.ttl)}

	r.mu.Lock()
	r.views[id] = v
	n := len(r.views)
	r.mu.Unlock()

	r.logger.Debug("view mounted", "view", id, "live", n)
	return *v, nil
}

// Get returns the view and slides its expiry forward.
func (r *Registry) Get(ctx context.Context, id string) (View, error) {
	if _, err := uuid.Parse(id); err != nil {
		return View{}, errors.New(errors.ErrCodeViewNotFound, "view %q not found", id)
	}

	r.mu.Lock()
	v, ok := r.views[id]
	if !ok {
		r.mu.Unlock()
		return View{}, errors.New(errors.ErrCodeViewNotFound, "view %q not found", id)
	}
	now := r.now()
	if now.After(v.ExpiresAt) {
		delete(r.views, id)
		r.mu.Unlock()
		r.unmount(v, "expired")
		return View{}, errors.New(errors.ErrCodeViewExpired, "view %q expired", id)
	}
	v.ExpiresAt = now.Add(r.ttl)
	out := *v
	r.mu.Unlock()
	return out, nil
}

// Delete unmounts a view.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if !ok {
		return errors.New(errors.ErrCodeViewNotFound, "view %q not found", id)
	}
	r.unmount(v, "deleted")
	return nil
}

// Cleanup unmounts expired views.
func (r *Registry) Cleanup(ctx context.Context) (int, error) {
	now := r.now()

	r.mu.Lock()
	var expired []*View
	for id, v := range r.views {
		if now.After(v.ExpiresAt) {
			expired = append(expired, v)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, v := range expired {
		r.unmount(v, "expired")
	}
	return len(expired), nil
}

// Run calls Cleanup every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, _ := r.Cleanup(ctx); n > 0 {
				r.logger.Info("expired idle views", "count", n)
			}
		}
	}
}

// List returns the live views ordered by creation time.
func (r *Registry) List() []View {
	r.mu.Lock()
	out := make([]View, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, *v)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Reconcile swaps stub selections in every live view for the matching
// loaded features. It returns how many views changed.
func (r *Registry) Reconcile(features ...*feature.Feature) int {
	r.mu.Lock()
	engines := make([]*engine.Engine, 0, len(r.views))
	for _, v := range r.views {
		engines = append(engines, v.Engine)
	}
	r.mu.Unlock()

	changed := 0
	for _, eng := range engines {
		replaced := false
		for _, f := range features {
			if eng.Reconcile(f) {
				replaced = true
			}
		}
		if replaced {
			changed++
		}
	}
	return changed
}

// Len returns the number of live views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close unmounts every view.
func (r *Registry) Close() error {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()

	for _, v := range views {
		r.unmount(v, "shutdown")
	}
	return nil
}

func (r *Registry) unmount(v *View, reason string) {
	if err := v.Engine.Close(); err != nil {
		r.logger.Warn("view unmount failed", "view", v.ID, "error", err)
		return
	}
	r.logger.Debug("view unmounted", "view", v.ID, "reason", reason)
}

var _ Store = (*Registry)(nil)
