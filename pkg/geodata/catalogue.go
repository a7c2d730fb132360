package geodata

import (
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

// Catalogue indexes the loaded features of both levels.
// It is safe for concurrent use.
type Catalogue struct {
	mu        sync.RWMutex
	states    map[string]*feature.Feature
	districts map[string]*feature.Feature
	children  map[string][]*feature.Feature
}

// NewCatalogue creates an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{
		states:    make(map[string]*feature.Feature),
		districts: make(map[string]*feature.Feature),
		children:  make(map[string][]*feature.Feature),
	}
}

// Add indexes features. A feature replaces an earlier one with the same
// level and identifier.
func (c *Catalogue) Add(features ...*feature.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range features {
		switch f.Level {
		case feature.LevelState:
			c.states[f.ID] = f
		case feature.LevelDistrict:
			if old, ok := c.districts[f.ID]; ok {
				c.unlink(old)
			}
			c.districts[f.ID] = f
			if f.ParentID != "" {
				c.children[f.ParentID] = append(c.children[f.ParentID], f)
			}
		}
	}
}

// Merge adds every feature of from and returns the states c did not hold
// before, in name order.
func (c *Catalogue) Merge(from *Catalogue) []*feature.Feature {
	if from == nil || from == c {
		return nil
	}
	from.mu.RLock()
	features := make([]*feature.Feature, 0, len(from.states)+len(from.districts))
	for _, f := range from.states {
		features = append(features, f)
	}
	for _, f := range from.districts {
		features = append(features, f)
	}
	from.mu.RUnlock()

	c.mu.RLock()
	var added []*feature.Feature
	for _, f := range features {
		if _, ok := c.states[f.ID]; f.Level == feature.LevelState && !ok {
			added = append(added, f)
		}
	}
	c.mu.RUnlock()

	c.Add(features...)
	sortByName(added)
	return added
}

func (c *Catalogue) unlink(f *feature.Feature) {
	siblings := c.children[f.ParentID]
	for i, s := range siblings {
		if s == f {
			c.children[f.ParentID] = append(siblings[:i:i], siblings[i+1:]...)
			return
		}
	}
}

// Feature returns the feature with level and id, or nil.
func (c *Catalogue) Feature(level feature.Level, id string) *feature.Feature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch level {
	case feature.LevelState:
		return c.states[id]
	case feature.LevelDistrict:
		return c.districts[id]
	}
	return nil
}

// State returns the state with id, or nil.
func (c *Catalogue) State(id string) *feature.Feature {
	return c.Feature(feature.LevelState, id)
}

// District returns the district with id, or nil.
func (c *Catalogue) District(id string) *feature.Feature {
	return c.Feature(feature.LevelDistrict, id)
}

// Lookup returns the feature with level and id or a FEATURE_NOT_FOUND error.
func (c *Catalogue) Lookup(level feature.Level, id string) (*feature.Feature, error) {
	if f := c.Feature(level, id); f != nil {
		return f, nil
	}
	return nil, errors.New(errors.ErrCodeFeatureNotFound, "no %s with id %q", level, id)
}

// Resolve returns the loaded state with id, or nil. It has the shape of
// engine.Resolver.
func (c *Catalogue) Resolve(stateID string) *feature.Feature {
	return c.State(stateID)
}

// Geometry returns the geometry of the loaded counterpart of f. It lets the
// viewport sink frame stub selections.
func (c *Catalogue) Geometry(f *feature.Feature) orb.Geometry {
	if f == nil {
		return nil
	}
	if full := c.Feature(f.Level, f.ID); full != nil {
		return full.Geometry
	}
	return nil
}

// States returns every state sorted by name.
func (c *Catalogue) States() []*feature.Feature {
	c.mu.RLock()
	out := make([]*feature.Feature, 0, len(c.states))
	for _, f := range c.states {
		out = append(out, f)
	}
	c.mu.RUnlock()
	sortByName(out)
	return out
}

// DistrictsOf returns the districts whose parent is stateID, sorted by name.
func (c *Catalogue) DistrictsOf(stateID string) []*feature.Feature {
	c.mu.RLock()
	out := append([]*feature.Feature(nil), c.children[stateID]...)
	c.mu.RUnlock()
	sortByName(out)
	return out
}

// Search returns up to limit features of level whose name or identifier
// contains query, ignoring case. A non-positive limit means no limit.
func (c *Catalogue) Search(level feature.Level, query string, limit int) []*feature.Feature {
	q := strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	src := c.states
	if level == feature.LevelDistrict {
		src = c.districts
	}
	var out []*feature.Feature
	for _, f := range src {
		if q == "" || strings.Contains(strings.ToLower(f.Name), q) || strings.Contains(strings.ToLower(f.ID), q) {
			out = append(out, f)
		}
	}
	c.mu.RUnlock()

	sortByName(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of states and districts.
func (c *Catalogue) Len() (states, districts int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states), len(c.districts)
}

// Orphans returns districts whose parent state is not loaded.
func (c *Catalogue) Orphans() []*feature.Feature {
	c.mu.RLock()
	var out []*feature.Feature
	for _, f := range c.districts {
		if _, ok := c.states[f.ParentID]; !ok {
			out = append(out, f)
		}
	}
	c.mu.RUnlock()
	sortByName(out)
	return out
}

func sortByName(fs []*feature.Feature) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].DisplayName() != fs[j].DisplayName() {
			return fs[i].DisplayName() < fs[j].DisplayName()
		}
		return fs[i].ID < fs[j].ID
	})
}
