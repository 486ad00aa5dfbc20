// Package registry tracks the known dbt project resources: their identity,
// where their artifact pair lives, and the current cache status. Entries come
// from a YAML seed file, the SQLite discovery log, and organization scans.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/pkg/config"
)

// Registry is the in-memory resource registry. All methods are safe for
// concurrent use. When a Store is attached, mutations are written through to
// the discovery log.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*models.Resource
	store     *Store
}

// New creates an empty registry. store may be nil (no persistence).
func New(store *Store) *Registry {
	return &Registry{
		resources: make(map[string]*models.Resource),
		store:     store,
	}
}

type seedFile struct {
	Resources []models.Resource `yaml:"resources"`
}

// LoadStore merges every persisted resource from the discovery log. Call it
// before LoadSeed so seed identity fields win on conflict.
func (r *Registry) LoadStore() error {
	if r.store == nil {
		return nil
	}
	persisted, err := r.store.LoadAll()
	if err != nil {
		return err
	}
	for _, res := range persisted {
		if err := r.Upsert(res); err != nil {
			return err
		}
	}
	return nil
}

// LoadSeed reads statically configured resources from a YAML file and merges
// them in. Seed entries overwrite identity fields of persisted entries with
// the same id but keep their cache status.
func (r *Registry) LoadSeed(path string) error {
	var seed seedFile
	if err := config.Load(path, &seed); err != nil {
		return fmt.Errorf("registry: load seed: %w", err)
	}
	for _, res := range seed.Resources {
		if res.ID == "" {
			return fmt.Errorf("registry: seed resource without id")
		}
		if err := res.Location.Validate(); err != nil {
			return fmt.Errorf("registry: seed resource %s: %w", res.ID, err)
		}
		if err := r.Upsert(res); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts or updates a resource. Identity fields always come from the
// incoming value; cache status and refresh time are preserved from the
// existing entry when the incoming value leaves them unset. Re-discovering a
// resource must not reset its lifecycle.
func (r *Registry) Upsert(res models.Resource) error {
	r.mu.Lock()
	if res.Status == "" {
		res.Status = models.StatusDiscovered
	}
	if existing, ok := r.resources[res.ID]; ok {
		res.Status = existing.Status
		if res.LastRefreshedAt == nil {
			res.LastRefreshedAt = existing.LastRefreshedAt
		}
	}
	stored := res
	r.resources[res.ID] = &stored
	r.mu.Unlock()

	if r.store != nil {
		return r.store.Upsert(res)
	}
	return nil
}

// Get returns a copy of the resource with the given id.
func (r *Registry) Get(id string) (models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[id]
	if !ok {
		return models.Resource{}, fmt.Errorf("%w: resource %q", apperr.ErrNotFound, id)
	}
	return *res, nil
}

// Resolve finds a resource by id or alias, case-insensitively.
func (r *Registry) Resolve(name string) (models.Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if res, ok := r.resources[name]; ok {
		return *res, true
	}
	for _, res := range r.resources {
		if res.HasAlias(name) {
			return *res, true
		}
	}
	return models.Resource{}, false
}

// List returns copies of all resources ordered by id.
func (r *Registry) List() []models.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Resource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns all resource ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.resources))
	for id := range r.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}

// Local returns the resources whose artifacts live on the local filesystem.
func (r *Registry) Local() []models.Resource {
	var out []models.Resource
	for _, res := range r.List() {
		if res.Location.Kind == models.LocationLocal {
			out = append(out, res)
		}
	}
	return out
}

// SetStatus records a cache status transition, written through to the
// discovery log when one is attached.
func (r *Registry) SetStatus(id string, status models.CacheStatus) error {
	r.mu.Lock()
	res, ok := r.resources[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: resource %q", apperr.ErrNotFound, id)
	}
	res.Status = status
	r.mu.Unlock()

	if r.store != nil {
		return r.store.UpdateStatus(id, status, nil)
	}
	return nil
}

// SetRefreshed marks a resource fresh as of t.
func (r *Registry) SetRefreshed(id string, t time.Time) error {
	r.mu.Lock()
	res, ok := r.resources[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: resource %q", apperr.ErrNotFound, id)
	}
	res.Status = models.StatusFresh
	res.LastRefreshedAt = &t
	r.mu.Unlock()

	if r.store != nil {
		return r.store.UpdateStatus(id, models.StatusFresh, &t)
	}
	return nil
}

// Filter returns the resources whose id, name, or alias contains term,
// case-insensitively. partial is true when several resources matched but
// none matched exactly, which callers surface as a disambiguation prompt.
func (r *Registry) Filter(term string) (matches []models.Resource, partial bool) {
	lower := strings.ToLower(term)
	exact := false
	for _, res := range r.List() {
		hit, ex := matchResource(res, lower)
		if !hit {
			continue
		}
		matches = append(matches, res)
		if ex {
			exact = true
		}
	}
	return matches, len(matches) > 1 && !exact
}

// Suggest ranks resource ids against a filter term: an exact id or alias
// match outranks a prefix match, which outranks an interior match. Ties
// break alphabetically.
func (r *Registry) Suggest(term string) []string {
	lower := strings.ToLower(term)
	type ranked struct {
		id    string
		score int
	}
	var hits []ranked
	for _, res := range r.List() {
		score := suggestScore(res, lower)
		if score > 0 {
			hits = append(hits, ranked{res.ID, score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

func matchResource(res models.Resource, lower string) (hit, exact bool) {
	for _, cand := range candidateNames(res) {
		if cand == lower {
			return true, true
		}
		if strings.Contains(cand, lower) {
			hit = true
		}
	}
	return hit, false
}

func suggestScore(res models.Resource, lower string) int {
	best := 0
	for _, cand := range candidateNames(res) {
		switch {
		case cand == lower:
			return 3
		case strings.HasPrefix(cand, lower):
			if best < 2 {
				best = 2
			}
		case strings.Contains(cand, lower):
			if best < 1 {
				best = 1
			}
		}
	}
	return best
}

func candidateNames(res models.Resource) []string {
	out := make([]string, 0, 2+len(res.Aliases))
	out = append(out, strings.ToLower(res.ID), strings.ToLower(res.Name))
	for _, a := range res.Aliases {
		out = append(out, strings.ToLower(a))
	}
	return out
}
