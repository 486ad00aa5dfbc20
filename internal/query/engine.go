// Package query implements the multi-project metadata operations on top of
// the registry, cache, and discoverer.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/artifact"
	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
)

// Engine answers discovery queries. Reads never trigger organization scans;
// only Refresh touches the upstream host.
type Engine struct {
	reg    *registry.Registry
	cache  *cache.Cache
	disc   *discovery.Discoverer
	logger *slog.Logger
}

// New creates an engine. disc may be nil when organization discovery is
// disabled (static registry only).
func New(reg *registry.Registry, c *cache.Cache, disc *discovery.Discoverer, logger *slog.Logger) *Engine {
	return &Engine{reg: reg, cache: c, disc: disc, logger: logger}
}

// ListResources returns registry entries, optionally narrowed by a
// name/alias filter and a category. A filter matching several resources but
// none exactly yields ranked suggestions instead of silently picking one.
func (e *Engine) ListResources(filter, category string, showDetails bool) (ResourcesResult, error) {
	all := e.reg.List()
	result := ResourcesResult{TotalCount: len(all)}

	filtered := all
	if filter != "" {
		var partial bool
		filtered, partial = e.reg.Filter(filter)
		if partial {
			result.Suggestions = e.reg.Suggest(filter)
		}
	}
	if category != "" {
		lower := strings.ToLower(category)
		var narrowed []models.Resource
		for _, res := range filtered {
			if strings.Contains(strings.ToLower(res.Category), lower) {
				narrowed = append(narrowed, res)
			}
		}
		filtered = narrowed
	}

	result.FilteredCount = len(filtered)
	result.Resources = make([]ResourceSummary, 0, len(filtered))
	for _, res := range filtered {
		s := ResourceSummary{
			ID:          res.ID,
			Name:        res.Name,
			Category:    res.Category,
			Description: res.Description,
			Aliases:     res.Aliases,
		}
		if showDetails {
			s.Schemas = res.Schemas
			s.CacheStatus = string(res.Status)
			if res.LastRefreshedAt != nil {
				s.LastRefreshedAt = res.LastRefreshedAt.UTC().Format(time.RFC3339)
			}
		}
		result.Resources = append(result.Resources, s)
	}
	return result, nil
}

// ModelsParams are the inputs of ListModels. ResourceIDs takes the raw
// parameter value (string, []string, or nil).
type ModelsParams struct {
	Schema      string
	Level       string
	ResourceIDs any
	Limit       int
	ShowDetails bool
}

// ListModels lists models across one or more resources, filtered by schema
// or medallion level. When neither is given the level defaults to gold.
// Per-resource load failures are reported, not fatal.
func (e *Engine) ListModels(ctx context.Context, p ModelsParams) (ModelsResult, error) {
	var result ModelsResult

	if p.Schema == "" && p.Level == "" {
		p.Level = artifact.LevelGold
	}
	if p.Level != "" && !artifact.ValidLevel(p.Level) {
		return result, fmt.Errorf("%w: invalid level %q, must be one of: bronze, silver, gold",
			apperr.ErrInvalidParameter, p.Level)
	}
	limit := ClampLimit(p.Limit)

	resources, err := e.resolveTargets(p.ResourceIDs)
	if err != nil {
		return result, err
	}

	explicit := p.ResourceIDs != nil
	for _, res := range resources {
		idx, err := e.indexFor(ctx, res)
		if err != nil {
			result.FailedResources = append(result.FailedResources, res.ID)
			if explicit {
				e.logger.Warn("query: load artifacts failed",
					slog.String("resource", res.ID),
					slog.String("error", err.Error()))
			}
			continue
		}

		var nodes []*artifact.Node
		if p.Schema != "" {
			nodes = idx.BySchema(p.Schema)
		} else {
			nodes = idx.ByLevel(p.Level)
		}
		for _, n := range nodes {
			result.Models = append(result.Models, summarize(n, p.ShowDetails))
		}
	}

	if len(result.Models) == 0 && len(result.FailedResources) == len(resources) && len(resources) > 0 {
		return result, fmt.Errorf("%w: no resources loaded successfully: %v",
			apperr.ErrNotCached, result.FailedResources)
	}

	sort.Slice(result.Models, func(i, j int) bool {
		a, b := result.Models[i], result.Models[j]
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		return a.Name < b.Name
	})

	result.Truncated = len(result.Models) > limit
	if result.Truncated {
		result.Models = result.Models[:limit]
	}
	result.Count = len(result.Models)
	result.Grouped = groupModels(result.Models)
	return result, nil
}

// GetDescription returns the documentation blocks with the given name from
// the requested resources. resource_ids is required; resources lacking the
// block are reported in Missing.
func (e *Engine) GetDescription(ctx context.Context, docName string, resourceIDs any) (DescriptionsResult, error) {
	var result DescriptionsResult

	if strings.TrimSpace(docName) == "" {
		return result, fmt.Errorf("%w: doc_name is required", apperr.ErrInvalidParameter)
	}
	ids, err := NormalizeResourceIDs(resourceIDs)
	if err != nil {
		return result, err
	}
	if len(ids) == 0 {
		return result, fmt.Errorf("%w: resource_ids is required", apperr.ErrInvalidParameter)
	}

	resources, err := e.resolveIDs(ids)
	if err != nil {
		return result, err
	}

	for _, res := range resources {
		idx, err := e.indexFor(ctx, res)
		if err != nil {
			result.Missing = append(result.Missing, res.ID)
			continue
		}
		docs := idx.Doc(docName)
		if len(docs) == 0 {
			result.Missing = append(result.Missing, res.ID)
			continue
		}
		// A doc name may be defined by several packages in one project;
		// return every block rather than picking one.
		for _, doc := range docs {
			result.Docs = append(result.Docs, DocResult{
				ResourceID:  res.ID,
				DocID:       doc.UniqueID,
				Name:        doc.Name,
				PackageName: doc.PackageName,
				Path:        doc.Path,
				Content:     doc.Content,
			})
		}
	}

	if len(result.Docs) == 0 {
		return result, fmt.Errorf("%w: documentation block %q not found in %v",
			apperr.ErrNotFound, docName, ids)
	}
	result.Count = len(result.Docs)
	return result, nil
}

// Refresh is the composite operation: an organization scan (when discovery
// is configured) followed by a cache refresh of the targeted resources. A
// rate-limited scan degrades to the last-known registry rather than failing.
func (e *Engine) Refresh(ctx context.Context, resourceIDs any, force bool) (RefreshResult, error) {
	result := RefreshResult{Data: make(map[string]bool)}

	ids, err := NormalizeResourceIDs(resourceIDs)
	if err != nil {
		return result, err
	}

	if e.disc != nil {
		summary, derr := e.disc.Discover(ctx, e.canonicalIDs(ids), force)
		result.DiscoverySummary = &summary
		if derr != nil {
			if summary.RateLimited {
				e.logger.Warn("query: discovery rate limited, serving last-known registry")
			} else {
				e.logger.Warn("query: discovery failed", slog.String("error", derr.Error()))
			}
		}
	}

	var resources []models.Resource
	if len(ids) > 0 {
		resources, err = e.resolveIDs(ids)
		if err != nil {
			return result, err
		}
	} else {
		resources = e.reg.List()
	}
	if len(resources) == 0 {
		result.Message = "no resources to refresh"
		result.Success = true
		return result, nil
	}

	outcomes := e.cache.Refresh(ctx, resources, force)
	result.Outcomes = outcomes

	refreshed, skipped, failed := 0, 0, 0
	for id, out := range outcomes {
		result.Data[id] = out.Success
		switch out.Action {
		case models.RefreshRefreshed:
			refreshed++
		case models.RefreshSkipped:
			skipped++
		default:
			failed++
		}
	}
	result.Success = failed == 0
	result.Message = fmt.Sprintf("%d refreshed, %d skipped, %d failed", refreshed, skipped, failed)
	return result, nil
}

// canonicalIDs maps aliases to registry ids for the discovery filter, which
// matches repository names, not aliases. Names unknown to the registry pass
// through so not-yet-registered repositories can still be discovered.
func (e *Engine) canonicalIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if res, ok := e.reg.Resolve(id); ok {
			out = append(out, res.ID)
			continue
		}
		out = append(out, id)
	}
	return out
}

// resolveTargets maps the raw resource_ids parameter to registry entries;
// absent means every registered resource.
func (e *Engine) resolveTargets(resourceIDs any) ([]models.Resource, error) {
	ids, err := NormalizeResourceIDs(resourceIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return e.reg.List(), nil
	}
	return e.resolveIDs(ids)
}

// resolveIDs maps ids or aliases to resources. An unknown id fails the whole
// request with ranked suggestions in the error.
func (e *Engine) resolveIDs(ids []string) ([]models.Resource, error) {
	out := make([]models.Resource, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		res, ok := e.reg.Resolve(id)
		if !ok {
			if suggestions := e.reg.Suggest(id); len(suggestions) > 0 {
				return nil, fmt.Errorf("%w: resource %q, did you mean one of %v",
					apperr.ErrNotFound, id, suggestions)
			}
			return nil, fmt.Errorf("%w: resource %q", apperr.ErrNotFound, id)
		}
		if !seen[res.ID] {
			seen[res.ID] = true
			out = append(out, res)
		}
	}
	return out, nil
}

// indexFor returns the cached index for a resource, fetching it on demand
// when absent or stale. A failed on-demand refresh still serves a stale
// entry if one exists.
func (e *Engine) indexFor(ctx context.Context, res models.Resource) (*artifact.Index, error) {
	if e.cache.Fresh(res.ID) {
		return e.cache.Get(res.ID)
	}
	outcomes := e.cache.Refresh(ctx, []models.Resource{res}, false)
	if out := outcomes[res.ID]; !out.Success {
		if idx, err := e.cache.Get(res.ID); err == nil {
			e.logger.Warn("query: serving stale artifacts",
				slog.String("resource", res.ID),
				slog.String("error", out.Error))
			return idx, nil
		}
		return nil, fmt.Errorf("%w: resource %q: %s", apperr.ErrNotCached, res.ID, out.Error)
	}
	return e.cache.Get(res.ID)
}

func summarize(n *artifact.Node, showDetails bool) ModelSummary {
	mn := n.Manifest
	s := ModelSummary{
		Name:         mn.Name,
		Database:     mn.Database,
		Schema:       mn.Schema,
		Description:  mn.Description,
		RelationName: mn.RelationName,
		ResourceID:   n.ResourceID,
	}
	if showDetails {
		s.UniqueID = mn.UniqueID
		s.Materialized = mn.Config.Materialized
		s.Tags = mn.Tags
		s.Path = mn.Path
		s.FQN = mn.FQN
	}
	return s
}

func groupModels(rows []ModelSummary) map[string]map[string][]string {
	if len(rows) == 0 {
		return nil
	}
	grouped := make(map[string]map[string][]string)
	for _, m := range rows {
		bySchema, ok := grouped[m.ResourceID]
		if !ok {
			bySchema = make(map[string][]string)
			grouped[m.ResourceID] = bySchema
		}
		bySchema[m.Schema] = append(bySchema[m.Schema], m.Name)
	}
	return grouped
}
