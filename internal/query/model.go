package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/artifact"
	"github.com/starford/raido/internal/models"
)

// ModelParams are the inputs of GetModel. Identifiers are tried in order:
// UniqueID, FQN, ModelName, TableName; the first one present decides the
// lookup strategy. ResourceIDs narrows name/table searches.
type ModelParams struct {
	UniqueID    string
	FQN         string
	ModelName   string
	TableName   string
	ResourceIDs any
	ShowDetails bool
}

// GetModel resolves one model. A name or table lookup matching several
// models returns the candidates alongside ErrAmbiguous instead of guessing.
func (e *Engine) GetModel(ctx context.Context, p ModelParams) (ModelResult, error) {
	var result ModelResult

	switch {
	case p.UniqueID != "":
		return e.modelByUniqueID(ctx, p)
	case p.FQN != "":
		return e.modelByFQN(ctx, p)
	case p.ModelName != "":
		return e.modelBySearch(ctx, p, func(idx *artifact.Index) []*artifact.Node {
			return idx.ByName(p.ModelName)
		}, p.ModelName)
	case p.TableName != "":
		return e.modelBySearch(ctx, p, func(idx *artifact.Index) []*artifact.Node {
			return idx.ByTableName(p.TableName)
		}, p.TableName)
	default:
		return result, fmt.Errorf("%w: one of unique_id, fqn, model_name, or table_name is required",
			apperr.ErrInvalidParameter)
	}
}

// modelByUniqueID is the strict path: the project segment of the unique id
// names the resource, no cross-resource fallback.
func (e *Engine) modelByUniqueID(ctx context.Context, p ModelParams) (ModelResult, error) {
	var result ModelResult

	project, ok := uniqueIDProject(p.UniqueID)
	if !ok {
		return result, fmt.Errorf("%w: unique_id must be of the form model.<project>.<name>",
			apperr.ErrInvalidParameter)
	}

	res, ok := e.resolveProject(project)
	if !ok {
		return result, fmt.Errorf("%w: no resource for project %q (from unique_id %q), known: %v",
			apperr.ErrNotFound, project, p.UniqueID, e.reg.IDs())
	}

	idx, err := e.indexFor(ctx, res)
	if err != nil {
		return result, err
	}
	node, ok := idx.ByUniqueID(p.UniqueID)
	if !ok {
		return result, fmt.Errorf("%w: model %q not found in resource %q",
			apperr.ErrNotFound, p.UniqueID, res.ID)
	}
	result.Model = e.formatDetails(idx, node, p.ShowDetails)
	return result, nil
}

func (e *Engine) modelByFQN(ctx context.Context, p ModelParams) (ModelResult, error) {
	var result ModelResult

	if parts := strings.Split(p.FQN, "."); len(parts) != 3 {
		return result, fmt.Errorf("%w: fqn must be of the form database.schema.table",
			apperr.ErrInvalidParameter)
	}

	resources, err := e.resolveTargets(p.ResourceIDs)
	if err != nil {
		return result, err
	}
	for _, res := range resources {
		idx, err := e.indexFor(ctx, res)
		if err != nil {
			continue
		}
		if node, ok := idx.ByFQN(p.FQN); ok {
			result.Model = e.formatDetails(idx, node, p.ShowDetails)
			return result, nil
		}
	}
	return result, fmt.Errorf("%w: model with fqn %q", apperr.ErrNotFound, p.FQN)
}

// modelBySearch runs a per-index lookup across the targeted resources and
// insists on exactly one hit.
func (e *Engine) modelBySearch(ctx context.Context, p ModelParams, lookup func(*artifact.Index) []*artifact.Node, name string) (ModelResult, error) {
	var result ModelResult

	resources, err := e.resolveTargets(p.ResourceIDs)
	if err != nil {
		return result, err
	}

	type hit struct {
		idx  *artifact.Index
		node *artifact.Node
	}
	var hits []hit
	searched := make([]string, 0, len(resources))
	for _, res := range resources {
		searched = append(searched, res.ID)
		idx, err := e.indexFor(ctx, res)
		if err != nil {
			continue
		}
		for _, node := range lookup(idx) {
			hits = append(hits, hit{idx, node})
		}
	}

	switch len(hits) {
	case 0:
		return result, fmt.Errorf("%w: model %q not found in resources %v",
			apperr.ErrNotFound, name, searched)
	case 1:
		result.Model = e.formatDetails(hits[0].idx, hits[0].node, p.ShowDetails)
		return result, nil
	default:
		for _, h := range hits {
			result.Matches = append(result.Matches, ModelMatch{
				UniqueID:   h.node.Manifest.UniqueID,
				ResourceID: h.node.ResourceID,
				Database:   h.node.Manifest.Database,
				Schema:     h.node.Manifest.Schema,
			})
		}
		return result, fmt.Errorf("%w: %d models match %q", apperr.ErrAmbiguous, len(hits), name)
	}
}

// resolveProject maps a manifest project/package name to a resource,
// folding dashes and underscores both ways.
func (e *Engine) resolveProject(project string) (models.Resource, bool) {
	if res, ok := e.reg.Resolve(project); ok {
		return res, true
	}
	if res, ok := e.reg.Resolve(strings.ReplaceAll(project, "_", "-")); ok {
		return res, true
	}
	return e.reg.Resolve(strings.ReplaceAll(project, "-", "_"))
}

func (e *Engine) formatDetails(idx *artifact.Index, n *artifact.Node, showDetails bool) *ModelDetails {
	mn := n.Manifest
	d := &ModelDetails{
		Name:         mn.Name,
		UniqueID:     mn.UniqueID,
		ResourceID:   n.ResourceID,
		Database:     mn.Database,
		Schema:       mn.Schema,
		Description:  mn.Description,
		RelationName: mn.RelationName,
		Columns:      mergeColumns(n),
	}
	if !showDetails {
		return d
	}

	d.Materialized = mn.Config.Materialized
	d.Tags = mn.Tags
	d.Meta = mn.Meta
	d.Path = mn.Path
	d.FQN = mn.FQN
	d.RawCode = mn.RawCode
	d.CompiledCode = mn.CompiledCode
	d.DependsOn = mn.DependsOn.Nodes
	d.Parents = idx.Parents(mn.UniqueID)
	d.Children = idx.Children(mn.UniqueID)

	if n.Catalog != nil {
		d.Metadata = &artifactMetadata{
			Type:     n.Catalog.Metadata.Type,
			Database: n.Catalog.Metadata.Database,
			Schema:   n.Catalog.Metadata.Schema,
			Name:     n.Catalog.Metadata.Name,
			Owner:    n.Catalog.Metadata.Owner,
			Comment:  n.Catalog.Metadata.Comment,
		}
		if len(n.Catalog.Stats) > 0 {
			d.Stats = make(map[string]artifactCatalogStat, len(n.Catalog.Stats))
			for id, st := range n.Catalog.Stats {
				if !st.Include {
					continue
				}
				d.Stats[id] = artifactCatalogStat{Label: st.Label, Value: st.Value}
			}
		}
	}
	return d
}

// mergeColumns overlays warehouse column facts on the documented columns.
// Catalog-only columns still appear so undocumented fields are visible.
func mergeColumns(n *artifact.Node) map[string]ColumnDetail {
	out := make(map[string]ColumnDetail, len(n.Manifest.Columns))
	for name, col := range n.Manifest.Columns {
		out[name] = ColumnDetail{
			Name:        name,
			Description: col.Description,
			DataType:    col.DataType,
			Tags:        col.Tags,
			Meta:        col.Meta,
		}
	}
	if n.Catalog != nil {
		for name, col := range n.Catalog.Columns {
			merged := out[name]
			merged.Name = name
			merged.Type = col.Type
			merged.Index = col.Index
			merged.Comment = col.Comment
			out[name] = merged
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
