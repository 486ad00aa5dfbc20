package query

import (
	"github.com/starford/raido/internal/models"
)

// ResourceSummary is one registry entry in a resources listing.
type ResourceSummary struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Description     string   `json:"description,omitempty"`
	Aliases         []string `json:"aliases,omitempty"`
	Schemas         []string `json:"schemas,omitempty"`
	CacheStatus     string   `json:"cache_status,omitempty"`
	LastRefreshedAt string   `json:"last_refreshed_at,omitempty"`
}

// ResourcesResult is the response of ListResources.
type ResourcesResult struct {
	Resources     []ResourceSummary `json:"data"`
	TotalCount    int               `json:"total_count"`
	FilteredCount int               `json:"filtered_count"`

	// Suggestions is set when the filter matched several resources but
	// none exactly, ranked best-first.
	Suggestions []string `json:"suggestions,omitempty"`
}

// ModelSummary is one model row in a models listing. Detail fields are
// populated only when show_details is requested.
type ModelSummary struct {
	Name         string `json:"name"`
	Database     string `json:"database"`
	Schema       string `json:"schema"`
	Description  string `json:"description,omitempty"`
	RelationName string `json:"relation_name"`
	ResourceID   string `json:"resource_id"`

	UniqueID     string   `json:"unique_id,omitempty"`
	Materialized string   `json:"materialized,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Path         string   `json:"path,omitempty"`
	FQN          []string `json:"fqn,omitempty"`
}

// ModelsResult is the response of ListModels. Grouped arranges the same
// rows as resource → schema → model names for compact rendering.
type ModelsResult struct {
	Models          []ModelSummary                 `json:"data"`
	Grouped         map[string]map[string][]string `json:"grouped,omitempty"`
	Count           int                            `json:"count"`
	Truncated       bool                           `json:"truncated"`
	FailedResources []string                       `json:"failed_resources,omitempty"`
}

// ColumnDetail merges the documentation side of a column with the
// warehouse side, when the catalog has it.
type ColumnDetail struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	DataType    string         `json:"data_type,omitempty"`
	Type        string         `json:"type,omitempty"`
	Index       int            `json:"index,omitempty"`
	Comment     string         `json:"comment,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// ModelDetails is the full view of one model.
type ModelDetails struct {
	Name         string                  `json:"name"`
	UniqueID     string                  `json:"unique_id"`
	ResourceID   string                  `json:"resource_id"`
	Database     string                  `json:"database"`
	Schema       string                  `json:"schema"`
	Description  string                  `json:"description,omitempty"`
	RelationName string                  `json:"relation_name"`
	Columns      map[string]ColumnDetail `json:"columns,omitempty"`

	Materialized string                         `json:"materialized,omitempty"`
	Tags         []string                       `json:"tags,omitempty"`
	Meta         map[string]any                 `json:"meta,omitempty"`
	Path         string                         `json:"path,omitempty"`
	FQN          []string                       `json:"fqn,omitempty"`
	RawCode      string                         `json:"raw_code,omitempty"`
	CompiledCode string                         `json:"compiled_code,omitempty"`
	DependsOn    []string                       `json:"depends_on,omitempty"`
	Parents      []string                       `json:"parents,omitempty"`
	Children     []string                       `json:"children,omitempty"`
	Metadata     *artifactMetadata              `json:"catalog_metadata,omitempty"`
	Stats        map[string]artifactCatalogStat `json:"stats,omitempty"`
}

type artifactMetadata struct {
	Type     string `json:"type,omitempty"`
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Name     string `json:"name,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type artifactCatalogStat struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// ModelMatch identifies one candidate when a lookup is ambiguous.
type ModelMatch struct {
	UniqueID   string `json:"unique_id"`
	ResourceID string `json:"resource_id"`
	Database   string `json:"database"`
	Schema     string `json:"schema"`
}

// ModelResult is the response of GetModel. Exactly one of Model or Matches
// is set; Matches accompanies an ErrAmbiguous.
type ModelResult struct {
	Model   *ModelDetails `json:"data,omitempty"`
	Matches []ModelMatch  `json:"multiple_matches,omitempty"`
}

// DocResult is one documentation block hit.
type DocResult struct {
	ResourceID  string `json:"resource_id"`
	DocID       string `json:"doc_id"`
	Name        string `json:"name"`
	PackageName string `json:"package_name,omitempty"`
	Path        string `json:"path,omitempty"`
	Content     string `json:"content"`
}

// DescriptionsResult is the response of GetDescription, grouped per
// resource. Missing lists the requested resources without the block.
type DescriptionsResult struct {
	Docs    []DocResult `json:"data"`
	Count   int         `json:"count"`
	Missing []string    `json:"missing,omitempty"`
}

// RefreshResult is the response of the composite Refresh operation.
type RefreshResult struct {
	Success          bool                             `json:"success"`
	Data             map[string]bool                  `json:"data"`
	Message          string                           `json:"message"`
	Outcomes         map[string]models.RefreshOutcome `json:"outcomes,omitempty"`
	DiscoverySummary *models.DiscoverySummary         `json:"discovery_summary,omitempty"`
}
