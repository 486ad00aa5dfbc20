// Package artifact parses dbt manifest/catalog document pairs and builds
// the per-resource in-memory index queried by the engine.
package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/starford/raido/internal/apperr"
)

// Manifest is the dependency/metadata document of an artifact pair.
// Only the regions the engine consumes are decoded; unknown fields are
// ignored so that dbt schema-version drift does not break parsing.
type Manifest struct {
	Nodes     map[string]*ManifestNode
	Docs      map[string]*DocBlock
	ParentMap map[string][]string
	ChildMap  map[string][]string

	// SkippedNodes counts entries whose individual decode failed and
	// were degraded to omission rather than failing the document.
	SkippedNodes int
}

// ManifestNode is one entry of the manifest "nodes" mapping.
type ManifestNode struct {
	UniqueID     string                    `json:"unique_id"`
	Name         string                    `json:"name"`
	ResourceType string                    `json:"resource_type"`
	PackageName  string                    `json:"package_name"`
	Database     string                    `json:"database"`
	Schema       string                    `json:"schema"`
	Description  string                    `json:"description"`
	RelationName string                    `json:"relation_name"`
	Path         string                    `json:"original_file_path"`
	FQN          []string                  `json:"fqn"`
	Tags         []string                  `json:"tags"`
	Meta         map[string]any            `json:"meta"`
	Config       NodeConfig                `json:"config"`
	Columns      map[string]ManifestColumn `json:"columns"`
	DependsOn    DependsOn                 `json:"depends_on"`
	Sources      [][]string                `json:"sources"`
	RawCode      string                    `json:"raw_code"`
	CompiledCode string                    `json:"compiled_code"`
}

// NodeConfig carries the subset of dbt node config the engine reports.
type NodeConfig struct {
	Materialized string `json:"materialized"`
}

// DependsOn is the first-order dependency set of a node.
type DependsOn struct {
	Nodes  []string `json:"nodes"`
	Macros []string `json:"macros"`
}

// ManifestColumn is a documented column from the manifest side.
type ManifestColumn struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	DataType    string         `json:"data_type"`
	Meta        map[string]any `json:"meta"`
	Tags        []string       `json:"tags"`
}

// DocBlock is one named free-text documentation block. ResourceID is
// attached when the owning index is built; blocks are never merged across
// resources.
type DocBlock struct {
	UniqueID    string `json:"unique_id"`
	Name        string `json:"name"`
	PackageName string `json:"package_name"`
	Path        string `json:"original_file_path"`
	Content     string `json:"block_contents"`
	ResourceID  string `json:"resource_id,omitempty"`
}

// ParseManifest decodes a manifest document. A node or doc entry that fails
// to decode on its own is skipped (degraded to omission); only an
// unparseable top-level structure is fatal.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw struct {
		Nodes     map[string]json.RawMessage `json:"nodes"`
		Docs      map[string]json.RawMessage `json:"docs"`
		ParentMap map[string][]string        `json:"parent_map"`
		ChildMap  map[string][]string        `json:"child_map"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", apperr.ErrParse, err)
	}

	m := &Manifest{
		Nodes:     make(map[string]*ManifestNode, len(raw.Nodes)),
		Docs:      make(map[string]*DocBlock, len(raw.Docs)),
		ParentMap: raw.ParentMap,
		ChildMap:  raw.ChildMap,
	}

	for id, msg := range raw.Nodes {
		var n ManifestNode
		if err := json.Unmarshal(msg, &n); err != nil {
			m.SkippedNodes++
			continue
		}
		if n.UniqueID == "" {
			n.UniqueID = id
		}
		if n.Name == "" {
			// A node without a name cannot be resolved by any key.
			m.SkippedNodes++
			continue
		}
		m.Nodes[id] = &n
	}

	for id, msg := range raw.Docs {
		var d DocBlock
		if err := json.Unmarshal(msg, &d); err != nil {
			continue
		}
		if d.UniqueID == "" {
			d.UniqueID = id
		}
		if d.Name == "" {
			continue
		}
		m.Docs[id] = &d
	}

	return m, nil
}
