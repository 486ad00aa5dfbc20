package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/starford/raido/internal/apperr"
)

// Catalog is the physical-metadata document of an artifact pair.
type Catalog struct {
	Nodes   map[string]*CatalogNode
	Sources map[string]*CatalogNode

	SkippedNodes int
}

// CatalogNode is one entry of the catalog "nodes"/"sources" mappings.
type CatalogNode struct {
	Metadata CatalogMetadata          `json:"metadata"`
	Columns  map[string]CatalogColumn `json:"columns"`
	Stats    map[string]CatalogStat   `json:"stats"`
}

// CatalogMetadata describes the physical database object.
type CatalogMetadata struct {
	Type     string `json:"type"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	Comment  string `json:"comment"`
}

// CatalogColumn is the warehouse-side view of a column.
type CatalogColumn struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Comment string `json:"comment"`
}

// CatalogStat is one statistic reported for a physical object.
type CatalogStat struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Value       any    `json:"value"`
	Include     bool   `json:"include"`
	Description string `json:"description"`
}

// ParseCatalog decodes a catalog document with the same tolerance policy as
// ParseManifest: bad individual entries are skipped, a bad top level is fatal.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw struct {
		Nodes   map[string]json.RawMessage `json:"nodes"`
		Sources map[string]json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: catalog: %v", apperr.ErrParse, err)
	}

	c := &Catalog{
		Nodes:   make(map[string]*CatalogNode, len(raw.Nodes)),
		Sources: make(map[string]*CatalogNode, len(raw.Sources)),
	}
	for id, msg := range raw.Nodes {
		var n CatalogNode
		if err := json.Unmarshal(msg, &n); err != nil {
			c.SkippedNodes++
			continue
		}
		c.Nodes[id] = &n
	}
	for id, msg := range raw.Sources {
		var n CatalogNode
		if err := json.Unmarshal(msg, &n); err != nil {
			c.SkippedNodes++
			continue
		}
		c.Sources[id] = &n
	}
	return c, nil
}

// Pair bundles the two parsed documents of one resource at one point in
// time. A pair is replaced wholesale on refresh, never mutated in place.
type Pair struct {
	Manifest *Manifest
	Catalog  *Catalog
}

// ParsePair parses both raw documents.
func ParsePair(manifestData, catalogData []byte) (*Pair, error) {
	m, err := ParseManifest(manifestData)
	if err != nil {
		return nil, err
	}
	c, err := ParseCatalog(catalogData)
	if err != nil {
		return nil, err
	}
	return &Pair{Manifest: m, Catalog: c}, nil
}
