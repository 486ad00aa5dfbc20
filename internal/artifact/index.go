package artifact

import (
	"sort"
	"strings"
)

// Node is the merged view of one model: the manifest side always present,
// the catalog side nil when the warehouse has no matching object.
type Node struct {
	ResourceID string
	Manifest   *ManifestNode
	Catalog    *CatalogNode
}

// Index holds the lookup structures for one resource's artifact pair. An
// index is immutable after Build; the cache swaps whole indexes on refresh.
type Index struct {
	ResourceID string

	byUniqueID map[string]*Node
	byName     map[string][]*Node
	docsByName map[string][]*DocBlock

	manifest *Manifest
}

// Build constructs the index for a parsed pair. Only manifest nodes of
// resource type "model" are indexed for name lookups; every node remains
// reachable by unique id.
func Build(resourceID string, pair *Pair) *Index {
	idx := &Index{
		ResourceID: resourceID,
		byUniqueID: make(map[string]*Node, len(pair.Manifest.Nodes)),
		byName:     make(map[string][]*Node),
		docsByName: make(map[string][]*DocBlock, len(pair.Manifest.Docs)),
		manifest:   pair.Manifest,
	}

	for id, mn := range pair.Manifest.Nodes {
		n := &Node{ResourceID: resourceID, Manifest: mn}
		if cn, ok := pair.Catalog.Nodes[id]; ok {
			n.Catalog = cn
		} else if cn, ok := pair.Catalog.Sources[id]; ok {
			n.Catalog = cn
		}
		idx.byUniqueID[id] = n
		if mn.ResourceType == "model" {
			key := strings.ToLower(mn.Name)
			idx.byName[key] = append(idx.byName[key], n)
		}
	}
	for _, list := range idx.byName {
		sortNodes(list)
	}

	for _, d := range pair.Manifest.Docs {
		doc := *d
		doc.ResourceID = resourceID
		key := strings.ToLower(d.Name)
		idx.docsByName[key] = append(idx.docsByName[key], &doc)
	}
	for _, list := range idx.docsByName {
		sort.Slice(list, func(i, j int) bool { return list[i].UniqueID < list[j].UniqueID })
	}

	return idx
}

// ByUniqueID resolves a node by its manifest unique id. Only model nodes
// are returned; other resource types are invisible to lookups.
func (idx *Index) ByUniqueID(id string) (*Node, bool) {
	n, ok := idx.byUniqueID[id]
	if !ok || n.Manifest.ResourceType != "model" {
		return nil, false
	}
	return n, true
}

// ByName returns the model nodes with the given name, case-insensitively.
func (idx *Index) ByName(name string) []*Node {
	return idx.byName[strings.ToLower(name)]
}

// ByTableName returns model nodes whose physical table matches name. A node
// matches when its relation name ends in ".name" or its model name is name
// itself or ends in a "_name"/"__name" suffix.
func (idx *Index) ByTableName(name string) []*Node {
	lower := strings.ToLower(name)
	var out []*Node
	for _, n := range idx.byUniqueID {
		mn := n.Manifest
		if mn.ResourceType != "model" {
			continue
		}
		rel := strings.ToLower(mn.RelationName)
		if rel != "" && strings.HasSuffix(rel, "."+lower) {
			out = append(out, n)
			continue
		}
		mname := strings.ToLower(mn.Name)
		if mname == lower || strings.HasSuffix(mname, "__"+lower) || strings.HasSuffix(mname, "_"+lower) {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

// ByFQN resolves a model by its fully qualified relation name in
// database.schema.table form. Quoting and case are ignored.
func (idx *Index) ByFQN(fqn string) (*Node, bool) {
	want := normalizeRelation(fqn)
	if want == "" {
		return nil, false
	}
	for _, n := range idx.byUniqueID {
		if n.Manifest.ResourceType != "model" {
			continue
		}
		if normalizeRelation(n.Manifest.RelationName) == want {
			return n, true
		}
	}
	return nil, false
}

// BySchema returns model nodes whose schema equals schema exactly,
// case-insensitively. Exact comparison avoids partial hits such as "core"
// matching "scores".
func (idx *Index) BySchema(schema string) []*Node {
	var out []*Node
	for _, n := range idx.byUniqueID {
		if n.Manifest.ResourceType != "model" {
			continue
		}
		if strings.EqualFold(n.Manifest.Schema, schema) {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

// ByLevel returns model nodes matching a medallion level.
func (idx *Index) ByLevel(level string) []*Node {
	var out []*Node
	for _, n := range idx.byUniqueID {
		if n.Manifest.ResourceType != "model" {
			continue
		}
		if MatchesLevel(n.Manifest, level) {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

// Models returns every model node sorted by schema then name.
func (idx *Index) Models() []*Node {
	out := make([]*Node, 0, len(idx.byUniqueID))
	for _, n := range idx.byUniqueID {
		if n.Manifest.ResourceType == "model" {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

// Doc returns the documentation blocks with the given name. Several packages
// within one project may define the same doc name, so a name can map to more
// than one block; order is fixed by unique id.
func (idx *Index) Doc(name string) []*DocBlock {
	return idx.docsByName[strings.ToLower(name)]
}

// Docs returns every documentation block sorted by name then unique id.
func (idx *Index) Docs() []*DocBlock {
	var out []*DocBlock
	for _, list := range idx.docsByName {
		out = append(out, list...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UniqueID < out[j].UniqueID
	})
	return out
}

// Parents returns the first-order upstream unique ids of a node.
func (idx *Index) Parents(uniqueID string) []string {
	return idx.manifest.ParentMap[uniqueID]
}

// Children returns the first-order downstream unique ids of a node.
func (idx *Index) Children(uniqueID string) []string {
	return idx.manifest.ChildMap[uniqueID]
}

func sortNodes(list []*Node) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].Manifest, list[j].Manifest
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		return a.Name < b.Name
	})
}

func normalizeRelation(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "`", "")
	return s
}
