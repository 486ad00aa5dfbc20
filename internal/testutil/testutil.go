// Package testutil provides shared test helpers for building registries,
// artifact pair fixtures, and quiet loggers.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
)

// Logger returns a slog.Logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestRegistry creates an in-memory registry without a discovery log.
func TestRegistry(t *testing.T, resources ...models.Resource) *registry.Registry {
	t.Helper()
	reg := registry.New(nil)
	for _, res := range resources {
		if err := reg.Upsert(res); err != nil {
			t.Fatalf("testutil: upsert %s: %v", res.ID, err)
		}
	}
	return reg
}

// LocalResource returns a resource whose pair lives in dir.
func LocalResource(id, dir string) models.Resource {
	return models.Resource{
		ID:       id,
		Name:     id,
		Category: "internal",
		Location: models.Location{Kind: models.LocationLocal, Path: dir},
	}
}

// RemoteResource returns a resource hosted at org/repo on the docs branch.
func RemoteResource(id, org, repo string) models.Resource {
	return models.Resource{
		ID:       id,
		Name:     id,
		Category: "evm",
		Location: models.Location{Kind: models.LocationRemote, Org: org, Repo: repo, Branch: "docs"},
	}
}

// ManifestJSON builds a minimal manifest document with the given model
// names, all in the given schema.
func ManifestJSON(project, schema string, names ...string) string {
	nodes := ""
	for i, name := range names {
		if i > 0 {
			nodes += ","
		}
		nodes += fmt.Sprintf(`"model.%[1]s.%[2]s": {
			"name": %[2]q,
			"resource_type": "model",
			"package_name": %[1]q,
			"database": %[1]q,
			"schema": %[3]q,
			"relation_name": "%[1]s.%[3]s.%[2]s",
			"fqn": [%[1]q, %[3]q, %[2]q]
		}`, project, name, schema)
	}
	return `{"nodes": {` + nodes + `}, "docs": {}, "parent_map": {}, "child_map": {}}`
}

// CatalogJSON builds an empty catalog document.
func CatalogJSON() string {
	return `{"nodes": {}, "sources": {}}`
}

// WritePair writes a manifest/catalog pair into dir.
func WritePair(t *testing.T, dir, manifest, catalog string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(catalog), 0o644); err != nil {
		t.Fatal(err)
	}
}
