package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/testutil"
)

const ethereumManifest = `{
  "nodes": {
    "model.ethereum_models.core__fact_blocks": {
      "name": "core__fact_blocks",
      "resource_type": "model",
      "package_name": "ethereum_models",
      "database": "ethereum",
      "schema": "core",
      "description": "One row per block.",
      "relation_name": "ethereum.core.fact_blocks",
      "fqn": ["ethereum_models", "gold", "core", "core__fact_blocks"],
      "config": {"materialized": "incremental"},
      "columns": {
        "block_number": {"name": "block_number", "description": "Height.", "data_type": "number"}
      }
    },
    "model.ethereum_models.silver__traces": {
      "name": "silver__traces",
      "resource_type": "model",
      "package_name": "ethereum_models",
      "database": "ethereum",
      "schema": "silver",
      "relation_name": "ethereum.silver.traces",
      "fqn": ["ethereum_models", "silver", "silver__traces"]
    },
    "model.ethereum_models.core__dim_labels": {
      "name": "core__dim_labels",
      "resource_type": "model",
      "package_name": "ethereum_models",
      "database": "ethereum",
      "schema": "core",
      "relation_name": "ethereum.core.dim_labels",
      "fqn": ["ethereum_models", "gold", "core", "core__dim_labels"]
    }
  },
  "docs": {
    "doc.ethereum_models.overview": {
      "name": "overview",
      "package_name": "ethereum_models",
      "block_contents": "Ethereum models overview."
    },
    "doc.fsc_utils.overview": {
      "name": "overview",
      "package_name": "fsc_utils",
      "block_contents": "Shared utility macros."
    }
  },
  "parent_map": {},
  "child_map": {}
}`

const bitcoinManifest = `{
  "nodes": {
    "model.bitcoin_models.core__fact_blocks": {
      "name": "core__fact_blocks",
      "resource_type": "model",
      "package_name": "bitcoin_models",
      "database": "bitcoin",
      "schema": "core",
      "relation_name": "bitcoin.core.fact_blocks",
      "fqn": ["bitcoin_models", "gold", "core", "core__fact_blocks"]
    }
  },
  "docs": {},
  "parent_map": {},
  "child_map": {}
}`

const ethereumCatalog = `{
  "nodes": {
    "model.ethereum_models.core__fact_blocks": {
      "metadata": {"type": "BASE TABLE", "database": "ETHEREUM", "schema": "CORE", "name": "FACT_BLOCKS"},
      "columns": {
        "block_number": {"name": "block_number", "type": "NUMBER", "index": 1},
        "hash": {"name": "hash", "type": "VARCHAR", "index": 2}
      },
      "stats": {
        "row_count": {"id": "row_count", "label": "Row Count", "value": 900, "include": true},
        "noise": {"id": "noise", "label": "Noise", "value": 1, "include": false}
      }
    }
  },
  "sources": {}
}`

// testEngine builds an engine over two local resources with pre-fetched
// artifacts and no organization discovery.
func testEngine(t *testing.T) (*Engine, *registry.Registry, *cache.Cache) {
	t.Helper()

	ethDir := t.TempDir()
	testutil.WritePair(t, ethDir, ethereumManifest, ethereumCatalog)
	btcDir := t.TempDir()
	testutil.WritePair(t, btcDir, bitcoinManifest, testutil.CatalogJSON())

	eth := testutil.LocalResource("ethereum-models", ethDir)
	eth.Aliases = []string{"ethereum", "eth"}
	btc := testutil.LocalResource("bitcoin-models", btcDir)
	btc.Aliases = []string{"bitcoin", "btc"}

	reg := testutil.TestRegistry(t, eth, btc)
	c := cache.New(reg, cache.NewHTTPFetcher("http://unused", "docs", "", 50<<20), testutil.Logger(), cache.Options{
		Dir:                  t.TempDir(),
		TTL:                  time.Hour,
		FetchTimeout:         5 * time.Second,
		MaxConcurrentFetches: 2,
	})
	return New(reg, c, nil, testutil.Logger()), reg, c
}

func TestListResources(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.ListResources("", "", false)
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if result.TotalCount != 2 || result.FilteredCount != 2 {
		t.Errorf("counts = %d/%d, want 2/2", result.TotalCount, result.FilteredCount)
	}
	// Ordered by id.
	if result.Resources[0].ID != "bitcoin-models" {
		t.Errorf("first resource = %s", result.Resources[0].ID)
	}
}

func TestListResourcesFilterAndSuggestions(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.ListResources("eth", "", false)
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if result.FilteredCount != 1 || result.Resources[0].ID != "ethereum-models" {
		t.Fatalf("filtered = %+v", result.Resources)
	}
	// "eth" matches the alias exactly, so no disambiguation needed.
	if result.Suggestions != nil {
		t.Errorf("suggestions = %v, want none", result.Suggestions)
	}

	result, err = e.ListResources("models", "", false)
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(result.Suggestions) == 0 {
		t.Error("partial multi-match returned no suggestions")
	}
}

func TestListResourcesShowDetails(t *testing.T) {
	e, reg, c := testEngine(t)
	res, _ := reg.Get("ethereum-models")
	c.Refresh(context.Background(), []models.Resource{res}, false)

	result, err := e.ListResources("ethereum-models", "", true)
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if result.Resources[0].CacheStatus != string(models.StatusFresh) {
		t.Errorf("cache status = %q, want FRESH", result.Resources[0].CacheStatus)
	}
	if result.Resources[0].LastRefreshedAt == "" {
		t.Error("last refreshed missing with show_details")
	}
}

func TestListModelsDefaultsToGold(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.ListModels(context.Background(), ModelsParams{})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	// Gold models from both resources; silver__traces excluded.
	if result.Count != 3 {
		t.Fatalf("Count = %d, want 3: %+v", result.Count, result.Models)
	}
	for _, m := range result.Models {
		if m.Schema == "silver" {
			t.Errorf("silver model %s in gold listing", m.Name)
		}
	}
	// Sorted by resource, then schema, then name.
	if result.Models[0].ResourceID != "bitcoin-models" {
		t.Errorf("first model from %s, want bitcoin-models", result.Models[0].ResourceID)
	}
}

func TestListModelsBySchema(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.ListModels(context.Background(), ModelsParams{
		Schema:      "silver",
		ResourceIDs: "eth",
	})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if result.Count != 1 || result.Models[0].Name != "silver__traces" {
		t.Errorf("models = %+v", result.Models)
	}
}

func TestListModelsInvalidLevel(t *testing.T) {
	e, _, _ := testEngine(t)

	_, err := e.ListModels(context.Background(), ModelsParams{Level: "platinum"})
	if !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("error = %v, want ErrInvalidParameter", err)
	}
}

func TestListModelsUnknownResource(t *testing.T) {
	e, _, _ := testEngine(t)

	_, err := e.ListModels(context.Background(), ModelsParams{ResourceIDs: "dogecoin"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListModelsTruncation(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.ListModels(context.Background(), ModelsParams{Limit: 1})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if result.Count != 1 || !result.Truncated {
		t.Errorf("Count = %d, Truncated = %v; want 1, true", result.Count, result.Truncated)
	}
}

func TestListModelsGrouping(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.ListModels(context.Background(), ModelsParams{ResourceIDs: "ethereum-models"})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	core := result.Grouped["ethereum-models"]["core"]
	if len(core) != 2 {
		t.Errorf("grouped core models = %v, want 2", core)
	}
}

func TestListModelsFailedResources(t *testing.T) {
	e, reg, _ := testEngine(t)

	// A resource whose pair does not exist on disk.
	if err := reg.Upsert(testutil.LocalResource("broken-models", t.TempDir())); err != nil {
		t.Fatal(err)
	}

	result, err := e.ListModels(context.Background(), ModelsParams{})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(result.FailedResources) != 1 || result.FailedResources[0] != "broken-models" {
		t.Errorf("FailedResources = %v", result.FailedResources)
	}
	if result.Count == 0 {
		t.Error("healthy resources suppressed by sibling failure")
	}
}

func TestGetDescription(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.GetDescription(context.Background(), "overview", []string{"ethereum-models", "bitcoin-models"})
	if err != nil {
		t.Fatalf("GetDescription() error = %v", err)
	}
	// Two packages define "overview" in the ethereum project; both blocks
	// come back, ordered by doc id.
	if result.Count != 2 {
		t.Fatalf("Count = %d, want 2: %+v", result.Count, result.Docs)
	}
	for _, doc := range result.Docs {
		if doc.ResourceID != "ethereum-models" {
			t.Errorf("doc %s resource = %q", doc.DocID, doc.ResourceID)
		}
	}
	if result.Docs[0].Content != "Ethereum models overview." {
		t.Errorf("content = %q", result.Docs[0].Content)
	}
	if result.Docs[1].PackageName != "fsc_utils" {
		t.Errorf("second block = %+v", result.Docs[1])
	}
	// bitcoin-models lacks the block and is reported, not fatal.
	if len(result.Missing) != 1 || result.Missing[0] != "bitcoin-models" {
		t.Errorf("missing = %v", result.Missing)
	}
}

func TestGetDescriptionRequiresResourceIDs(t *testing.T) {
	e, _, _ := testEngine(t)

	_, err := e.GetDescription(context.Background(), "overview", nil)
	if !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("error = %v, want ErrInvalidParameter", err)
	}
}

func TestGetDescriptionNotFound(t *testing.T) {
	e, _, _ := testEngine(t)

	_, err := e.GetDescription(context.Background(), "nonexistent", "ethereum-models")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRefreshAllResources(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.Refresh(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
	if len(result.Data) != 2 || !result.Data["ethereum-models"] || !result.Data["bitcoin-models"] {
		t.Errorf("Data = %v", result.Data)
	}
	if result.Outcomes["ethereum-models"].Action != models.RefreshRefreshed {
		t.Errorf("outcome = %+v", result.Outcomes["ethereum-models"])
	}
}

func TestRefreshSpecificAndInvalid(t *testing.T) {
	e, _, _ := testEngine(t)

	result, err := e.Refresh(context.Background(), "eth", false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(result.Data) != 1 {
		t.Errorf("Data = %v, want only ethereum-models", result.Data)
	}

	if _, err := e.Refresh(context.Background(), true, false); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("error = %v, want ErrInvalidParameter", err)
	}
	if _, err := e.Refresh(context.Background(), "dogecoin", false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRefreshResolvesAliasForDiscovery(t *testing.T) {
	_, reg, c := testEngine(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/starford/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `[{"name": "ethereum-models", "full_name": "starford/ethereum-models"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/starford/ethereum-models/branches/docs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	gh := httptest.NewServer(mux)
	t.Cleanup(gh.Close)

	disc := discovery.New(reg, testutil.Logger(), discovery.Options{
		Org:            "starford",
		RepoSuffix:     "-models",
		ArtifactBranch: "docs",
		APIBaseURL:     gh.URL,
	})
	e := New(reg, c, disc, testutil.Logger())

	// "eth" is an alias; the discovery filter matches repository names, so
	// the alias must be resolved to ethereum-models before the scan.
	result, err := e.Refresh(context.Background(), "eth", false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	s := result.DiscoverySummary
	if s == nil {
		t.Fatal("discovery summary missing")
	}
	if s.TotalDiscovered != 1 || s.WithArtifacts != 1 {
		t.Errorf("summary = %+v, want 1 candidate with artifacts", s)
	}
}

func TestRefreshReportsFailures(t *testing.T) {
	e, reg, _ := testEngine(t)
	if err := reg.Upsert(testutil.LocalResource("broken-models", t.TempDir())); err != nil {
		t.Fatal(err)
	}

	result, err := e.Refresh(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true despite failed resource")
	}
	if result.Data["broken-models"] {
		t.Error("failed resource reported as success")
	}
	if out := result.Outcomes["broken-models"]; out.Action != models.RefreshFailed || out.Error == "" {
		t.Errorf("outcome = %+v", out)
	}
	if fmt.Sprint(result.Message) == "" {
		t.Error("empty message")
	}
}
