package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/testutil"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Dir:                  t.TempDir(),
		TTL:                  time.Hour,
		FetchTimeout:         5 * time.Second,
		MaxConcurrentFetches: 2,
	}
}

func localSetup(t *testing.T, id string) (*Cache, *registry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WritePair(t, dir,
		testutil.ManifestJSON(id, "core", "core__fact_blocks"),
		testutil.CatalogJSON())

	reg := testutil.TestRegistry(t, testutil.LocalResource(id, dir))
	fetcher := NewHTTPFetcher("http://unused", "docs", "", 50<<20)
	c := New(reg, fetcher, testutil.Logger(), testOptions(t))
	return c, reg, dir
}

func TestGetNotCached(t *testing.T) {
	c, _, _ := localSetup(t, "osiris")
	if _, err := c.Get("osiris"); !errors.Is(err, apperr.ErrNotCached) {
		t.Errorf("error = %v, want ErrNotCached", err)
	}
}

func TestRefreshAndGet(t *testing.T) {
	c, reg, _ := localSetup(t, "osiris")

	res, _ := reg.Get("osiris")
	outcomes := c.Refresh(context.Background(), []models.Resource{res}, false)

	out := outcomes["osiris"]
	if !out.Success || out.Action != models.RefreshRefreshed {
		t.Fatalf("outcome = %+v", out)
	}

	idx, err := c.Get("osiris")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(idx.Models()) != 1 {
		t.Errorf("indexed %d models, want 1", len(idx.Models()))
	}

	res, _ = reg.Get("osiris")
	if res.Status != models.StatusFresh {
		t.Errorf("registry status = %s, want FRESH", res.Status)
	}
	if res.LastRefreshedAt == nil {
		t.Error("registry last refreshed not set")
	}
}

func TestRefreshSkipsFreshEntries(t *testing.T) {
	c, reg, _ := localSetup(t, "osiris")
	res, _ := reg.Get("osiris")

	c.Refresh(context.Background(), []models.Resource{res}, false)
	outcomes := c.Refresh(context.Background(), []models.Resource{res}, false)
	if out := outcomes["osiris"]; out.Action != models.RefreshSkipped || !out.Success {
		t.Errorf("outcome = %+v, want skipped", out)
	}

	// force refetches even when fresh.
	outcomes = c.Refresh(context.Background(), []models.Resource{res}, true)
	if out := outcomes["osiris"]; out.Action != models.RefreshRefreshed {
		t.Errorf("forced outcome = %+v, want refreshed", out)
	}
}

func TestMarkStaleTriggersRefetch(t *testing.T) {
	c, reg, _ := localSetup(t, "osiris")
	res, _ := reg.Get("osiris")

	c.Refresh(context.Background(), []models.Resource{res}, false)
	c.MarkStale("osiris")

	if c.Fresh("osiris") {
		t.Error("Fresh() = true after MarkStale")
	}
	got, _ := reg.Get("osiris")
	if got.Status != models.StatusStale {
		t.Errorf("registry status = %s, want STALE", got.Status)
	}

	// Stale entries are still served.
	if _, err := c.Get("osiris"); err != nil {
		t.Errorf("Get() after MarkStale error = %v", err)
	}

	outcomes := c.Refresh(context.Background(), []models.Resource{res}, false)
	if out := outcomes["osiris"]; out.Action != models.RefreshRefreshed {
		t.Errorf("outcome = %+v, want refreshed", out)
	}
	if !c.Fresh("osiris") {
		t.Error("Fresh() = false after refetch")
	}
}

func TestFailedRefreshKeepsPreviousEntry(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePair(t, dir,
		testutil.ManifestJSON("osiris", "core", "core__fact_blocks"),
		testutil.CatalogJSON())

	reg := testutil.TestRegistry(t, testutil.LocalResource("osiris", dir))
	fetcher := NewHTTPFetcher("http://unused", "docs", "", 50<<20)
	c := New(reg, fetcher, testutil.Logger(), testOptions(t))
	res, _ := reg.Get("osiris")

	c.Refresh(context.Background(), []models.Resource{res}, false)

	// Corrupt the pair so the forced refetch fails to parse.
	testutil.WritePair(t, dir, "not json", testutil.CatalogJSON())

	outcomes := c.Refresh(context.Background(), []models.Resource{res}, true)
	out := outcomes["osiris"]
	if out.Success || out.Action != models.RefreshFailed || out.Error == "" {
		t.Fatalf("outcome = %+v, want failed with error", out)
	}

	// Previous index still served.
	idx, err := c.Get("osiris")
	if err != nil {
		t.Fatalf("Get() after failed refresh error = %v", err)
	}
	if len(idx.Models()) != 1 {
		t.Errorf("previous index lost: %d models", len(idx.Models()))
	}

	got, _ := reg.Get("osiris")
	if got.Status != models.StatusFetchError {
		t.Errorf("registry status = %s, want FETCH_ERROR", got.Status)
	}
}

func TestLoadPersisted(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePair(t, dir,
		testutil.ManifestJSON("osiris", "core", "core__fact_blocks"),
		testutil.CatalogJSON())

	reg := testutil.TestRegistry(t, testutil.LocalResource("osiris", dir))
	fetcher := NewHTTPFetcher("http://unused", "docs", "", 50<<20)
	opts := testOptions(t)
	c := New(reg, fetcher, testutil.Logger(), opts)
	res, _ := reg.Get("osiris")
	c.Refresh(context.Background(), []models.Resource{res}, false)

	// Second cache over the same dir simulates a restart.
	reg2 := testutil.TestRegistry(t, testutil.LocalResource("osiris", dir))
	c2 := New(reg2, fetcher, testutil.Logger(), opts)
	if err := c2.LoadPersisted(); err != nil {
		t.Fatalf("LoadPersisted() error = %v", err)
	}

	idx, err := c2.Get("osiris")
	if err != nil {
		t.Fatalf("Get() after reload error = %v", err)
	}
	if len(idx.Models()) != 1 {
		t.Errorf("reloaded index has %d models, want 1", len(idx.Models()))
	}
	if !c2.Fresh("osiris") {
		t.Error("entry inside TTL loaded as stale")
	}
	got, _ := reg2.Get("osiris")
	if got.Status != models.StatusFresh {
		t.Errorf("registry status = %s, want FRESH", got.Status)
	}
}

func TestLoadPersistedExpired(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePair(t, dir,
		testutil.ManifestJSON("osiris", "core", "core__fact_blocks"),
		testutil.CatalogJSON())

	reg := testutil.TestRegistry(t, testutil.LocalResource("osiris", dir))
	fetcher := NewHTTPFetcher("http://unused", "docs", "", 50<<20)
	opts := testOptions(t)
	c := New(reg, fetcher, testutil.Logger(), opts)
	res, _ := reg.Get("osiris")
	c.Refresh(context.Background(), []models.Resource{res}, false)

	// Reload with a TTL small enough that the pair has already expired.
	opts.TTL = time.Nanosecond
	reg2 := testutil.TestRegistry(t, testutil.LocalResource("osiris", dir))
	c2 := New(reg2, fetcher, testutil.Logger(), opts)
	if err := c2.LoadPersisted(); err != nil {
		t.Fatalf("LoadPersisted() error = %v", err)
	}

	if c2.Fresh("osiris") {
		t.Error("expired entry loaded as fresh")
	}
	if _, err := c2.Get("osiris"); err != nil {
		t.Errorf("stale entry should still serve, got %v", err)
	}
	got, _ := reg2.Get("osiris")
	if got.Status != models.StatusStale {
		t.Errorf("registry status = %s, want STALE", got.Status)
	}
}

func TestRemove(t *testing.T) {
	c, reg, _ := localSetup(t, "osiris")
	res, _ := reg.Get("osiris")
	c.Refresh(context.Background(), []models.Resource{res}, false)

	if err := c.Remove("osiris"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := c.Get("osiris"); !errors.Is(err, apperr.ErrNotCached) {
		t.Errorf("error after Remove = %v, want ErrNotCached", err)
	}
	if len(c.IDs()) != 0 {
		t.Errorf("IDs() = %v, want empty", c.IDs())
	}
}
