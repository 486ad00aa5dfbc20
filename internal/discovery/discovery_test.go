package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/testutil"
)

// fakeGitHub serves an org repo listing plus branch probes.
type fakeGitHub struct {
	repos        []string
	docsBranches map[string]bool
	probeStatus  map[string]int // overrides per repo
	rateLimited  bool
	probeCalls   int
}

func (f *fakeGitHub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.rateLimited {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/orgs/"):
			if r.URL.Query().Get("page") != "1" {
				fmt.Fprint(w, "[]")
				return
			}
			var parts []string
			for _, name := range f.repos {
				parts = append(parts, fmt.Sprintf(`{"name": %q, "full_name": "starford/%s"}`, name, name))
			}
			fmt.Fprint(w, "["+strings.Join(parts, ",")+"]")
		case strings.HasPrefix(r.URL.Path, "/repos/"):
			f.probeCalls++
			segs := strings.Split(r.URL.Path, "/")
			repo := segs[3]
			if status, ok := f.probeStatus[repo]; ok {
				w.WriteHeader(status)
				return
			}
			if f.docsBranches[repo] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestDiscoverer(t *testing.T, f *fakeGitHub) (*Discoverer, *registry.Registry) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	reg := testutil.TestRegistry(t)
	d := New(reg, testutil.Logger(), Options{
		Org:            "starford",
		RepoSuffix:     "-models",
		ArtifactBranch: "docs",
		APIBaseURL:     srv.URL,
	})
	return d, reg
}

func TestDiscoverRegistersReposWithArtifactBranch(t *testing.T) {
	f := &fakeGitHub{
		repos:        []string{"ethereum-models", "bitcoin-models", "website", "solana-models"},
		docsBranches: map[string]bool{"ethereum-models": true, "bitcoin-models": true},
	}
	d, reg := newTestDiscoverer(t, f)

	summary, err := d.Discover(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if summary.TotalDiscovered != 3 {
		t.Errorf("TotalDiscovered = %d, want 3 (suffix filter)", summary.TotalDiscovered)
	}
	if summary.WithArtifacts != 2 || summary.WithoutArtifacts != 1 {
		t.Errorf("summary = %+v", summary)
	}

	res, err := reg.Get("ethereum-models")
	if err != nil {
		t.Fatalf("Get(ethereum-models) error = %v", err)
	}
	if res.Name != "Ethereum Models" {
		t.Errorf("name = %q, want Ethereum Models", res.Name)
	}
	if res.Category != "evm" {
		t.Errorf("category = %q, want evm", res.Category)
	}
	if !res.HasAlias("eth") || !res.HasAlias("ethereum") {
		t.Errorf("aliases = %v, want ethereum and eth", res.Aliases)
	}
	if res.Location.Kind != models.LocationRemote || res.Location.Branch != "docs" {
		t.Errorf("location = %+v", res.Location)
	}

	if _, err := reg.Get("website"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("non-suffix repo registered")
	}
	if _, err := reg.Get("solana-models"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("repo without artifact branch registered")
	}
}

func TestDiscoverSpecificFilter(t *testing.T) {
	f := &fakeGitHub{
		repos:        []string{"ethereum-models", "bitcoin-models", "polygon-models"},
		docsBranches: map[string]bool{"ethereum-models": true, "bitcoin-models": true, "polygon-models": true},
	}
	d, reg := newTestDiscoverer(t, f)

	// Base names resolve to their repos.
	summary, err := d.Discover(context.Background(), []string{"ethereum", "bitcoin-models"}, false)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if summary.TotalDiscovered != 2 || summary.WithArtifacts != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := reg.Get("polygon-models"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("unrequested repo registered")
	}
}

func TestDiscoverPerRepoFailureIsolation(t *testing.T) {
	f := &fakeGitHub{
		repos:        []string{"ethereum-models", "broken-models"},
		docsBranches: map[string]bool{"ethereum-models": true},
		probeStatus:  map[string]int{"broken-models": http.StatusInternalServerError},
	}
	d, reg := newTestDiscoverer(t, f)

	summary, err := d.Discover(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if summary.WithArtifacts != 1 {
		t.Errorf("WithArtifacts = %d, want 1", summary.WithArtifacts)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Repo != "broken-models" {
		t.Errorf("Errors = %v", summary.Errors)
	}
	if _, err := reg.Get("ethereum-models"); err != nil {
		t.Error("healthy repo not registered despite sibling failure")
	}
}

func TestDiscoverRateLimited(t *testing.T) {
	f := &fakeGitHub{rateLimited: true}
	d, _ := newTestDiscoverer(t, f)

	summary, err := d.Discover(context.Background(), nil, false)
	if !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if !summary.RateLimited {
		t.Error("summary.RateLimited = false")
	}
}

func TestDiscoverSkipProbe(t *testing.T) {
	f := &fakeGitHub{
		repos:        []string{"ethereum-models"},
		docsBranches: map[string]bool{"ethereum-models": true},
	}
	d, reg := newTestDiscoverer(t, f)
	d.SkipProbe = func(id string) bool { return id == "ethereum-models" }

	summary, err := d.Discover(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if f.probeCalls != 0 {
		t.Errorf("probeCalls = %d, want 0 (skip-probe)", f.probeCalls)
	}
	if summary.WithArtifacts != 1 {
		t.Errorf("WithArtifacts = %d, want 1", summary.WithArtifacts)
	}
	if _, err := reg.Get("ethereum-models"); err != nil {
		t.Error("skipped repo not registered")
	}

	// force bypasses the optimization.
	if _, err := d.Discover(context.Background(), nil, true); err != nil {
		t.Fatalf("forced Discover() error = %v", err)
	}
	if f.probeCalls == 0 {
		t.Error("forced discovery did not probe")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		repo string
		want string
	}{
		{"ethereum-models", "Ethereum Models"},
		{"crosschain-models", "Crosschain Models"},
		{"some-other-repo", "Some Other Repo"},
	}
	for _, tt := range tests {
		if got := displayName(tt.repo, "-models"); got != tt.want {
			t.Errorf("displayName(%q) = %q, want %q", tt.repo, got, tt.want)
		}
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"bitcoin", "l1"},
		{"Ethereum", "evm"},
		{"osmosis", "ibc"},
		{"solana", "svm"},
		{"crosschain", "multi-chain"},
		{"kairos", "internal"},
		{"mystery", "unknown"},
	}
	for _, tt := range tests {
		if got := categorize(tt.base); got != tt.want {
			t.Errorf("categorize(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestAliases(t *testing.T) {
	got := aliases("polygon-models", "-models")
	want := map[string]bool{"polygon": true, "polygon_models": true, "matic": true, "poly": true}
	for _, a := range got {
		delete(want, a)
	}
	if len(want) != 0 {
		t.Errorf("aliases missing %v from %v", want, got)
	}
	for _, a := range got {
		if strings.EqualFold(a, "polygon-models") {
			t.Error("alias set should not repeat the resource id")
		}
	}
}
