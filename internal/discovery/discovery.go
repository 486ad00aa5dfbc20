// Package discovery scans a GitHub organization for repositories that
// publish dbt artifact pairs on a dedicated branch and registers them as
// resources.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
)

const reposPerPage = 100

// Options configures a Discoverer.
type Options struct {
	Org            string
	RepoSuffix     string
	ArtifactBranch string
	APIBaseURL     string
	Token          string
}

// Discoverer lists an organization's repositories, filters them by naming
// convention, and probes each candidate for the artifact branch.
type Discoverer struct {
	client *http.Client
	reg    *registry.Registry
	logger *slog.Logger
	opts   Options

	// SkipProbe, when set, lets a resource with a still-valid cache skip
	// the branch probe. It saves one API call per known-good resource.
	SkipProbe func(id string) bool
}

// New creates a Discoverer writing into reg.
func New(reg *registry.Registry, logger *slog.Logger, opts Options) *Discoverer {
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")
	return &Discoverer{
		client: &http.Client{Timeout: 30 * time.Second},
		reg:    reg,
		logger: logger,
		opts:   opts,
	}
}

type repoInfo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// Discover scans the organization. specific restricts the scan to the named
// repositories (by repo name or base name); force disables the skip-probe
// optimization. A rate-limited scan returns the partial summary alongside
// ErrRateLimited so callers can fall back to the last-known registry.
func (d *Discoverer) Discover(ctx context.Context, specific []string, force bool) (models.DiscoverySummary, error) {
	var summary models.DiscoverySummary

	repos, err := d.listRepos(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrRateLimited) {
			summary.RateLimited = true
		}
		return summary, err
	}

	candidates := d.filterRepos(repos, specific)
	summary.TotalDiscovered = len(candidates)
	d.logger.Info("discovery: scanning candidates",
		slog.String("org", d.opts.Org),
		slog.Int("candidates", len(candidates)))

	for _, repo := range candidates {
		if !force && d.SkipProbe != nil && d.SkipProbe(repo.Name) {
			d.logger.Debug("discovery: probe skipped, cache valid", slog.String("repo", repo.Name))
			if err := d.register(repo); err != nil {
				summary.Errors = append(summary.Errors, models.DiscoveryError{Repo: repo.Name, Reason: err.Error()})
				continue
			}
			summary.WithArtifacts++
			continue
		}

		has, err := d.probeBranch(ctx, repo.FullName)
		if err != nil {
			if errors.Is(err, apperr.ErrRateLimited) {
				// Remaining probes would fail the same way.
				summary.RateLimited = true
				summary.Errors = append(summary.Errors, models.DiscoveryError{Repo: repo.Name, Reason: err.Error()})
				return summary, fmt.Errorf("discovery: probe %s: %w", repo.Name, err)
			}
			summary.Errors = append(summary.Errors, models.DiscoveryError{Repo: repo.Name, Reason: err.Error()})
			d.logger.Warn("discovery: probe failed",
				slog.String("repo", repo.Name),
				slog.String("error", err.Error()))
			continue
		}
		if !has {
			summary.WithoutArtifacts++
			continue
		}
		if err := d.register(repo); err != nil {
			summary.Errors = append(summary.Errors, models.DiscoveryError{Repo: repo.Name, Reason: err.Error()})
			continue
		}
		summary.WithArtifacts++
	}

	d.logger.Info("discovery: completed",
		slog.Int("with_artifacts", summary.WithArtifacts),
		slog.Int("without_artifacts", summary.WithoutArtifacts),
		slog.Int("errors", len(summary.Errors)))
	return summary, nil
}

func (d *Discoverer) register(repo repoInfo) error {
	base := baseName(repo.Name, d.opts.RepoSuffix)
	return d.reg.Upsert(models.Resource{
		ID:       repo.Name,
		Name:     displayName(repo.Name, d.opts.RepoSuffix),
		Category: categorize(base),
		Aliases:  aliases(repo.Name, d.opts.RepoSuffix),
		Location: models.Location{
			Kind:   models.LocationRemote,
			Org:    d.opts.Org,
			Repo:   repo.Name,
			Branch: d.opts.ArtifactBranch,
		},
	})
}

func (d *Discoverer) filterRepos(repos []repoInfo, specific []string) []repoInfo {
	want := make(map[string]bool, len(specific))
	for _, s := range specific {
		want[strings.ToLower(s)] = true
	}

	var out []repoInfo
	for _, repo := range repos {
		if !strings.HasSuffix(repo.Name, d.opts.RepoSuffix) {
			continue
		}
		if len(specific) > 0 {
			name := strings.ToLower(repo.Name)
			base := strings.ToLower(baseName(repo.Name, d.opts.RepoSuffix))
			if !want[name] && !want[base] {
				continue
			}
		}
		out = append(out, repo)
	}
	return out
}

func (d *Discoverer) listRepos(ctx context.Context) ([]repoInfo, error) {
	var repos []repoInfo
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/orgs/%s/repos?page=%d&per_page=%d",
			d.opts.APIBaseURL, d.opts.Org, page, reposPerPage)

		var pageRepos []repoInfo
		if err := d.getJSON(ctx, url, &pageRepos); err != nil {
			return nil, fmt.Errorf("discovery: list repos page %d: %w", page, err)
		}
		if len(pageRepos) == 0 {
			break
		}
		repos = append(repos, pageRepos...)
		if len(pageRepos) < reposPerPage {
			break
		}
	}
	d.logger.Info("discovery: listed repositories",
		slog.String("org", d.opts.Org),
		slog.Int("total", len(repos)))
	return repos, nil
}

// probeBranch checks whether the repository has the artifact branch.
func (d *Discoverer) probeBranch(ctx context.Context, fullName string) (bool, error) {
	url := fmt.Sprintf("%s/repos/%s/branches/%s", d.opts.APIBaseURL, fullName, d.opts.ArtifactBranch)

	resp, err := d.do(ctx, url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case rateLimitedResponse(resp):
		return false, fmt.Errorf("%w: probe %s", apperr.ErrRateLimited, fullName)
	default:
		return false, fmt.Errorf("probe %s: status %d", fullName, resp.StatusCode)
	}
}

func (d *Discoverer) getJSON(ctx context.Context, url string, target any) error {
	resp, err := d.do(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if rateLimitedResponse(resp) {
		return fmt.Errorf("%w: GET %s", apperr.ErrRateLimited, url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return json.Unmarshal(body, target)
}

func (d *Discoverer) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if d.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.opts.Token)
	}
	return d.client.Do(req)
}

// rateLimitedResponse detects an exhausted GitHub rate limit: 403 with the
// X-RateLimit-Remaining header at zero.
func rateLimitedResponse(resp *http.Response) bool {
	return resp.StatusCode == http.StatusForbidden &&
		resp.Header.Get("X-RateLimit-Remaining") == "0"
}
