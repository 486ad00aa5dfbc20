package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// Artifact file names within a pair.
const (
	manifestFile = "manifest.json"
	catalogFile  = "catalog.json"
)

// Fetcher retrieves the raw artifact pair for one resource.
type Fetcher interface {
	Fetch(ctx context.Context, res models.Resource) (manifest, catalog []byte, err error)
}

// HTTPFetcher reads local pairs from disk and remote pairs from a raw
// content host (github raw by default).
type HTTPFetcher struct {
	Client       *http.Client
	RawBaseURL   string
	ArtifactPath string
	Token        string
	MaxFileSize  int64
}

// NewHTTPFetcher builds a fetcher with a tuned HTTP client.
func NewHTTPFetcher(rawBaseURL, artifactPath, token string, maxFileSize int64) *HTTPFetcher {
	return &HTTPFetcher{
		Client:       &http.Client{Timeout: 60 * time.Second},
		RawBaseURL:   strings.TrimRight(rawBaseURL, "/"),
		ArtifactPath: strings.Trim(artifactPath, "/"),
		Token:        token,
		MaxFileSize:  maxFileSize,
	}
}

// Fetch retrieves both documents of the pair. Either both succeed or the
// whole fetch fails; a pair is never half-replaced.
func (f *HTTPFetcher) Fetch(ctx context.Context, res models.Resource) ([]byte, []byte, error) {
	switch res.Location.Kind {
	case models.LocationLocal:
		return f.fetchLocal(res.Location.Path)
	case models.LocationRemote:
		return f.fetchRemote(ctx, res.Location)
	default:
		return nil, nil, fmt.Errorf("%w: resource %s has unknown location kind %q", apperr.ErrFetch, res.ID, res.Location.Kind)
	}
}

func (f *HTTPFetcher) fetchLocal(dir string) ([]byte, []byte, error) {
	manifest, err := f.readLocal(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil, err
	}
	catalog, err := f.readLocal(filepath.Join(dir, catalogFile))
	if err != nil {
		return nil, nil, err
	}
	return manifest, catalog, nil
}

func (f *HTTPFetcher) readLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFetch, err)
	}
	if info.Size() > f.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", apperr.ErrFetch, path, info.Size(), f.MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFetch, err)
	}
	return data, nil
}

func (f *HTTPFetcher) fetchRemote(ctx context.Context, loc models.Location) ([]byte, []byte, error) {
	manifest, err := f.download(ctx, f.artifactURL(loc, manifestFile))
	if err != nil {
		return nil, nil, err
	}
	catalog, err := f.download(ctx, f.artifactURL(loc, catalogFile))
	if err != nil {
		return nil, nil, err
	}
	return manifest, catalog, nil
}

func (f *HTTPFetcher) artifactURL(loc models.Location, file string) string {
	branch := loc.Branch
	if branch == "" {
		branch = "docs"
	}
	if f.ArtifactPath == "" {
		return fmt.Sprintf("%s/%s/%s/%s/%s", f.RawBaseURL, loc.Org, loc.Repo, branch, file)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s", f.RawBaseURL, loc.Org, loc.Repo, branch, f.ArtifactPath, file)
}

func (f *HTTPFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperr.ErrFetch, err)
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: status %d", apperr.ErrFetch, url, resp.StatusCode)
	}
	if resp.ContentLength > f.MaxFileSize {
		return nil, fmt.Errorf("%w: GET %s: %d bytes (max %d)", apperr.ErrFetch, url, resp.ContentLength, f.MaxFileSize)
	}

	// Read one byte past the limit so an unreported oversize body is caught.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", apperr.ErrFetch, err)
	}
	if int64(len(data)) > f.MaxFileSize {
		return nil, fmt.Errorf("%w: GET %s: body exceeds %d bytes", apperr.ErrFetch, url, f.MaxFileSize)
	}
	return data, nil
}
