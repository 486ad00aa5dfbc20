// Package models defines the domain types for Raido.
package models

import (
	"fmt"
	"strings"
	"time"
)

// CacheStatus tracks where a resource sits in the artifact cache lifecycle.
type CacheStatus string

const (
	StatusUndiscovered CacheStatus = "UNDISCOVERED"
	StatusDiscovered   CacheStatus = "DISCOVERED"
	StatusFetching     CacheStatus = "FETCHING"
	StatusFresh        CacheStatus = "FRESH"
	StatusStale        CacheStatus = "STALE"
	StatusFetchError   CacheStatus = "FETCH_ERROR"
)

// Location kinds.
const (
	LocationLocal  = "local"
	LocationRemote = "remote"
)

// Location says where a resource's artifact pair is served from. Exactly one
// variant is populated, decided once at registry-load time.
type Location struct {
	Kind string `yaml:"kind" json:"kind"`

	// Local variant: directory containing manifest.json and catalog.json.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Remote variant: repository coordinates of the artifact branch.
	Org    string `yaml:"org,omitempty" json:"org,omitempty"`
	Repo   string `yaml:"repo,omitempty" json:"repo,omitempty"`
	Branch string `yaml:"branch,omitempty" json:"branch,omitempty"`
}

// Validate checks that exactly one variant is populated.
func (l Location) Validate() error {
	switch l.Kind {
	case LocationLocal:
		if l.Path == "" {
			return fmt.Errorf("local location requires path")
		}
	case LocationRemote:
		if l.Org == "" || l.Repo == "" {
			return fmt.Errorf("remote location requires org and repo")
		}
	default:
		return fmt.Errorf("unknown location kind %q", l.Kind)
	}
	return nil
}

// FullName returns the org/repo form for remote locations.
func (l Location) FullName() string {
	return l.Org + "/" + l.Repo
}

// Resource is one data-transformation project tracked by the registry.
type Resource struct {
	ID              string      `yaml:"id" json:"id"`
	Name            string      `yaml:"name" json:"name"`
	Category        string      `yaml:"category" json:"category"`
	Description     string      `yaml:"description,omitempty" json:"description,omitempty"`
	Aliases         []string    `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Schemas         []string    `yaml:"schemas,omitempty" json:"schemas,omitempty"`
	Location        Location    `yaml:"location" json:"location"`
	Status          CacheStatus `yaml:"-" json:"cache_status"`
	LastRefreshedAt *time.Time  `yaml:"-" json:"last_refreshed_at,omitempty"`
}

// HasAlias reports whether name matches the resource id or any declared
// alias, case-insensitively. Every resource is reachable by its own id.
func (r Resource) HasAlias(name string) bool {
	if strings.EqualFold(name, r.ID) {
		return true
	}
	for _, a := range r.Aliases {
		if strings.EqualFold(name, a) {
			return true
		}
	}
	return false
}

// DiscoveryError records one repository that could not be probed.
type DiscoveryError struct {
	Repo   string `json:"repo"`
	Reason string `json:"reason"`
}

// DiscoverySummary is the aggregate result of one organization scan.
type DiscoverySummary struct {
	TotalDiscovered  int              `json:"total_discovered"`
	WithArtifacts    int              `json:"with_artifacts"`
	WithoutArtifacts int              `json:"without_artifacts"`
	Errors           []DiscoveryError `json:"errors,omitempty"`
	RateLimited      bool             `json:"rate_limited,omitempty"`
}

// Refresh actions.
const (
	RefreshSkipped   = "skipped"
	RefreshRefreshed = "refreshed"
	RefreshFailed    = "failed"
)

// RefreshOutcome is the terminal result for one resource within a refresh
// call. Skipped and refreshed are both successful outcomes.
type RefreshOutcome struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Error   string `json:"error,omitempty"`
}
