// Package fetcher defines the capability set every anime source implements
// and the registry the pipeline picks sources from.
package fetcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aniterm/aniterm/types"
)

// Fetcher is one backend. Implementations build their own requests through
// the transport client, parse the backend-specific payloads, and translate
// backend errors into the shared taxonomy. They hold no per-call state; a
// source that needs a short-lived session token owns and refreshes it
// internally.
type Fetcher interface {
	// Name tags every result this source produces.
	Name() string

	// Search returns titles in the backend's relevance order.
	Search(ctx context.Context, query string) ([]types.SearchResult, error)

	// Episodes returns the episode list for an anime id, in broadcast
	// order. The order must be stable across calls.
	Episodes(ctx context.Context, animeID string) ([]types.EpisodeRef, error)

	// Resolve turns one episode into a playable stream descriptor.
	Resolve(ctx context.Context, ep types.EpisodeRef) (*types.Stream, error)
}

var registry = make(map[string]Fetcher)

// Register adds a source under its name. Registration order carries no
// meaning; the pipeline's source order comes from configuration.
func Register(f Fetcher) error {
	if _, ok := registry[f.Name()]; ok {
		return fmt.Errorf("fetcher %q already registered", f.Name())
	}
	registry[f.Name()] = f
	return nil
}

// Get returns the source registered under name.
func Get(name string) (Fetcher, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (registered: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered sources, sorted for deterministic output.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
