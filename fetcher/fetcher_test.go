package fetcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniterm/aniterm/types"
)

type stubFetcher struct{ name string }

func (s stubFetcher) Name() string { return s.name }

func (s stubFetcher) Search(context.Context, string) ([]types.SearchResult, error) {
	return nil, nil
}

func (s stubFetcher) Episodes(context.Context, string) ([]types.EpisodeRef, error) {
	return nil, nil
}

func (s stubFetcher) Resolve(context.Context, types.EpisodeRef) (*types.Stream, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	t.Cleanup(func() { registry = make(map[string]Fetcher) })

	require.NoError(t, Register(stubFetcher{name: "beta"}))
	require.NoError(t, Register(stubFetcher{name: "alpha"}))
	require.Error(t, Register(stubFetcher{name: "alpha"}))

	f, err := Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", f.Name())

	assert.Equal(t, []string{"alpha", "beta"}, Names())

	// The error for a typo names the sources that do exist.
	_, err = Get("alpa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"alpa"`)
	assert.Contains(t, err.Error(), "alpha, beta")
}
