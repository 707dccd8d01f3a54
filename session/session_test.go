package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniterm/aniterm/types"
)

func sampleResults() []types.SearchResult {
	return []types.SearchResult{
		{Source: "allanime", ID: "a1", Title: "Naruto", Episodes: 220},
		{Source: "allanime", ID: "a2", Title: "Naruto Shippuden", Episodes: 500},
	}
}

func sampleEpisodes() []types.EpisodeRef {
	return []types.EpisodeRef{
		{Source: "allanime", AnimeID: "a1", Label: "1"},
		{Source: "allanime", AnimeID: "a1", Label: "2"},
		{Source: "allanime", AnimeID: "a1", Label: "3"},
	}
}

func TestHappyPath(t *testing.T) {
	s := New()
	require.Equal(t, Idle, s.Stage())

	gen, err := s.StartSearch("naruto")
	require.NoError(t, err)
	require.Equal(t, Searching, s.Stage())

	require.NoError(t, s.ApplySearch(gen, sampleResults(), nil))
	require.Equal(t, Results, s.Stage())
	require.Len(t, s.Results(), 2)

	gen, err = s.SelectResult(0)
	require.NoError(t, err)
	require.Equal(t, EpisodeList, s.Stage())
	require.False(t, s.EpisodesLoaded())

	require.NoError(t, s.ApplyEpisodes(gen, sampleEpisodes(), nil))
	require.True(t, s.EpisodesLoaded())

	gen, err = s.SelectEpisode(1)
	require.NoError(t, err)
	require.Equal(t, Resolving, s.Stage())
	require.Equal(t, "2", s.Episode().Label)

	stream := &types.Stream{URL: "https://cdn.example/ep2.m3u8"}
	require.NoError(t, s.ApplyStream(gen, stream, nil))
	require.Equal(t, ReadyToPlay, s.Stage())
	require.Equal(t, stream, s.Stream())
}

func TestSupersededSearchIsDropped(t *testing.T) {
	s := New()

	gen1, err := s.StartSearch("naru")
	require.NoError(t, err)

	// A second keystroke fires a new search before the first returns.
	gen2, err := s.StartSearch("naruto")
	require.NoError(t, err)
	require.NotEqual(t, gen1, gen2)

	stale := []types.SearchResult{{Source: "allanime", ID: "old", Title: "Wrong"}}
	require.ErrorIs(t, s.ApplySearch(gen1, stale, nil), ErrStale)
	require.Equal(t, Searching, s.Stage())
	require.Empty(t, s.Results())

	require.NoError(t, s.ApplySearch(gen2, sampleResults(), nil))
	require.Equal(t, "Naruto", s.Results()[0].Title)
}

func TestBackDuringSearchDropsLateResult(t *testing.T) {
	s := New()
	gen, err := s.StartSearch("naruto")
	require.NoError(t, err)

	require.NoError(t, s.Back())
	require.Equal(t, Idle, s.Stage())

	// The request completes anyway; the session must not jump stages.
	require.ErrorIs(t, s.ApplySearch(gen, sampleResults(), nil), ErrStale)
	require.Equal(t, Idle, s.Stage())
}

func TestBackDuringEpisodeLoadDropsLateList(t *testing.T) {
	s := New()
	gen, err := s.StartSearch("naruto")
	require.NoError(t, err)
	require.NoError(t, s.ApplySearch(gen, sampleResults(), nil))

	gen, err = s.SelectResult(0)
	require.NoError(t, err)
	require.NoError(t, s.Back())
	require.Equal(t, Results, s.Stage())

	require.ErrorIs(t, s.ApplyEpisodes(gen, sampleEpisodes(), nil), ErrStale)
	require.Equal(t, Results, s.Stage())
	require.False(t, s.EpisodesLoaded())
}

func TestBackDuringResolveDropsLateStream(t *testing.T) {
	s := navigateToEpisodes(t)

	gen, err := s.SelectEpisode(0)
	require.NoError(t, err)
	require.NoError(t, s.Back())
	require.Equal(t, EpisodeList, s.Stage())

	stream := &types.Stream{URL: "https://cdn.example/late.m3u8"}
	require.ErrorIs(t, s.ApplyStream(gen, stream, nil), ErrStale)
	require.Nil(t, s.Stream())
}

func TestSearchFailureAndRetry(t *testing.T) {
	s := New()
	gen, err := s.StartSearch("naruto")
	require.NoError(t, err)

	cause := &types.TransportError{Kind: types.TransportTimeout, URL: "https://api.example"}
	require.NoError(t, s.ApplySearch(gen, nil, cause))
	require.Equal(t, Error, s.Stage())
	require.ErrorIs(t, s.Err(), cause)

	op, gen2, err := s.Retry()
	require.NoError(t, err)
	assert.Equal(t, OpSearch, op)
	assert.Equal(t, Searching, s.Stage())
	require.NotEqual(t, gen, gen2)

	require.NoError(t, s.ApplySearch(gen2, sampleResults(), nil))
	require.Equal(t, Results, s.Stage())
}

func TestErrorRecoversToOriginStage(t *testing.T) {
	s := navigateToEpisodes(t)

	gen, err := s.SelectEpisode(0)
	require.NoError(t, err)
	require.NoError(t, s.ApplyStream(gen, nil, errors.New("no playable sources")))
	require.Equal(t, Error, s.Stage())

	// Backing out of the error returns to the loaded episode list.
	require.NoError(t, s.Back())
	require.Equal(t, EpisodeList, s.Stage())
	require.True(t, s.EpisodesLoaded())
}

func TestLaunchFailureReturnsToEpisodeList(t *testing.T) {
	s := navigateToEpisodes(t)
	gen, err := s.SelectEpisode(2)
	require.NoError(t, err)
	require.NoError(t, s.ApplyStream(gen, &types.Stream{URL: "https://cdn.example/x"}, nil))
	require.Equal(t, ReadyToPlay, s.Stage())

	require.NoError(t, s.LaunchFailed(errors.New("exec: mpv: not found")))
	assert.Equal(t, EpisodeList, s.Stage())
	assert.Nil(t, s.Stream())
	assert.True(t, s.EpisodesLoaded())
}

func TestIllegalTransitions(t *testing.T) {
	s := New()

	_, err := s.SelectResult(0)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Idle, te.Stage)

	_, err = s.SelectEpisode(0)
	require.ErrorAs(t, err, &te)

	_, _, err = s.Retry()
	require.ErrorAs(t, err, &te)

	require.Error(t, s.Back())
}

func TestSelectResultOutOfRange(t *testing.T) {
	s := New()
	gen, err := s.StartSearch("naruto")
	require.NoError(t, err)
	require.NoError(t, s.ApplySearch(gen, sampleResults(), nil))

	_, err = s.SelectResult(5)
	require.Error(t, err)
	_, err = s.SelectResult(-1)
	require.Error(t, err)
	require.Equal(t, Results, s.Stage())
}

func TestReselectingResultResetsEpisodes(t *testing.T) {
	s := navigateToEpisodes(t)
	require.NoError(t, s.Back())
	require.Equal(t, Results, s.Stage())

	gen, err := s.SelectResult(1)
	require.NoError(t, err)
	require.False(t, s.EpisodesLoaded())
	require.Empty(t, s.Episodes())
	require.Equal(t, "a2", s.Selected().ID)

	require.NoError(t, s.ApplyEpisodes(gen, sampleEpisodes(), nil))
	require.True(t, s.EpisodesLoaded())
}

// navigateToEpisodes walks a fresh session to a loaded episode list.
func navigateToEpisodes(t *testing.T) *Session {
	t.Helper()
	s := New()
	gen, err := s.StartSearch("naruto")
	require.NoError(t, err)
	require.NoError(t, s.ApplySearch(gen, sampleResults(), nil))
	gen, err = s.SelectResult(0)
	require.NoError(t, err)
	require.NoError(t, s.ApplyEpisodes(gen, sampleEpisodes(), nil))
	return s
}
