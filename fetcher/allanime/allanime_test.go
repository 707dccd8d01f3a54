package allanime

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniterm/aniterm/transport"
	"github.com/aniterm/aniterm/types"
)

// fakeDoer routes requests to canned bodies by URL substring.
type fakeDoer struct {
	handler func(req transport.Request) (*transport.Response, error)
	calls   []string
}

func (d *fakeDoer) Fetch(_ context.Context, req transport.Request) (*transport.Response, error) {
	d.calls = append(d.calls, req.URL)
	return d.handler(req)
}

func respond(body string) func(transport.Request) (*transport.Response, error) {
	return func(transport.Request) (*transport.Response, error) {
		return &transport.Response{Status: 200, Body: []byte(body)}, nil
	}
}

// "/apivtwo/clock?id=abc" as hex pairs.
const encodedClockPath = "175948514e4c4f57175b54575b5307515c05595a5b"

func TestDecodeProviderURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "obfuscated internal provider",
			in:   "--" + encodedClockPath,
			want: "https://allanime.day/apivtwo/clock.json?id=abc",
		},
		{
			name: "scheme-relative",
			in:   "//repackager.wixmp.com/video.mp4",
			want: "https://repackager.wixmp.com/video.mp4",
		},
		{
			name: "already absolute",
			in:   "https://cdn.example/file.mp4",
			want: "https://cdn.example/file.mp4",
		},
		{
			name: "clock without suffix",
			in:   "https://allanime.day/apivtwo/clock?id=x",
			want: "https://allanime.day/apivtwo/clock.json?id=x",
		},
		{
			name: "clock already suffixed",
			in:   "https://allanime.day/apivtwo/clock.json?id=x",
			want: "https://allanime.day/apivtwo/clock.json?id=x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeProviderURL(tt.in))
		})
	}
}

func TestDecodePairsKeepsPort(t *testing.T) {
	// "/a" + untouched ":8080".
	assert.Equal(t, "/a:8080", decodePairs("1759:8080"))
}

func TestSearchPrefersEnglishName(t *testing.T) {
	doer := &fakeDoer{handler: respond(`{
		"data": {"shows": {"edges": [
			{"_id": "x1", "name": "Shingeki no Kyojin", "englishName": "Attack on Titan",
			 "thumbnail": "https://img/x1.jpg", "availableEpisodes": {"sub": 87, "dub": 80}},
			{"_id": "x2", "name": "Berserk", "englishName": "",
			 "availableEpisodes": {"sub": 25}}
		]}}
	}`)}
	f := New(doer, "sub", "best")

	results, err := f.Search(context.Background(), "titan")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Attack on Titan", results[0].Title)
	assert.Equal(t, 87, results[0].Episodes)
	assert.Equal(t, "x1", results[0].ID)
	assert.Equal(t, Name, results[0].Source)
	assert.Equal(t, "Berserk", results[1].Title)
}

func TestEpisodesSortedAscendingAndDeterministic(t *testing.T) {
	doer := &fakeDoer{handler: respond(`{
		"data": {"show": {"_id": "x1", "name": "Show",
			"availableEpisodesDetail": {"sub": ["10", "2", "1", "5.5"], "dub": ["1"]}}}
	}`)}
	f := New(doer, "sub", "best")

	first, err := f.Episodes(context.Background(), "x1")
	require.NoError(t, err)

	labels := make([]string, len(first))
	for i, ep := range first {
		labels[i] = ep.Label
	}
	assert.Equal(t, []string{"1", "2", "5.5", "10"}, labels)
	assert.Equal(t, 5, first[2].Number)

	// Listing again yields the identical order.
	second, err := f.Episodes(context.Background(), "x1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEpisodesMissingShow(t *testing.T) {
	doer := &fakeDoer{handler: respond(`{"data": {"show": null}}`)}
	f := New(doer, "sub", "best")

	_, err := f.Episodes(context.Background(), "ghost")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestEpisodesMissingMode(t *testing.T) {
	doer := &fakeDoer{handler: respond(`{
		"data": {"show": {"_id": "x1", "availableEpisodesDetail": {"sub": ["1"]}}}
	}`)}
	f := New(doer, "dub", "best")

	_, err := f.Episodes(context.Background(), "x1")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestResolvePicksBestQualityFromProvider(t *testing.T) {
	// High-priority source is a provider endpoint, low-priority a direct file.
	encoded := "--" + encodedClockPath
	doer := &fakeDoer{}
	doer.handler = func(req transport.Request) (*transport.Response, error) {
		if strings.HasPrefix(req.URL, apiBase) {
			return &transport.Response{Status: 200, Body: []byte(`{
				"data": {"episode": {"episodeString": "1", "sourceUrls": [
					{"sourceUrl": "https://backup.example/file.mp4", "sourceName": "Backup", "priority": 1.5},
					{"sourceUrl": "` + encoded + `", "sourceName": "Default", "priority": 9.5}
				]}}
			}`)}, nil
		}
		return &transport.Response{Status: 200, Body: []byte(`{
			"links": [
				{"link": "https://cdn.example/720.mp4", "resolutionStr": "720p"},
				{"link": "https://cdn.example/1080.mp4", "resolutionStr": "1080p"}
			]
		}`)}, nil
	}
	f := New(doer, "sub", "best")

	stream, err := f.Resolve(context.Background(), types.EpisodeRef{
		Source: Name, AnimeID: "x1", Label: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/1080.mp4", stream.URL)
	assert.Equal(t, "1080p", stream.Quality)
	assert.Equal(t, "https://allmanga.to", stream.Referer)
	assert.Equal(t, transport.UserAgent, stream.UserAgent)

	// The provider endpoint was resolved through clock.json.
	require.Len(t, doer.calls, 2)
	assert.Contains(t, doer.calls[1], "clock.json")
}

func TestResolveDirectURLSkipsProviderFetch(t *testing.T) {
	doer := &fakeDoer{handler: respond(`{
		"data": {"episode": {"episodeString": "1", "sourceUrls": [
			{"sourceUrl": "https://files.example/ep1.mp4", "sourceName": "S-mp4", "priority": 8}
		]}}
	}`)}
	f := New(doer, "sub", "best")

	stream, err := f.Resolve(context.Background(), types.EpisodeRef{AnimeID: "x1", Label: "1"})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/ep1.mp4", stream.URL)
	require.Len(t, doer.calls, 1)
}

func TestResolveNoSources(t *testing.T) {
	doer := &fakeDoer{handler: respond(`{"data": {"episode": {"episodeString": "1", "sourceUrls": []}}}`)}
	f := New(doer, "sub", "best")

	_, err := f.Resolve(context.Background(), types.EpisodeRef{AnimeID: "x1", Label: "1"})
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestGraphql404IsNotFound(t *testing.T) {
	doer := &fakeDoer{handler: func(transport.Request) (*transport.Response, error) {
		return nil, &types.TransportError{Kind: types.TransportStatus, URL: apiBase, Status: 404}
	}}
	f := New(doer, "sub", "best")

	_, err := f.Search(context.Background(), "anything")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestPickQuality(t *testing.T) {
	links := []providerLink{
		{url: "https://host.example/480.mp4", quality: "480p"},
		{url: "https://cdn.wixmp.com/1080.mp4", quality: "1080p"},
		{url: "https://host.example/1080.mp4", quality: "1080p"},
		{url: "https://host.example/720.mp4", quality: "720p"},
	}

	tests := []struct {
		want          string
		url, rendered string
	}{
		{"best", "https://cdn.wixmp.com/1080.mp4", "1080p"},
		{"worst", "https://host.example/480.mp4", "480p"},
		{"720p", "https://host.example/720.mp4", "720p"},
		// Unoffered exact quality falls back to best.
		{"1440p", "https://cdn.wixmp.com/1080.mp4", "1080p"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			url, quality := pickQuality(links, tt.want)
			assert.Equal(t, tt.url, url)
			assert.Equal(t, tt.rendered, quality)
		})
	}

	url, _ := pickQuality(nil, "best")
	assert.Empty(t, url)
}
