package animefire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniterm/aniterm/transport"
	"github.com/aniterm/aniterm/types"
)

type fakeDoer struct {
	handler func(req transport.Request) (*transport.Response, error)
	calls   int
}

func (d *fakeDoer) Fetch(_ context.Context, req transport.Request) (*transport.Response, error) {
	d.calls++
	return d.handler(req)
}

func respond(body string) func(transport.Request) (*transport.Response, error) {
	return func(transport.Request) (*transport.Response, error) {
		return &transport.Response{Status: 200, Body: []byte(body)}, nil
	}
}

const searchHTML = `<html><body>
<div class="row ml-1 mr-1">
	<a href="/animes/one-piece-todos-os-episodios">One Piece</a>
	<a href="/animes/one-piece-filme-1">One Piece: O Filme</a>
</div>
</body></html>`

const cardSearchHTML = `<html><body>
<div class="card_ani">
	<div class="div_img"><img src="/img/op.webp"></div>
	<div class="ani_name"><a href="/animes/one-piece-todos-os-episodios">One Piece</a></div>
</div>
</body></html>`

const episodesHTML = `<html><body>
<a class="lEp epT divNumEp smallbox px-2 mx-1 text-left d-flex" href="/animes/one-piece/3">Episódio 3</a>
<a class="lEp epT divNumEp smallbox px-2 mx-1 text-left d-flex" href="/animes/one-piece/1">Episódio 1</a>
<a class="lEp epT divNumEp smallbox px-2 mx-1 text-left d-flex" href="/animes/one-piece/2">Episódio 2</a>
</body></html>`

func TestSearchParsesRowLayout(t *testing.T) {
	doer := &fakeDoer{handler: respond(searchHTML)}
	f := New(doer, "best")

	results, err := f.Search(context.Background(), "one piece")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "One Piece", results[0].Title)
	assert.Equal(t, baseURL+"/animes/one-piece-todos-os-episodios", results[0].ID)
	assert.Equal(t, Name, results[0].Source)
}

func TestSearchFallsBackToCardLayout(t *testing.T) {
	doer := &fakeDoer{handler: respond(cardSearchHTML)}
	f := New(doer, "best")

	results, err := f.Search(context.Background(), "one piece")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "One Piece", results[0].Title)
	assert.Equal(t, baseURL+"/img/op.webp", results[0].Cover)
}

func TestSearchIsCached(t *testing.T) {
	doer := &fakeDoer{handler: respond(searchHTML)}
	f := New(doer, "best")

	_, err := f.Search(context.Background(), "one piece")
	require.NoError(t, err)
	_, err = f.Search(context.Background(), "one piece")
	require.NoError(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestEpisodesSortedByNumber(t *testing.T) {
	doer := &fakeDoer{handler: respond(episodesHTML)}
	f := New(doer, "best")

	episodes, err := f.Episodes(context.Background(), baseURL+"/animes/one-piece")
	require.NoError(t, err)
	require.Len(t, episodes, 3)

	assert.Equal(t, []int{1, 2, 3}, []int{episodes[0].Number, episodes[1].Number, episodes[2].Number})
	assert.Equal(t, "Episódio 1", episodes[0].Label)
	assert.Equal(t, baseURL+"/animes/one-piece/1", episodes[0].URL)
}

func TestEpisodesEmptyPageIsNotFound(t *testing.T) {
	doer := &fakeDoer{handler: respond(`<html><body></body></html>`)}
	f := New(doer, "best")

	_, err := f.Episodes(context.Background(), baseURL+"/animes/ghost")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestResolveManifestPicksQuality(t *testing.T) {
	pageHTML := `<html><body><video data-video-src="/video/12345"></video></body></html>`
	manifest := `{"data": [
		{"src": "https://cdn.animefire.plus/sd.mp4", "label": "480p"},
		{"src": "https://cdn.animefire.plus/hd.mp4", "label": "720p"}
	]}`

	tests := []struct {
		quality string
		wantURL string
	}{
		{"best", "https://cdn.animefire.plus/hd.mp4"},
		{"worst", "https://cdn.animefire.plus/sd.mp4"},
		{"480p", "https://cdn.animefire.plus/sd.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			doer := &fakeDoer{}
			doer.handler = func(req transport.Request) (*transport.Response, error) {
				if req.URL == baseURL+"/video/12345" {
					return &transport.Response{Status: 200, Body: []byte(manifest)}, nil
				}
				return &transport.Response{Status: 200, Body: []byte(pageHTML)}, nil
			}
			f := New(doer, tt.quality)

			stream, err := f.Resolve(context.Background(), types.EpisodeRef{
				Source: Name, URL: baseURL + "/animes/one-piece/1",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, stream.URL)
			assert.Equal(t, baseURL, stream.Referer)
		})
	}
}

func TestResolveBloggerFallback(t *testing.T) {
	page := `<html><body>
<iframe src="about:blank"></iframe>
<script>player("https://www.blogger.com/video.g?token=AD6v5dtoken_x-1")</script>
</body></html>`
	doer := &fakeDoer{handler: respond(page)}
	f := New(doer, "best")

	stream, err := f.Resolve(context.Background(), types.EpisodeRef{URL: baseURL + "/old/1"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.blogger.com/video.g?token=AD6v5dtoken_x-1", stream.URL)
}

func TestResolveNoVideoSource(t *testing.T) {
	doer := &fakeDoer{handler: respond(`<html><body><p>nada</p></body></html>`)}
	f := New(doer, "best")

	_, err := f.Resolve(context.Background(), types.EpisodeRef{URL: baseURL + "/x/1"})
	var pe *types.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestEpisodeNumber(t *testing.T) {
	assert.Equal(t, 12, episodeNumber("Episódio 12"))
	assert.Equal(t, 1, episodeNumber("Filme"))
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, baseURL+"/a/b", absoluteURL("/a/b"))
	assert.Equal(t, "https://x/y", absoluteURL("https://x/y"))
	assert.Equal(t, baseURL+"/rel", absoluteURL("rel"))
	assert.Empty(t, absoluteURL(""))
}
