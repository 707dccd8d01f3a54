// Package allanime implements the AllAnime GraphQL backend.
package allanime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/aniterm/aniterm/logger"
	"github.com/aniterm/aniterm/transport"
	"github.com/aniterm/aniterm/types"
)

const (
	Name = "allanime"

	apiBase  = "https://api.allanime.day/api"
	baseSite = "https://allanime.day"
	referer  = "https://allmanga.to"
)

// Providers with direct file hosting play more reliably than the generic
// embed hosts; ties between equal resolutions break in this order.
var preferredDomains = []string{"sharepoint.com", "wixmp.com", "dropbox.com", "wetransfer.com"}

const (
	searchGQL = `query( $search: SearchInput $limit: Int $page: Int $translationType: VaildTranslationTypeEnumType $countryOrigin: VaildCountryOriginEnumType ) { shows( search: $search limit: $limit page: $page translationType: $translationType countryOrigin: $countryOrigin ) { edges { _id name englishName thumbnail availableEpisodes __typename } }}`
	episodesGQL = `query ($showId: String!) { show( _id: $showId ) { _id name availableEpisodesDetail }}`
	streamGQL   = `query ($showId: String!, $translationType: VaildTranslationTypeEnumType!, $episodeString: String!) { episode( showId: $showId translationType: $translationType episodeString: $episodeString ) { episodeString sourceUrls }}`
)

// Fetcher talks to AllAnime. Mode selects the translation ("sub", "dub" or
// "raw"), Quality the preferred resolution ("best", "worst" or e.g. "720p").
type Fetcher struct {
	client  transport.Doer
	mode    string
	quality string
}

func New(client transport.Doer, mode, quality string) *Fetcher {
	if mode == "" {
		mode = "sub"
	}
	if quality == "" {
		quality = "best"
	}
	return &Fetcher{client: client, mode: mode, quality: quality}
}

func (f *Fetcher) Name() string { return Name }

func (f *Fetcher) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	vars := searchVariables{
		Search:          searchInput{Query: query},
		Limit:           40,
		Page:            1,
		TranslationType: f.mode,
		CountryOrigin:   "ALL",
	}

	body, err := f.graphql(ctx, searchGQL, vars)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}

	results := make([]types.SearchResult, 0, len(resp.Data.Shows.Edges))
	for _, edge := range resp.Data.Shows.Edges {
		title := edge.Name
		if edge.EnglishName != "" {
			title = edge.EnglishName
		}
		results = append(results, types.SearchResult{
			Source:   Name,
			ID:       edge.ID,
			Title:    title,
			Episodes: edge.AvailableEpisodes[f.mode],
			Cover:    edge.Thumbnail,
		})
	}
	return results, nil
}

func (f *Fetcher) Episodes(ctx context.Context, animeID string) ([]types.EpisodeRef, error) {
	body, err := f.graphql(ctx, episodesGQL, map[string]string{"showId": animeID})
	if err != nil {
		return nil, err
	}

	var resp episodeListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}
	if resp.Data.Show.ID == "" {
		return nil, fmt.Errorf("show %s: %w", animeID, types.ErrNotFound)
	}

	labels, ok := resp.Data.Show.AvailableEpisodesDetail[f.mode]
	if !ok || len(labels) == 0 {
		return nil, fmt.Errorf("show %s has no %s episodes: %w", animeID, f.mode, types.ErrNotFound)
	}

	// The backend hands labels newest-first; broadcast order is ascending
	// by the numeric label ("1", "2", ... "5.5"). Stable so equal keys keep
	// their relative order and re-listing yields identical output.
	sort.SliceStable(labels, func(i, j int) bool {
		return labelValue(labels[i]) < labelValue(labels[j])
	})

	episodes := make([]types.EpisodeRef, 0, len(labels))
	for _, label := range labels {
		episodes = append(episodes, types.EpisodeRef{
			Source:  Name,
			AnimeID: animeID,
			Label:   label,
			Number:  int(labelValue(label)),
		})
	}
	return episodes, nil
}

func (f *Fetcher) Resolve(ctx context.Context, ep types.EpisodeRef) (*types.Stream, error) {
	vars := map[string]string{
		"showId":          ep.AnimeID,
		"translationType": f.mode,
		"episodeString":   ep.Label,
	}
	body, err := f.graphql(ctx, streamGQL, vars)
	if err != nil {
		return nil, err
	}

	var resp episodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}

	sources := resp.Data.Episode.SourceUrls
	if len(sources) == 0 {
		return nil, fmt.Errorf("episode %s: %w", ep.Label, types.ErrNotFound)
	}

	// Providers with higher backend priority first.
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority > sources[j].Priority
	})

	var lastErr error
	for _, src := range sources {
		u := decodeProviderURL(src.SourceURL)
		if !strings.HasPrefix(u, "http") {
			continue
		}

		if !strings.Contains(u, "clock.json") {
			// Already a direct file URL.
			return f.stream(u, ""), nil
		}

		links, err := f.providerLinks(ctx, u)
		if err != nil {
			logger.Debug("provider fetch failed", "source", src.SourceName, "err", err)
			lastErr = err
			continue
		}
		if link, quality := pickQuality(links, f.quality); link != "" {
			return f.stream(link, quality), nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &types.ParseError{Source: Name, Err: errors.New("no playable source URL")}
}

// providerLinks fetches one provider's clock.json and returns its links.
func (f *Fetcher) providerLinks(ctx context.Context, u string) ([]providerLink, error) {
	resp, err := f.client.Fetch(ctx, transport.Request{
		URL:    u,
		Header: map[string]string{"Referer": referer},
	})
	if err != nil {
		return nil, err
	}

	var clock clockResponse
	if err := json.Unmarshal(resp.Body, &clock); err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}

	links := make([]providerLink, 0, len(clock.Links))
	for _, l := range clock.Links {
		if l.Link == "" {
			continue
		}
		quality := l.ResolutionStr
		if quality == "" && l.HLS {
			quality = "hls"
		}
		links = append(links, providerLink{url: l.Link, quality: quality})
	}
	return links, nil
}

type providerLink struct {
	url     string
	quality string
}

// pickQuality selects a link for the requested quality. "best" and "worst"
// order by numeric resolution; an exact quality falls back to best when the
// backend doesn't offer it. Preferred file hosts win ties.
func pickQuality(links []providerLink, want string) (string, string) {
	if len(links) == 0 {
		return "", ""
	}

	if want != "best" && want != "worst" {
		for _, l := range links {
			if l.quality == want {
				return l.url, l.quality
			}
		}
	}

	sorted := make([]providerLink, len(links))
	copy(sorted, links)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := resolutionValue(sorted[i].quality), resolutionValue(sorted[j].quality)
		if ri != rj {
			if want == "worst" {
				return ri < rj
			}
			return ri > rj
		}
		return domainRank(sorted[i].url) < domainRank(sorted[j].url)
	})

	return sorted[0].url, sorted[0].quality
}

func domainRank(u string) int {
	for i, d := range preferredDomains {
		if strings.Contains(u, d) {
			return i
		}
	}
	return len(preferredDomains)
}

func resolutionValue(quality string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(quality, "p"))
	if err != nil {
		return 0
	}
	return n
}

func labelValue(label string) float64 {
	v, err := strconv.ParseFloat(label, 64)
	if err != nil {
		return 0
	}
	return v
}

func (f *Fetcher) stream(link, quality string) *types.Stream {
	return &types.Stream{
		URL:       link,
		UserAgent: transport.UserAgent,
		Referer:   referer,
		Quality:   quality,
	}
}

// graphql issues one GraphQL query over GET with the query and variables as
// URL parameters, the shape this API expects.
func (f *Fetcher) graphql(ctx context.Context, query string, variables interface{}) ([]byte, error) {
	varsJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}

	q := url.Values{}
	q.Set("variables", string(varsJSON))
	q.Set("query", query)

	resp, err := f.client.Fetch(ctx, transport.Request{
		URL:    apiBase + "?" + q.Encode(),
		Header: map[string]string{"Referer": referer},
	})
	if err != nil {
		var te *types.TransportError
		if errors.As(err, &te) && te.Status == 404 {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}
