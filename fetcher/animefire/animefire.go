// Package animefire implements the AnimeFire HTML backend.
package animefire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	cache "github.com/patrickmn/go-cache"

	"github.com/aniterm/aniterm/transport"
	"github.com/aniterm/aniterm/types"
)

const (
	Name = "animefire"

	baseURL = "https://animefire.plus"
)

// Fetcher scrapes AnimeFire pages. Repeated listings of the same title are
// served from a short-lived cache so paging through the UI doesn't hammer
// the site.
type Fetcher struct {
	client  transport.Doer
	quality string
	cache   *cache.Cache
}

func New(client transport.Doer, quality string) *Fetcher {
	if quality == "" {
		quality = "best"
	}
	return &Fetcher{
		client:  client,
		quality: quality,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (f *Fetcher) Name() string { return Name }

func (f *Fetcher) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	cacheKey := "search:" + query
	if hit, found := f.cache.Get(cacheKey); found {
		return hit.([]types.SearchResult), nil
	}

	searchURL := fmt.Sprintf("%s/pesquisar/%s", baseURL, url.PathEscape(query))
	doc, err := f.document(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var results []types.SearchResult
	doc.Find(".row.ml-1.mr-1 a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		title := strings.TrimSpace(s.Text())
		if !ok || title == "" {
			return
		}
		results = append(results, types.SearchResult{
			Source: Name,
			ID:     absoluteURL(href),
			Title:  title,
		})
	})

	// Newer page layout nests the title inside a card.
	if len(results) == 0 {
		doc.Find(".card_ani").Each(func(_ int, s *goquery.Selection) {
			link := s.Find(".ani_name a")
			href, ok := link.Attr("href")
			title := strings.TrimSpace(link.Text())
			if !ok || title == "" {
				return
			}
			cover, _ := s.Find(".div_img img").Attr("src")
			results = append(results, types.SearchResult{
				Source: Name,
				ID:     absoluteURL(href),
				Title:  title,
				Cover:  absoluteURL(cover),
			})
		})
	}

	f.cache.Set(cacheKey, results, time.Hour)
	return results, nil
}

func (f *Fetcher) Episodes(ctx context.Context, animeID string) ([]types.EpisodeRef, error) {
	cacheKey := "episodes:" + animeID
	if hit, found := f.cache.Get(cacheKey); found {
		return hit.([]types.EpisodeRef), nil
	}

	doc, err := f.document(ctx, animeID)
	if err != nil {
		return nil, err
	}

	var episodes []types.EpisodeRef
	doc.Find("a.lEp.epT.divNumEp.smallbox.px-2.mx-1.text-left.d-flex").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		label := strings.TrimSpace(s.Text())
		episodes = append(episodes, types.EpisodeRef{
			Source:  Name,
			AnimeID: animeID,
			Label:   label,
			Number:  episodeNumber(label),
			URL:     absoluteURL(href),
		})
	})

	if len(episodes) == 0 {
		return nil, fmt.Errorf("no episodes at %s: %w", animeID, types.ErrNotFound)
	}

	// Page order is presentation order; broadcast order is by number.
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Number < episodes[j].Number
	})

	f.cache.Set(cacheKey, episodes, 5*time.Minute)
	return episodes, nil
}

var bloggerRe = regexp.MustCompile(`https://www\.blogger\.com/video\.g\?token=[A-Za-z0-9_-]+`)

func (f *Fetcher) Resolve(ctx context.Context, ep types.EpisodeRef) (*types.Stream, error) {
	resp, err := f.client.Fetch(ctx, transport.Request{URL: ep.URL})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}

	videoSrc, _ := doc.Find("video").Attr("data-video-src")
	if videoSrc == "" {
		videoSrc, _ = doc.Find("div").Attr("data-video-src")
	}
	if videoSrc == "" {
		// Older episodes embed a blogger player instead.
		if m := bloggerRe.FindString(string(resp.Body)); m != "" {
			return &types.Stream{URL: m, UserAgent: transport.UserAgent, Referer: baseURL}, nil
		}
		return nil, &types.ParseError{Source: Name, Err: errors.New("no video source element")}
	}

	return f.resolveQualities(ctx, videoSrc)
}

// resolveQualities fetches the quality manifest behind data-video-src and
// picks one rendition.
func (f *Fetcher) resolveQualities(ctx context.Context, videoSrc string) (*types.Stream, error) {
	resp, err := f.client.Fetch(ctx, transport.Request{
		URL:    absoluteURL(videoSrc),
		Header: map[string]string{"Referer": baseURL},
	})
	if err != nil {
		return nil, err
	}

	var manifest struct {
		Data []struct {
			Src   string `json:"src"`
			Label string `json:"label"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &manifest); err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}
	if len(manifest.Data) == 0 {
		return nil, &types.ParseError{Source: Name, Err: errors.New("empty quality manifest")}
	}

	best := manifest.Data[0]
	bestValue := -1
	for _, v := range manifest.Data {
		if f.quality != "best" && f.quality != "worst" && v.Label == f.quality {
			best = v
			break
		}
		value, _ := strconv.Atoi(strings.TrimSuffix(v.Label, "p"))
		if bestValue == -1 ||
			(f.quality == "worst" && value < bestValue) ||
			(f.quality != "worst" && value > bestValue) {
			best, bestValue = v, value
		}
	}

	return &types.Stream{
		URL:       best.Src,
		UserAgent: transport.UserAgent,
		Referer:   baseURL,
		Quality:   best.Label,
	}, nil
}

func (f *Fetcher) document(ctx context.Context, u string) (*goquery.Document, error) {
	resp, err := f.client.Fetch(ctx, transport.Request{URL: u})
	if err != nil {
		var te *types.TransportError
		if errors.As(err, &te) && te.Status == 404 {
			return nil, fmt.Errorf("%s: %w", u, types.ErrNotFound)
		}
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		return nil, &types.ParseError{Source: Name, Err: err}
	}
	return doc, nil
}

var numRe = regexp.MustCompile(`\d+`)

func episodeNumber(label string) int {
	n, err := strconv.Atoi(numRe.FindString(label))
	if err != nil {
		return 1
	}
	return n
}

func absoluteURL(ref string) string {
	switch {
	case ref == "" || strings.HasPrefix(ref, "http"):
		return ref
	case strings.HasPrefix(ref, "/"):
		return baseURL + ref
	default:
		return baseURL + "/" + ref
	}
}
