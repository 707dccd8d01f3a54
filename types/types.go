package types

import "fmt"

// SearchResult is a single title returned by a source. Two sources may emit
// colliding raw IDs, so identity is always the (Source, ID) pair.
type SearchResult struct {
	Source   string `json:"source"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Episodes int    `json:"episodes"`
	Year     string `json:"year,omitempty"`
	Cover    string `json:"cover,omitempty"`
}

// Key returns the identity of the result across sources.
func (r SearchResult) Key() string {
	return r.Source + "/" + r.ID
}

// EpisodeRef points at one episode of a title. Label is the episode string
// exactly as the backend names it ("1", "5.5"); Number is the parsed numeric
// part used for display.
type EpisodeRef struct {
	Source  string `json:"source"`
	AnimeID string `json:"animeId"`
	Label   string `json:"label"`
	Number  int    `json:"number"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
}

func (e EpisodeRef) String() string {
	if e.Title != "" {
		return fmt.Sprintf("episode %s: %s", e.Label, e.Title)
	}
	return "episode " + e.Label
}

// Stream is a resolved, playable stream plus the request fingerprint the
// backend demands. It is handed to the launcher exactly once and never
// cached; these URLs are usually session-bound and expire quickly.
type Stream struct {
	URL       string            `json:"url"`
	UserAgent string            `json:"userAgent,omitempty"`
	Referer   string            `json:"referer,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Quality   string            `json:"quality,omitempty"`
}
