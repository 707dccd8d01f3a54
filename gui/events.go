package gui

import "github.com/aniterm/aniterm/types"

// Completion messages posted by background pipeline calls. Each carries the
// generation of the request that produced it; the session rejects any whose
// generation has been superseded.

type searchDoneMsg struct {
	gen     uint64
	results []types.SearchResult
	err     error
}

type episodesDoneMsg struct {
	gen      uint64
	episodes []types.EpisodeRef
	err      error
}

type streamDoneMsg struct {
	gen    uint64
	stream *types.Stream
	err    error
}

type launchDoneMsg struct {
	pid int
	err error
}
