// Package session models the browsing state machine. It is pure: no I/O, no
// goroutines. The owner starts a request, gets back a generation number, and
// later applies the outcome together with that generation; an apply whose
// generation no longer matches is rejected with ErrStale, which is how late
// responses from superseded requests are kept out of newer UI state.
package session

import (
	"errors"
	"fmt"

	"github.com/aniterm/aniterm/types"
)

// Stage is where the user currently is.
type Stage int

const (
	Idle Stage = iota
	Searching
	Results
	EpisodeList
	Resolving
	ReadyToPlay
	Error
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Results:
		return "results"
	case EpisodeList:
		return "episodes"
	case Resolving:
		return "resolving"
	case ReadyToPlay:
		return "playing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Op identifies which request failed, so Retry can re-issue it.
type Op int

const (
	OpNone Op = iota
	OpSearch
	OpEpisodes
	OpResolve
)

// ErrStale rejects an apply for a request that has been superseded or
// cancelled. Callers drop the result; this is the designed outcome, not a
// failure to report.
var ErrStale = errors.New("stale result discarded")

// TransitionError reports an input that is not legal in the current stage.
type TransitionError struct {
	Stage Stage
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Event, e.Stage)
}

// Session is the single mutable aggregate of one program run. It must only
// be touched from one goroutine; background work communicates through the
// Apply methods on that same goroutine.
type Session struct {
	stage Stage
	gen   uint64

	query    string
	results  []types.SearchResult
	selected *types.SearchResult
	episodes []types.EpisodeRef
	episode  *types.EpisodeRef
	stream   *types.Stream

	episodesLoaded bool

	err       error
	failedOp  Op
	recoverTo Stage
}

func New() *Session {
	return &Session{stage: Idle}
}

func (s *Session) Stage() Stage                  { return s.stage }
func (s *Session) Generation() uint64            { return s.gen }
func (s *Session) Query() string                 { return s.query }
func (s *Session) Results() []types.SearchResult { return s.results }
func (s *Session) Episodes() []types.EpisodeRef  { return s.episodes }
func (s *Session) EpisodesLoaded() bool          { return s.episodesLoaded }
func (s *Session) Stream() *types.Stream         { return s.stream }
func (s *Session) Err() error                    { return s.err }

// Selected returns the chosen search result, or nil before one is chosen.
func (s *Session) Selected() *types.SearchResult { return s.selected }

// Episode returns the chosen episode, or nil before one is chosen.
func (s *Session) Episode() *types.EpisodeRef { return s.episode }

// bump invalidates every outstanding request. At most one request is ever
// considered live: the one started with the current generation.
func (s *Session) bump() uint64 {
	s.gen++
	return s.gen
}

// StartSearch begins a new search. Legal from Idle and from Searching (a new
// query supersedes the in-flight one).
func (s *Session) StartSearch(query string) (uint64, error) {
	if s.stage != Idle && s.stage != Searching {
		return 0, &TransitionError{Stage: s.stage, Event: "search"}
	}
	s.query = query
	s.results = nil
	s.selected = nil
	s.stage = Searching
	return s.bump(), nil
}

// ApplySearch consumes a search outcome for the given generation.
func (s *Session) ApplySearch(gen uint64, results []types.SearchResult, err error) error {
	if gen != s.gen || s.stage != Searching {
		return ErrStale
	}
	if err != nil {
		s.fail(OpSearch, err, Idle)
		return nil
	}
	s.results = results
	s.stage = Results
	return nil
}

// SelectResult picks a search result and begins loading its episode list.
func (s *Session) SelectResult(index int) (uint64, error) {
	if s.stage != Results {
		return 0, &TransitionError{Stage: s.stage, Event: "select result"}
	}
	if index < 0 || index >= len(s.results) {
		return 0, fmt.Errorf("result index %d out of range", index)
	}
	r := s.results[index]
	s.selected = &r
	s.episodes = nil
	s.episode = nil
	s.episodesLoaded = false
	s.stage = EpisodeList
	return s.bump(), nil
}

// ApplyEpisodes consumes an episode-list outcome for the given generation.
func (s *Session) ApplyEpisodes(gen uint64, episodes []types.EpisodeRef, err error) error {
	if gen != s.gen || s.stage != EpisodeList || s.episodesLoaded {
		return ErrStale
	}
	if err != nil {
		s.fail(OpEpisodes, err, Results)
		return nil
	}
	s.episodes = episodes
	s.episodesLoaded = true
	return nil
}

// SelectEpisode picks an episode and begins stream resolution.
func (s *Session) SelectEpisode(index int) (uint64, error) {
	if s.stage != EpisodeList || !s.episodesLoaded {
		return 0, &TransitionError{Stage: s.stage, Event: "select episode"}
	}
	if index < 0 || index >= len(s.episodes) {
		return 0, fmt.Errorf("episode index %d out of range", index)
	}
	ep := s.episodes[index]
	s.episode = &ep
	s.stream = nil
	s.stage = Resolving
	return s.bump(), nil
}

// ApplyStream consumes a stream-resolution outcome for the given generation.
func (s *Session) ApplyStream(gen uint64, stream *types.Stream, err error) error {
	if gen != s.gen || s.stage != Resolving {
		return ErrStale
	}
	if err != nil {
		s.fail(OpResolve, err, EpisodeList)
		return nil
	}
	s.stream = stream
	s.stage = ReadyToPlay
	return nil
}

// LaunchFailed records a player spawn failure. Fatal to the playback attempt
// only: the session returns to the loaded episode list.
func (s *Session) LaunchFailed(err error) error {
	if s.stage != ReadyToPlay {
		return &TransitionError{Stage: s.stage, Event: "fail launch"}
	}
	s.stream = nil
	s.err = err
	s.stage = EpisodeList
	return nil
}

// Back leaves the current stage. Leaving a loading stage supersedes its
// outstanding request; a result that still arrives is dropped by the
// generation check.
func (s *Session) Back() error {
	switch s.stage {
	case Searching:
		s.stage = Idle
		s.bump()
	case Results:
		s.results = nil
		s.stage = Idle
	case EpisodeList:
		if !s.episodesLoaded {
			s.bump()
		}
		s.selected = nil
		s.episodes = nil
		s.episodesLoaded = false
		s.stage = Results
	case Resolving:
		s.episode = nil
		s.stage = EpisodeList
		s.bump()
	case ReadyToPlay:
		s.stream = nil
		s.stage = EpisodeList
	case Error:
		s.stage = s.recoverTo
		s.err = nil
		s.failedOp = OpNone
	default:
		return &TransitionError{Stage: s.stage, Event: "go back"}
	}
	return nil
}

// Retry re-arms the failed request from the Error stage. The returned Op
// tells the caller which call to issue again, with the new generation.
func (s *Session) Retry() (Op, uint64, error) {
	if s.stage != Error {
		return OpNone, 0, &TransitionError{Stage: s.stage, Event: "retry"}
	}
	op := s.failedOp
	s.err = nil
	s.failedOp = OpNone

	switch op {
	case OpSearch:
		s.stage = Searching
	case OpEpisodes:
		s.stage = EpisodeList
		s.episodesLoaded = false
	case OpResolve:
		s.stage = Resolving
	default:
		return OpNone, 0, &TransitionError{Stage: Error, Event: "retry unknown operation"}
	}
	return op, s.bump(), nil
}

func (s *Session) fail(op Op, err error, recoverTo Stage) {
	s.err = err
	s.failedOp = op
	s.recoverTo = recoverTo
	s.stage = Error
}
