// Package pipeline orchestrates the configured sources: search fan-out,
// retry of transient failures, and routing episode and stream lookups back
// to the source that produced the result.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/aniterm/aniterm/fetcher"
	"github.com/aniterm/aniterm/logger"
	"github.com/aniterm/aniterm/types"
)

// SearchMode decides how multiple sources combine during search.
type SearchMode string

const (
	// FirstSuccess returns the first source that yields a non-empty result
	// set, in configured order.
	FirstSuccess SearchMode = "first"
	// Aggregate unions every source's results, tagged by source.
	Aggregate SearchMode = "aggregate"
)

// Options tune a Resolver. Zero values fall back to the defaults below.
type Options struct {
	Mode    SearchMode
	Retries int
	Backoff time.Duration
}

const (
	defaultRetries = 2
	defaultBackoff = 300 * time.Millisecond
)

// Resolver is the uniform front the UI talks to. It is stateless besides
// configuration and safe for concurrent calls; cancellation is the caller's
// context.
type Resolver struct {
	sources []fetcher.Fetcher
	mode    SearchMode
	retries int
	backoff time.Duration
}

// New builds a Resolver over sources in the given priority order.
func New(sources []fetcher.Fetcher, opts Options) (*Resolver, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources configured")
	}
	if opts.Mode == "" {
		opts.Mode = FirstSuccess
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &Resolver{
		sources: sources,
		mode:    opts.Mode,
		retries: opts.Retries,
		backoff: opts.Backoff,
	}, nil
}

// Search queries the configured sources. In first-success mode sources are
// tried in order and the first non-empty result set wins; parse failures and
// misses fall through to the next source. In aggregate mode all sources are
// queried and the union returned, with duplicate (source, id) pairs dropped.
func (r *Resolver) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	var lastErr error

	var merged []types.SearchResult
	seen := make(map[string]struct{})

	for _, src := range r.sources {
		results, err := searchOne(ctx, r, src, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("source search failed", "source", src.Name(), "err", err)
			lastErr = err
			continue
		}
		if len(results) == 0 {
			continue
		}

		if r.mode == FirstSuccess {
			return results, nil
		}
		for _, res := range results {
			if _, dup := seen[res.Key()]; dup {
				continue
			}
			seen[res.Key()] = struct{}{}
			merged = append(merged, res)
		}
	}

	if len(merged) > 0 {
		return merged, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.Wrapf(types.ErrNotFound, "no results for %q", query)
}

func searchOne(ctx context.Context, r *Resolver, src fetcher.Fetcher, query string) ([]types.SearchResult, error) {
	var results []types.SearchResult
	err := r.withRetry(ctx, func() error {
		var err error
		results, err = src.Search(ctx, query)
		return err
	})
	return results, err
}

// Episodes lists episodes for a result, always through the source that
// produced it.
func (r *Resolver) Episodes(ctx context.Context, result types.SearchResult) ([]types.EpisodeRef, error) {
	src, err := r.source(result.Source)
	if err != nil {
		return nil, err
	}

	var episodes []types.EpisodeRef
	err = r.withRetry(ctx, func() error {
		var err error
		episodes, err = src.Episodes(ctx, result.ID)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing episodes of %s", result.Title)
	}
	return episodes, nil
}

// Resolve produces a stream descriptor for an episode via its source.
func (r *Resolver) Resolve(ctx context.Context, ep types.EpisodeRef) (*types.Stream, error) {
	src, err := r.source(ep.Source)
	if err != nil {
		return nil, err
	}

	var stream *types.Stream
	err = r.withRetry(ctx, func() error {
		var err error
		stream, err = src.Resolve(ctx, ep)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", ep)
	}
	return stream, nil
}

func (r *Resolver) source(name string) (fetcher.Fetcher, error) {
	for _, src := range r.sources {
		if src.Name() == name {
			return src, nil
		}
	}
	return nil, errors.Errorf("source %q not configured", name)
}

// withRetry runs op, retrying transient transport failures up to the
// configured bound with a short backoff. Anything else propagates at once.
func (r *Resolver) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil || !types.Transient(err) || attempt >= r.retries {
			return err
		}

		logger.Debug("transient failure, retrying", "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff):
		}
	}
}
