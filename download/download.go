// Package download saves resolved episode streams to disk.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/aniterm/aniterm/logger"
	"github.com/aniterm/aniterm/pipeline"
	"github.com/aniterm/aniterm/types"
)

type Downloader struct {
	resolver *pipeline.Resolver
	client   *http.Client
}

func New(resolver *pipeline.Resolver) *Downloader {
	return &Downloader{
		resolver: resolver,
		client:   http.DefaultClient,
	}
}

// Episode downloads the episode with the given label, or every episode when
// label is empty. Files land under dir as <title>-episode-<label>.mp4.
func (d *Downloader) Episode(ctx context.Context, query, label, dir string) error {
	logger.Info("searching", "query", query)
	results, err := d.resolver.Search(ctx, query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errors.Wrapf(types.ErrNotFound, "searching for %q", query)
	}
	anime := results[0]
	logger.Info("found anime", "title", anime.Title, "source", anime.Source)

	episodes, err := d.resolver.Episodes(ctx, anime)
	if err != nil {
		return err
	}
	logger.Info("episode list loaded", "count", len(episodes))

	for _, ep := range episodes {
		if label != "" && ep.Label != label {
			continue
		}
		path := filepath.Join(dir, fileName(anime.Title, ep.Label))
		if err := d.fetchOne(ctx, ep, path); err != nil {
			return errors.Wrapf(err, "downloading episode %s", ep.Label)
		}
		if label != "" {
			return nil
		}
	}
	if label != "" {
		return errors.Wrapf(types.ErrNotFound, "episode %s of %q", label, anime.Title)
	}
	return nil
}

func (d *Downloader) fetchOne(ctx context.Context, ep types.EpisodeRef, path string) error {
	stream, err := d.resolver.Resolve(ctx, ep)
	if err != nil {
		return err
	}
	logger.Info("downloading", "episode", ep.Label, "path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.URL, nil)
	if err != nil {
		return err
	}
	// Sources gate the media files behind the same headers as the player.
	if stream.UserAgent != "" {
		req.Header.Set("User-Agent", stream.UserAgent)
	}
	if stream.Referer != "" {
		req.Header.Set("Referer", stream.Referer)
	}
	for k, v := range stream.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &types.TransportError{Kind: types.TransportStatus, URL: stream.URL, Status: resp.StatusCode}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription(fmt.Sprintf("episode %s", ep.Label)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
	)
	_, err = io.Copy(io.MultiWriter(out, bar), resp.Body)
	return err
}

func fileName(title, label string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, title)
	return fmt.Sprintf("%s-episode-%s.mp4", clean, label)
}
