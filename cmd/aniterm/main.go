package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/aniterm/aniterm/api"
	"github.com/aniterm/aniterm/config"
	"github.com/aniterm/aniterm/download"
	"github.com/aniterm/aniterm/fetcher"
	"github.com/aniterm/aniterm/fetcher/allanime"
	"github.com/aniterm/aniterm/fetcher/animefire"
	"github.com/aniterm/aniterm/gui"
	"github.com/aniterm/aniterm/logger"
	"github.com/aniterm/aniterm/pipeline"
	"github.com/aniterm/aniterm/player"
	"github.com/aniterm/aniterm/transport"
	"github.com/aniterm/aniterm/types"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "aniterm",
		Usage:   "search, browse and play anime from the terminal",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Usage: "translation mode: sub, dub or raw"},
			&cli.StringFlag{Name: "quality", Usage: "preferred quality: best, worst or an exact label like 1080"},
			&cli.StringFlag{Name: "search-mode", Usage: "first or aggregate"},
			&cli.StringSliceFlag{Name: "source", Usage: "limit to the named source(s)"},
			&cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "print search results and exit",
				ArgsUsage: "<query>",
				Action:    runSearch,
			},
			{
				Name:      "episodes",
				Usage:     "print the episode list for the first search hit",
				ArgsUsage: "<query>",
				Action:    runEpisodes,
			},
			{
				Name:      "get",
				Usage:     "resolve a playable stream URL without launching the player",
				ArgsUsage: "<query> <episode>",
				Action:    runGet,
			},
			{
				Name:      "play",
				Usage:     "resolve an episode and hand it to the player",
				ArgsUsage: "<query> <episode>",
				Action:    runPlay,
			},
			{
				Name:      "download",
				Usage:     "download one episode, or every episode when none is given",
				ArgsUsage: "<query> [episode]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: ".", Usage: "output directory"},
				},
				Action: runDownload,
			},
			{
				Name:  "serve",
				Usage: "expose the pipeline as an HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: "127.0.0.1:7523", Usage: "listen address"},
				},
				Action: runServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("aniterm: %v", err)
		os.Exit(1)
	}
}

// setup loads config, applies flag overrides and builds the pipeline.
func setup(c *cli.Context) (*config.Config, *pipeline.Resolver, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("mode") {
		cfg.Mode = c.String("mode")
	}
	if c.IsSet("quality") {
		cfg.Quality = c.String("quality")
	}
	if c.IsSet("search-mode") {
		cfg.SearchMode = c.String("search-mode")
	}
	if c.IsSet("source") {
		cfg.Sources = c.StringSlice("source")
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Debug)

	client, err := transport.New(time.Duration(cfg.TimeoutSeconds) * time.Second)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range []fetcher.Fetcher{
		allanime.New(client, cfg.Mode, cfg.Quality),
		animefire.New(client, cfg.Quality),
	} {
		if err := fetcher.Register(f); err != nil {
			return nil, nil, err
		}
	}

	var sources []fetcher.Fetcher
	for _, name := range cfg.Sources {
		f, err := fetcher.Get(name)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, f)
	}

	resolver, err := pipeline.New(sources, pipeline.Options{
		Mode:    pipeline.SearchMode(cfg.SearchMode),
		Retries: cfg.Retries,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, resolver, nil
}

func runTUI(c *cli.Context) error {
	cfg, resolver, err := setup(c)
	if err != nil {
		return err
	}
	launcher := player.NewLauncher(cfg.Player)
	p := tea.NewProgram(gui.NewModel(resolver, launcher, cfg.History))
	_, err = p.Run()
	return err
}

func runSearch(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return cli.Exit("usage: aniterm search <query>", 2)
	}
	_, resolver, err := setup(c)
	if err != nil {
		return err
	}
	results, err := resolver.Search(context.Background(), query)
	if err != nil {
		return err
	}
	for _, r := range results {
		color.New(color.Bold).Printf("%s", r.Title)
		fmt.Printf("  %s  %d episodes\n", color.CyanString("[%s]", r.Source), r.Episodes)
	}
	return nil
}

func runEpisodes(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return cli.Exit("usage: aniterm episodes <query>", 2)
	}
	_, resolver, err := setup(c)
	if err != nil {
		return err
	}
	anime, episodes, err := firstHit(resolver, query)
	if err != nil {
		return err
	}
	color.New(color.Bold).Printf("%s [%s]\n", anime.Title, anime.Source)
	for _, ep := range episodes {
		fmt.Println(ep.String())
	}
	return nil
}

func runGet(c *cli.Context) error {
	_, stream, _, err := resolveArgs(c)
	if err != nil {
		return err
	}
	fmt.Println(stream.URL)
	if stream.Referer != "" {
		fmt.Printf("referer: %s\n", stream.Referer)
	}
	if stream.Quality != "" {
		fmt.Printf("quality: %s\n", stream.Quality)
	}
	return nil
}

func runPlay(c *cli.Context) error {
	cfg, stream, title, err := resolveArgs(c)
	if err != nil {
		return err
	}
	pid, err := player.NewLauncher(cfg.Player).Launch(stream, title)
	if err != nil {
		return err
	}
	color.Green("player running (pid %d)", pid)
	return nil
}

func runDownload(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return cli.Exit("usage: aniterm download <query> [episode]", 2)
	}
	_, resolver, err := setup(c)
	if err != nil {
		return err
	}
	label := c.Args().Get(1)
	return download.New(resolver).Episode(context.Background(), query, label, c.String("dir"))
}

func runServe(c *cli.Context) error {
	_, resolver, err := setup(c)
	if err != nil {
		return err
	}
	return api.Serve(api.ServerConfig{
		Addr:            c.String("addr"),
		ShowStartBanner: true,
	}, resolver)
}

// resolveArgs searches, picks the first hit and resolves the named episode.
func resolveArgs(c *cli.Context) (*config.Config, *types.Stream, string, error) {
	query, label := c.Args().First(), c.Args().Get(1)
	if query == "" || label == "" {
		return nil, nil, "", cli.Exit("usage: aniterm "+c.Command.Name+" <query> <episode>", 2)
	}
	cfg, resolver, err := setup(c)
	if err != nil {
		return nil, nil, "", err
	}
	anime, episodes, err := firstHit(resolver, query)
	if err != nil {
		return nil, nil, "", err
	}
	for _, ep := range episodes {
		if ep.Label != label {
			continue
		}
		stream, err := resolver.Resolve(context.Background(), ep)
		if err != nil {
			return nil, nil, "", err
		}
		return cfg, stream, fmt.Sprintf("%s - episode %s", anime.Title, ep.Label), nil
	}
	return nil, nil, "", fmt.Errorf("episode %s of %q: %w", label, anime.Title, types.ErrNotFound)
}

func firstHit(resolver *pipeline.Resolver, query string) (types.SearchResult, []types.EpisodeRef, error) {
	ctx := context.Background()
	results, err := resolver.Search(ctx, query)
	if err != nil {
		return types.SearchResult{}, nil, err
	}
	if len(results) == 0 {
		return types.SearchResult{}, nil, fmt.Errorf("searching for %q: %w", query, types.ErrNotFound)
	}
	episodes, err := resolver.Episodes(ctx, results[0])
	if err != nil {
		return types.SearchResult{}, nil, err
	}
	return results[0], episodes, nil
}
