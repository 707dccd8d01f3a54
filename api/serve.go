package api

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/aniterm/aniterm/logger"
	"github.com/aniterm/aniterm/pipeline"
)

type ServerConfig struct {
	// Addr is the TCP address the HTTP server listens on, eg. "127.0.0.1:7523".
	Addr string

	// AllowedOrigins is an optional list of CORS origins (defaults to "*").
	AllowedOrigins []string

	// ShutdownGrace bounds how long in-flight requests get after SIGINT.
	ShutdownGrace time.Duration

	// ShowStartBanner prints the listening addresses on startup.
	ShowStartBanner bool
}

// Serve blocks until the server stops.
func Serve(cfg ServerConfig, resolver *pipeline.Resolver) error {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}

	app := newApp()
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: strings.Join([]string{http.MethodGet, http.MethodHead}, ","),
	}))
	routes(app, resolver)

	baseCtx, cancelBaseCtx := context.WithCancel(context.Background())
	defer cancelBaseCtx()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adaptor.FiberApp(app),
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}

	if cfg.ShowStartBanner {
		bold := color.New(color.Bold).Add(color.FgGreen)
		bold.Printf("Server started at %s\n", color.CyanString("http://%s", cfg.Addr))
		regular := color.New()
		regular.Printf("├─ Search API:   %s\n", color.CyanString("http://%s/api/search?q=", cfg.Addr))
		regular.Printf("├─ Episodes API: %s\n", color.CyanString("http://%s/api/anime/:source/:animeId/episodes", cfg.Addr))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		logger.Info("shutting down", "grace", cfg.ShutdownGrace)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
