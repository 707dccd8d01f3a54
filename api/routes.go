package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aniterm/aniterm/pipeline"
	"github.com/aniterm/aniterm/types"
)

func routes(app *fiber.App, resolver *pipeline.Resolver) {
	app.Get("/api/search", func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing query parameter q")
		}
		results, err := resolver.Search(c.UserContext(), query)
		if err != nil {
			return err
		}
		return c.JSON(results)
	})

	app.Get("/api/anime/:source/:animeId/episodes", func(c *fiber.Ctx) error {
		episodes, err := resolver.Episodes(c.UserContext(), types.SearchResult{
			Source: c.Params("source"),
			ID:     c.Params("animeId"),
		})
		if err != nil {
			return err
		}
		return c.JSON(episodes)
	})

	app.Get("/api/anime/:source/:animeId/episodes/:label/stream", func(c *fiber.Ctx) error {
		source, animeID := c.Params("source"), c.Params("animeId")
		label := c.Params("label")

		episodes, err := resolver.Episodes(c.UserContext(), types.SearchResult{
			Source: source,
			ID:     animeID,
		})
		if err != nil {
			return err
		}
		for _, ep := range episodes {
			if ep.Label != label {
				continue
			}
			stream, err := resolver.Resolve(c.UserContext(), ep)
			if err != nil {
				return err
			}
			return c.JSON(stream)
		}
		return types.ErrNotFound
	})
}
