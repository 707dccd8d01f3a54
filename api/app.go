// Package api exposes the resolution pipeline over HTTP for frontends and
// media-center plugins that want the catalog without the terminal UI.
package api

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aniterm/aniterm/types"
)

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "aniterm",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler,
	})
	app.Use(fiberlog.New(fiberlog.Config{
		Format: "[${ip}]:${port} ${status} - ${method} ${path}\n",
	}))
	app.Use(recover.New())
	return app
}

// errorHandler maps pipeline errors onto HTTP statuses. Upstream trouble is a
// 502 so callers can tell our bugs apart from the sources being down.
func errorHandler(c *fiber.Ctx, err error) error {
	var (
		fe *fiber.Error
		te *types.TransportError
		pe *types.ParseError
	)
	status := fiber.StatusInternalServerError
	switch {
	case errors.As(err, &fe):
		status = fe.Code
	case errors.Is(err, types.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.As(err, &te), errors.As(err, &pe):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
