// Package server assembles the fiber application.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"pdfgen/internal/config"
	"pdfgen/internal/http/handlers"
	"pdfgen/internal/http/middleware"
	"pdfgen/internal/infra/logging"
	"pdfgen/internal/tokens"
)

// Deps are the server's collaborators. Tokens, Store and Redis may be nil.
type Deps struct {
	Config    config.Config
	Generator handlers.Generator
	Tokens    *tokens.Cache
	Store     fiber.Storage
	Redis     *redis.Client
}

// New creates and configures the fiber app.
func New(deps Deps) *fiber.App {
	cfg := deps.Config
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxBodyBytes,
		ErrorHandler:          errorHandler,
	})

	mw := middleware.Deps{Store: deps.Store, Redis: deps.Redis}
	// A nil *tokens.Cache must stay a nil interface.
	if deps.Tokens != nil {
		mw.Tokens = deps.Tokens
	}
	middleware.Register(app, cfg, mw)
	registerRoutes(app, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/v1")

	pdf := handlers.NewPDFHandler(deps.Generator, deps.Config, deps.Redis)
	v1.Post("/pdf", pdf.HandleConversion)
	v1.Get("/pdf", pdf.HandleURLConversion)
	v1.Post("/pdfs", pdf.HandleBatch)

	v1.Get("/monitor", monitor.New())
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}
