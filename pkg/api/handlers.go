// Package api serves the record store and the diary over a JSON HTTP API.
package api

import (
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
)

type Handler struct {
	store    *records.Store
	diary    *diary.Diary
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithLocation sets the time zone used for day boundaries in summaries.
func WithLocation(location *time.Location) Option {
	return func(h *Handler) { h.location = location }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(store *records.Store, d *diary.Diary, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		diary:    d,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewApp returns a fiber app with every route registered.
func NewApp(handler *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Nursery",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(handler.requestLogger)
	RegisterRoutes(app, handler)
	return app
}

func (handler *Handler) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	handler.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

func (handler *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
