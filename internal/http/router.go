package http

import (
	"database/sql"

	"github.com/gabriel/anime-watchlist/backend/internal/config"
	"github.com/gabriel/anime-watchlist/backend/internal/http/handlers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func NewServer(cfg config.Config, db *sql.DB, resolver handlers.CatalogResolver) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})

	app.Use(recover.New())

	health := handlers.NewHealthHandler(db)
	catalogHandlers := handlers.NewCatalogHandler(resolver)
	library := handlers.NewLibraryHandler(db, resolver)
	profiles := handlers.NewProfilesHandler(db)

	app.Get("/health", health.Check)
	app.Get("/v1/health", health.Check)

	v1 := app.Group("/v1")
	v1.Get("/catalog/search", catalogHandlers.Search)
	v1.Get("/catalog/resolve", catalogHandlers.Resolve)
	v1.Get("/catalog/media/:id", catalogHandlers.GetByID)
	v1.Get("/catalog/year/:year", catalogHandlers.ListByYear)

	v1.Get("/profiles", profiles.List)
	v1.Post("/profiles", profiles.Create)

	v1.Post("/library", library.Create)
	v1.Get("/library", library.List)
	v1.Get("/library/:id", library.GetByID)
	v1.Put("/library/:id", library.Update)
	v1.Delete("/library/:id", library.Delete)
	v1.Post("/library/:id/status", library.SetStatus)
	v1.Post("/library/:id/rating", library.SetRating)
	v1.Post("/library/:id/refresh", library.Refresh)

	return app
}
