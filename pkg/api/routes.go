package api

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, handler *Handler) {
	app.Get("/healthz", handler.Health)

	api := app.Group("/api")

	collections := api.Group("/collections")
	collections.Get("", handler.ListCollections)
	collections.Get("/:collection", handler.GetAll)
	collections.Post("/:collection", handler.AddRecord)
	collections.Get("/:collection/index/:index", handler.GetByIndex)
	collections.Get("/:collection/range/:index", handler.GetByDateRange)
	collections.Get("/:collection/:id", handler.GetRecord)
	collections.Put("/:collection/:id", handler.UpdateRecord)
	collections.Delete("/:collection/:id", handler.DeleteRecord)

	children := api.Group("/children")
	children.Get("/:id/summary", handler.GetDailySummary)
	children.Get("/:id/next-milestone", handler.GetNextMilestone)
	children.Delete("/:id", handler.DeleteChild)

	api.Get("/backup", handler.ExportBackup)
	api.Post("/backup", handler.ImportBackup)
	api.Delete("/database", handler.ResetDatabase)
}
