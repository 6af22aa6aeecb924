package handlers

import (
	"puzzle-bar/middleware"
	"puzzle-bar/models"
	"puzzle-bar/services"

	"github.com/gofiber/fiber/v2"
)

// SetupPublicMenuRoutes registers menu reads. They need gateway auth but no
// user context, so call this before the user-context group is created.
func SetupPublicMenuRoutes(app *fiber.App, items *services.ItemService, games *services.GameService) {
	app.Get("/items", items.GetAllItems)
	app.Get("/items/:id", items.GetItem)
	app.Post("/items/batch", items.GetMultipleItems)
	app.Get("/games", games.GetAllGames)
	app.Get("/games/:id", games.GetGameByID)
}

func SetupMenuRoutes(secured fiber.Router, items *services.ItemService, games *services.GameService) {
	staff := secured.Group("/staff", middleware.RequireStaff())
	staff.Post("/items", items.CreateItem)
	staff.Put("/items/:id", items.UpdateItem)
	staff.Delete("/items/:id", items.DeleteItem)

	admin := secured.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Post("/games", games.CreateGame)
	admin.Put("/games/:id", games.UpdateGame)
	admin.Delete("/games/:id", games.DeleteGame)
}
