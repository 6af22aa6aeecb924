package handlers

import (
	"puzzle-bar/middleware"
	"puzzle-bar/models"
	"puzzle-bar/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(router fiber.Router, users *services.UserService) {
	router.Get("/user/me", users.GetMe)
	router.Put("/user/me", users.SyncProfile)

	admin := router.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Get("/users", users.GetAllUsers)
	admin.Put("/users/:userId/role", users.UpdateUserRole)
}
