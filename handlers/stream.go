package handlers

import (
	"time"

	"puzzle-bar/middleware"
	"puzzle-bar/realtime"

	"github.com/gofiber/fiber/v2"
)

// SetupStreamRoutes registers the change stream. It must be registered
// before the user-context group since browsers cannot send gateway headers
// on an EventSource.
func SetupStreamRoutes(app *fiber.App, hub *realtime.Hub, jwtSecret []byte, keepAlive time.Duration) {
	app.Get("/stream", middleware.StreamAuthMiddleware(jwtSecret), realtime.StreamHandler(hub, keepAlive))
}
