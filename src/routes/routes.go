package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"alert-bridge/src/handlers"
	"alert-bridge/src/middleware"
)

func SetupRoutes(app *fiber.App, bridge *handlers.BridgeHandler, availability *middleware.Availability) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	app.Use(availability.Middleware())
	app.Use(middleware.RequestLogger())

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		app.Use(rateLimiter.Middleware())
	}

	app.Post("/alert", bridge.HandleAlert)
	app.Get("/orders", bridge.GetOrders)
	app.Get("/orders/:id", bridge.GetOrder)
	app.Get("/health", bridge.HealthCheck)
	app.Get("/metrics", bridge.Metrics)
}
