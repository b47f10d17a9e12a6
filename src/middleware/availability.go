package middleware

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Availability gates alert traffic: maintenance mode, an in-flight
// request cap, and (when fail-closed auth is configured) the outcome
// of the startup handshake.
type Availability struct {
	maintenanceMode  atomic.Bool
	authRejected     atomic.Bool
	authFailClosed   bool
	maxInFlight      int64
	inFlightRequests atomic.Int64
}

func NewAvailability(maxInFlight int64, authFailClosed bool) *Availability {
	a := &Availability{
		maxInFlight:    maxInFlight,
		authFailClosed: authFailClosed,
	}

	if os.Getenv("MAINTENANCE_MODE") == "1" {
		a.maintenanceMode.Store(true)
		log.Warn().Msg("Service is in maintenance mode - all requests will return 503")
	}

	return a
}

func (a *Availability) SetMaintenanceMode(enabled bool) {
	a.maintenanceMode.Store(enabled)
}

// SetAuthRejected records a rejected startup handshake. With
// authFailClosed set, alert traffic is refused until cleared.
func (a *Availability) SetAuthRejected(rejected bool) {
	a.authRejected.Store(rejected)
	if rejected && a.authFailClosed {
		log.Warn().Msg("Fail-closed mode: alert traffic disabled after rejected handshake")
	}
}

func (a *Availability) InFlight() int64 {
	return a.inFlightRequests.Load()
}

func (a *Availability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// edge case: health check always available
		if c.Path() == "/health" {
			return c.Next()
		}

		if a.maintenanceMode.Load() {
			log.Warn().
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Msg("Request rejected: service in maintenance mode")
			return unavailable(c, "The service is currently undergoing maintenance. Please try again later.")
		}

		if a.authFailClosed && a.authRejected.Load() {
			log.Warn().
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Msg("Request rejected: terminal handshake was not accepted")
			return unavailable(c, "The bridge is not authenticated with the trading terminal.")
		}

		if a.maxInFlight > 0 && a.inFlightRequests.Load() >= a.maxInFlight {
			log.Warn().
				Str("path", c.Path()).
				Int64("in_flight", a.inFlightRequests.Load()).
				Int64("max_in_flight", a.maxInFlight).
				Msg("Request rejected: server overload")
			return unavailable(c, "The service is currently overloaded. Please try again later.")
		}

		a.inFlightRequests.Add(1)
		defer a.inFlightRequests.Add(-1)

		return c.Next()
	}
}

func unavailable(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "Service unavailable",
		"message": message,
		"code":    fiber.StatusServiceUnavailable,
	})
}

func DefaultAvailability(authFailClosed bool) *Availability {
	maxInFlight := int64(0)

	if envMax := os.Getenv("MAX_CONCURRENT_REQUESTS"); envMax != "" {
		if parsed, err := strconv.ParseInt(envMax, 10, 64); err == nil && parsed > 0 {
			maxInFlight = parsed
			log.Info().
				Int64("max_concurrent_requests", maxInFlight).
				Msg("Server overload detection enabled")
		}
	}

	return NewAvailability(maxInFlight, authFailClosed)
}
