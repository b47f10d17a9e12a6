package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alert-bridge/src/config"
	"alert-bridge/src/executor"
	"alert-bridge/src/handlers"
	"alert-bridge/src/journal"
	"alert-bridge/src/logger"
	"alert-bridge/src/middleware"
	"alert-bridge/src/notify"
	"alert-bridge/src/routes"
	"alert-bridge/src/session"
	"alert-bridge/src/transport"
)

const version = "1.0.0"

func main() {
	logger.InitLogger()
	log := logger.GetLogger()

	cfg := config.Load()

	log.Info().
		Str("version", version).
		Str("ws_url", cfg.WSURL).
		Int("token_digits", len(cfg.Token)).
		Msg("Initializing Alert Bridge")

	if cfg.InsecureSkipVerify {
		log.Warn().
			Str("ws_url", cfg.WSURL).
			Msg("TLS certificate verification is DISABLED for the terminal connection")
	}
	if cfg.Token == "" {
		log.Warn().Msg("No credential configured (TOKEN is empty or has no digits)")
	}

	connector := transport.NewConnector(cfg.WSURL, cfg.InsecureSkipVerify, cfg.DialTimeout, cfg.CallTimeout)
	sess := session.New(connector, cfg.Token, cfg.ProtocolVersion)

	authCtx, cancelAuth := context.WithTimeout(context.Background(), cfg.DialTimeout+cfg.CallTimeout)
	outcome := sess.Authenticate(authCtx)
	cancelAuth()

	availability := middleware.DefaultAvailability(cfg.AuthFailClosed)
	availability.SetAuthRejected(!outcome.Authenticated)

	if !outcome.Authenticated && !cfg.AuthFailClosed {
		// fail-open: the source behavior, kept as an explicit choice
		log.Warn().Msg("Handshake not accepted; serving alert traffic anyway (fail-open)")
	}

	var sink notify.Sink = notify.NopSink{}
	if cfg.WebhookURL != "" {
		sink = notify.NewWebhookSink(cfg.WebhookURL, cfg.WebhookUsername)
	}

	dispatcher := executor.New(sess, cfg.MaxAttempts, cfg.RetryDelay)
	orderJournal := journal.New(cfg.JournalCapacity)
	bridge := handlers.NewBridgeHandler(dispatcher, orderJournal, sink, cfg)
	bridge.SetAuthenticated(outcome.Authenticated)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, bridge, availability)

	port := ":" + cfg.Port

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=5001 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Bool("translate_mode", !cfg.TranslateDisabled).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("retry_delay", cfg.RetryDelay).
			Msg("Alert Bridge started")

		log.Info().
			Strs("endpoints", []string{
				"POST   /alert",
				"GET    /orders",
				"GET    /orders/:id",
				"GET    /health",
				"GET    /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		log.Info().Msg("Shutdown complete")
	}

	logger.CloseLogger()
}
