package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"alert-bridge/src/executor"
	"alert-bridge/src/protocol"
)

// Config is the full startup surface of the bridge, loaded once from
// the environment (plus an optional .env file) and immutable after.
type Config struct {
	Port            string
	ShutdownTimeout time.Duration

	WSURL              string
	InsecureSkipVerify bool
	Token              string // normalized: digits only
	ProtocolVersion    string
	DialTimeout        time.Duration
	CallTimeout        time.Duration

	MaxAttempts int
	RetryDelay  time.Duration

	// AuthFailClosed stops /alert traffic after a rejected startup
	// handshake. Default is the source behavior: fail open.
	AuthFailClosed bool

	// TranslateDisabled switches /alert to pass-through mode: the raw
	// payload is forwarded as the protocol command.
	TranslateDisabled bool

	OrderAccount  string
	OrderProvider string
	OrderQuantity string

	WebhookURL      string
	WebhookUsername string

	JournalCapacity int
}

func Load() *Config {
	// edge case: a missing .env file is fine, env vars still apply
	_ = godotenv.Load()

	return &Config{
		Port:            envString("PORT", "5000"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		WSURL:              envString("WS_URL", "wss://localhost:8888/websocket"),
		InsecureSkipVerify: envBool("WS_INSECURE_SKIP_VERIFY", false),
		Token:              protocol.NormalizeCredential(os.Getenv("TOKEN")),
		ProtocolVersion:    envString("PROTOCOL_VERSION", "1.00"),
		DialTimeout:        envDuration("DIAL_TIMEOUT", 10*time.Second),
		CallTimeout:        envDuration("CALL_TIMEOUT", 30*time.Second),

		MaxAttempts: envInt("RETRY_MAX_ATTEMPTS", executor.DefaultMaxAttempts),
		RetryDelay:  envDuration("RETRY_DELAY", executor.DefaultRetryDelay),

		AuthFailClosed:    envBool("AUTH_FAIL_CLOSED", false),
		TranslateDisabled: envBool("ALERT_TRANSLATE_DISABLED", false),

		OrderAccount:  envString("ORDER_ACCOUNT", ""),
		OrderProvider: envString("ORDER_PROVIDER", "PTS"),
		OrderQuantity: envString("ORDER_QUANTITY", "1"),

		WebhookURL:      envString("WEBHOOK_URL", ""),
		WebhookUsername: envString("WEBHOOK_USERNAME", "AlertBot"),

		JournalCapacity: envInt("JOURNAL_CAPACITY", 1000),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	}
	return fallback
}
