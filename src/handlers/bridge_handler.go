package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"alert-bridge/src/config"
	"alert-bridge/src/executor"
	"alert-bridge/src/journal"
	"alert-bridge/src/models"
	"alert-bridge/src/notify"
)

// Dispatcher is the retrying delivery surface the handler drives.
type Dispatcher interface {
	Execute(ctx context.Context, command any) (*executor.Result, error)
}

type BridgeHandler struct {
	Dispatcher Dispatcher
	Journal    *journal.Journal
	Sink       notify.Sink
	Cfg        *config.Config
	StartTime  time.Time

	AlertsReceived   int64
	OrdersRelayed    int64
	OrdersFailed     int64
	ValidationErrors int64
	RetryAttempts    int64

	authenticated atomic.Bool

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewBridgeHandler(dispatcher Dispatcher, j *journal.Journal, sink notify.Sink, cfg *config.Config) *BridgeHandler {
	maxLatencies := 10000
	if envMax := os.Getenv("METRICS_MAX_LATENCIES"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxLatencies = parsed
		}
	}

	return &BridgeHandler{
		Dispatcher:   dispatcher,
		Journal:      j,
		Sink:         sink,
		Cfg:          cfg,
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, maxLatencies),
		maxLatencies: maxLatencies,
	}
}

// SetAuthenticated records the startup handshake outcome for /health.
func (h *BridgeHandler) SetAuthenticated(ok bool) {
	h.authenticated.Store(ok)
}

func (h *BridgeHandler) HandleAlert(c *fiber.Ctx) error {
	var payload map[string]any
	if err := json.Unmarshal(c.Body(), &payload); err != nil || payload == nil {
		log.Warn().
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	atomic.AddInt64(&h.AlertsReceived, 1)
	alertID := uuid.New().String()
	entry := journal.Entry{ID: alertID}

	var command any
	if h.Cfg.TranslateDisabled {
		// pass-through mode: the payload already is the protocol command
		command = payload
		entry.Instrument, _ = stringValue(payload["INS"])
		entry.Side, _ = stringValue(payload["SD"])
		entry.Price, _ = stringValue(payload["PR"])
	} else {
		cmd, err := translateAlert(payload, h.Cfg.OrderAccount, h.Cfg.OrderProvider, h.Cfg.OrderQuantity)
		if err != nil {
			atomic.AddInt64(&h.ValidationErrors, 1)
			log.Warn().
				Err(err).
				Str("alert_id", alertID).
				Str("ip", c.IP()).
				Msg("Alert rejected by validation")
			entry.Outcome = journal.OutcomeRejected
			entry.Detail = err.Error()
			h.Journal.Add(entry)
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: err.Error(),
			})
		}
		command = cmd
		entry.Instrument = cmd.Instrument
		entry.Side = string(cmd.Side)
		entry.Price = cmd.Price
	}

	log.Info().
		Str("alert_id", alertID).
		Str("instrument", entry.Instrument).
		Str("side", entry.Side).
		Str("price", entry.Price).
		Str("ip", c.IP()).
		Msg("Alert received")

	if encoded, err := json.Marshal(command); err == nil {
		h.announce("Placing Order: %s", encoded)
	}

	startTime := time.Now()
	result, err := h.Dispatcher.Execute(c.UserContext(), command)
	h.recordLatency(time.Since(startTime))

	if err != nil {
		return h.relayFailed(c, alertID, entry, err)
	}

	atomic.AddInt64(&h.OrdersRelayed, 1)
	atomic.AddInt64(&h.RetryAttempts, int64(result.Attempts))

	entry.Outcome = journal.OutcomeRelayed
	entry.Attempts = result.Attempts
	h.Journal.Add(entry)

	log.Info().
		Str("alert_id", alertID).
		Str("status", result.Response.Status()).
		Int("attempts", result.Attempts).
		Msg("Order relayed")

	h.announce("Order placed: %s", entry.Instrument)

	return c.Status(fiber.StatusOK).JSON(models.SuccessResponse{
		Received: payload,
	})
}

func (h *BridgeHandler) relayFailed(c *fiber.Ctx, alertID string, entry journal.Entry, err error) error {
	atomic.AddInt64(&h.OrdersFailed, 1)
	entry.Detail = err.Error()

	var exhausted *executor.RetryExhaustedError
	if errors.As(err, &exhausted) {
		atomic.AddInt64(&h.RetryAttempts, int64(exhausted.Attempts))
		entry.Outcome = journal.OutcomeFailed
		entry.Attempts = exhausted.Attempts
		h.Journal.Add(entry)

		log.Error().
			Err(err).
			Str("alert_id", alertID).
			Int("attempts", exhausted.Attempts).
			Msg("Order relay exhausted retries")

		h.announce("Order failed: %s (%s)", entry.Instrument, err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	// edge case: caller went away mid-retry; record it but a response
	// body is mostly moot at this point
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		entry.Outcome = journal.OutcomeCancelled
		h.Journal.Add(entry)
		log.Warn().
			Str("alert_id", alertID).
			Msg("Order relay cancelled by caller")
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "request cancelled",
		})
	}

	entry.Outcome = journal.OutcomeFailed
	h.Journal.Add(entry)
	log.Error().
		Err(err).
		Str("alert_id", alertID).
		Msg("Order relay failed")
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Error: err.Error(),
	})
}

// announce fires a best-effort notification without blocking the
// request path. Delivery failures never reach the caller.
func (h *BridgeHandler) announce(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	go h.Sink.Notify(context.Background(), text)
}

func (h *BridgeHandler) GetOrders(c *fiber.Ctx) error {
	defaultLimit := 50
	limitStr := c.Query("limit", strconv.Itoa(defaultLimit))
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}

	entries := h.Journal.Recent(limit)
	orders := make([]models.OrderRecord, 0, len(entries))
	for _, e := range entries {
		orders = append(orders, orderRecord(e))
	}

	return c.Status(fiber.StatusOK).JSON(models.OrderListResponse{
		Count:  len(orders),
		Orders: orders,
	})
}

func (h *BridgeHandler) GetOrder(c *fiber.Ctx) error {
	id := c.Params("id")

	e, ok := h.Journal.Get(id)
	if !ok {
		log.Warn().
			Str("order_id", id).
			Str("ip", c.IP()).
			Msg("Order lookup: not found")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Order not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(orderRecord(e))
}

func orderRecord(e journal.Entry) models.OrderRecord {
	return models.OrderRecord{
		ID:         e.ID,
		Instrument: e.Instrument,
		Side:       e.Side,
		Price:      e.Price,
		Outcome:    string(e.Outcome),
		Attempts:   e.Attempts,
		Detail:     e.Detail,
		Timestamp:  e.Timestamp,
	}
}

func (h *BridgeHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:         "healthy",
		UptimeSeconds:  int64(uptime),
		AlertsReceived: atomic.LoadInt64(&h.AlertsReceived),
		Authenticated:  h.authenticated.Load(),
	})
}

func (h *BridgeHandler) Metrics(c *fiber.Ctx) error {
	p50, p99 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		AlertsReceived:   atomic.LoadInt64(&h.AlertsReceived),
		OrdersRelayed:    atomic.LoadInt64(&h.OrdersRelayed),
		OrdersFailed:     atomic.LoadInt64(&h.OrdersFailed),
		ValidationErrors: atomic.LoadInt64(&h.ValidationErrors),
		RetryAttempts:    atomic.LoadInt64(&h.RetryAttempts),
		OrdersInJournal:  int64(h.Journal.Len()),
		LatencyP50Ms:     p50,
		LatencyP99Ms:     p99,
	})
}

func (h *BridgeHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *BridgeHandler) calculateLatencyPercentiles() (p50, p99 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0
	}

	latenciesCopy := make([]time.Duration, len(h.latencies))
	copy(latenciesCopy, h.latencies)

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	p50Index := int(float64(len(latenciesCopy)) * 0.50)
	p99Index := int(float64(len(latenciesCopy)) * 0.99)

	// edge case: ensure indices are within bounds
	if p50Index >= len(latenciesCopy) {
		p50Index = len(latenciesCopy) - 1
	}
	if p99Index >= len(latenciesCopy) {
		p99Index = len(latenciesCopy) - 1
	}

	p50 = float64(latenciesCopy[p50Index].Nanoseconds()) / 1e6
	p99 = float64(latenciesCopy[p99Index].Nanoseconds()) / 1e6

	return p50, p99
}
