package models

// SuccessResponse echoes the accepted alert payload back to the
// caller. The key names are part of the bridge's public contract.
type SuccessResponse struct {
	Received any `json:"Request success"`
}

type ErrorResponse struct {
	Error string `json:"Request error"`
}

type OrderRecord struct {
	ID         string `json:"id"`
	Instrument string `json:"instrument"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Outcome    string `json:"outcome"`
	Attempts   int    `json:"attempts"`
	Detail     string `json:"detail,omitempty"`
	Timestamp  int64  `json:"timestamp"` // unix timestamp in milliseconds
}

type OrderListResponse struct {
	Count  int           `json:"count"`
	Orders []OrderRecord `json:"orders"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	AlertsReceived int64  `json:"alerts_received"`
	Authenticated  bool   `json:"authenticated"`
}

type MetricsResponse struct {
	AlertsReceived   int64   `json:"alerts_received"`
	OrdersRelayed    int64   `json:"orders_relayed"`
	OrdersFailed     int64   `json:"orders_failed"`
	ValidationErrors int64   `json:"validation_errors"`
	RetryAttempts    int64   `json:"retry_attempts"`
	OrdersInJournal  int64   `json:"orders_in_journal"`
	LatencyP50Ms     float64 `json:"latency_p50_ms"`
	LatencyP99Ms     float64 `json:"latency_p99_ms"`
}
