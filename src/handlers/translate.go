package handlers

import (
	"fmt"

	"github.com/shopspring/decimal"

	"alert-bridge/src/protocol"
)

// ValidationError describes an alert payload the bridge refuses to
// relay. It is reported to the caller and never crashes the handler.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: field %q %s", e.Field, e.Reason)
}

// translateAlert maps the TradingView alert shape
// {strategy:{order_action, order_price}, ticker} onto an OrderCommand.
// "buy" maps to side B, anything else to S; the price string goes
// verbatim into both the price and limit-price fields; order type is
// always market and time-in-force always day.
func translateAlert(payload map[string]any, account, provider, quantity string) (protocol.OrderCommand, error) {
	strategy, ok := payload["strategy"].(map[string]any)
	if !ok {
		return protocol.OrderCommand{}, &ValidationError{Field: "strategy", Reason: "is missing or not an object"}
	}

	action, ok := stringValue(strategy["order_action"])
	if !ok || action == "" {
		return protocol.OrderCommand{}, &ValidationError{Field: "strategy.order_action", Reason: "is missing"}
	}

	price, ok := priceValue(strategy["order_price"])
	if !ok {
		return protocol.OrderCommand{}, &ValidationError{Field: "strategy.order_price", Reason: "is missing or not numeric"}
	}

	ticker, ok := stringValue(payload["ticker"])
	if !ok || ticker == "" {
		return protocol.OrderCommand{}, &ValidationError{Field: "ticker", Reason: "is missing"}
	}

	side := protocol.SideSell
	if action == "buy" {
		side = protocol.SideBuy
	}

	return protocol.OrderCommand{
		Request:     protocol.RequestPlaceOrder,
		Provider:    provider,
		Account:     account,
		Side:        side,
		Quantity:    quantity,
		Instrument:  ticker,
		OrderType:   protocol.OrderTypeMarket,
		Price:       price,
		LimitPrice:  price,
		TimeInForce: protocol.TimeInForceDay,
		Confirm:     protocol.ConfirmOff,
	}, nil
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// priceValue accepts the price as either a JSON string or number.
// String prices are kept verbatim on the wire once they parse as a
// decimal; numbers are rendered without float artifacts.
func priceValue(v any) (string, bool) {
	switch p := v.(type) {
	case string:
		if _, err := decimal.NewFromString(p); err != nil {
			return "", false
		}
		return p, true
	case float64:
		return decimal.NewFromFloat(p).String(), true
	default:
		return "", false
	}
}
