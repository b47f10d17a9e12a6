package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Sink receives best-effort, fire-and-forget event messages. A Sink
// must never let a delivery failure escape its own boundary.
type Sink interface {
	Notify(ctx context.Context, text string)
}

// NopSink drops every message. Used when no webhook is configured and
// in tests.
type NopSink struct{}

func (NopSink) Notify(context.Context, string) {}

// WebhookSink posts messages to a Discord-style webhook as
// {username, content} JSON. Errors are logged and swallowed.
type WebhookSink struct {
	client   *resty.Client
	url      string
	username string
}

func NewWebhookSink(url, username string) *WebhookSink {
	return &WebhookSink{
		client:   resty.New().SetTimeout(10 * time.Second),
		url:      url,
		username: username,
	}
}

type webhookMessage struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

func (s *WebhookSink) Notify(ctx context.Context, text string) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(webhookMessage{Username: s.username, Content: text}).
		Post(s.url)
	if err != nil {
		log.Warn().Err(err).Msg("Webhook notification failed")
		return
	}
	if resp.IsError() {
		log.Warn().
			Int("status", resp.StatusCode()).
			Msg("Webhook notification rejected")
	}
}
