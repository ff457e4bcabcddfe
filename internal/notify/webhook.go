package notify

import (
	"context"
	"fmt"
	"time"
	"workshopwatch/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

// WebhookSink posts unit batches to a Discord-style webhook as embed
// lists. One Deliver call is one POST.
type WebhookSink struct {
	http *resty.Client
	url  string
}

type WebhookSinkOptions struct {
	Url string
	// defaults to 15s
	Timeout time.Duration
}

func NewWebhookSink(opts WebhookSinkOptions) *WebhookSink {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 15
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	telemetry.InstrumentResty(client, "notify/webhook")

	return &WebhookSink{
		http: client,
		url:  opts.Url,
	}
}

type embedImage struct {
	Url string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Image       *embedImage  `json:"image,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

func (s *WebhookSink) Deliver(ctx context.Context, units []Unit) error {
	payload := webhookPayload{
		Embeds: make([]embed, len(units)),
	}
	for i, u := range units {
		e := embed{
			Title:       u.Heading,
			Description: u.Body,
			Color:       u.Color,
		}
		if u.ImageURL != "" {
			e.Image = &embedImage{Url: u.ImageURL}
		}
		if u.Footer != "" {
			e.Footer = &embedFooter{Text: u.Footer}
		}
		payload.Embeds[i] = e
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(payload).
		Post(s.url)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("webhook rejected batch: status %d", res.StatusCode())
	}
	return nil
}
