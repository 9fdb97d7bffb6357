// Package discord delivers payloads to a Discord webhook.
package discord

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/httpx"
	"github.com/JakeFAU/dropwatch/internal/notify"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

type message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Color       int        `json:"color,omitempty"`
	Timestamp   string     `json:"timestamp,omitempty"`
	Thumbnail   *thumbnail `json:"thumbnail,omitempty"`
}

type thumbnail struct {
	URL string `json:"url"`
}

// Notifier posts to one webhook URL.
type Notifier struct {
	webhook string
	client  *httpx.Client
	logger  *zap.Logger
}

// New builds a Notifier. An empty webhook is a configuration error.
func New(webhook string, client *httpx.Client, logger *zap.Logger) (*Notifier, error) {
	if strings.TrimSpace(webhook) == "" {
		return nil, fmt.Errorf("discord webhook url is required")
	}
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{webhook: webhook, client: client, logger: logger}, nil
}

// Notify posts the payload and reports whether Discord accepted it.
func (n *Notifier) Notify(ctx context.Context, payload notify.Payload) bool {
	if _, err := n.client.PostJSON(ctx, n.webhook, render(payload)); err != nil {
		n.logger.Warn("discord delivery failed", zap.String("title", payload.Title), zap.Error(err))
		return false
	}
	return true
}

func render(p notify.Payload) message {
	if p.Plain {
		return message{Content: p.Text()}
	}
	e := embed{
		Title:       p.Title,
		Description: p.Body(),
		URL:         p.URL,
		Color:       p.Color,
	}
	if !p.Timestamp.IsZero() {
		e.Timestamp = p.Timestamp.UTC().Format(timestampLayout)
	}
	if p.ThumbnailURL != "" {
		e.Thumbnail = &thumbnail{URL: p.ThumbnailURL}
	}
	return message{Embeds: []embed{e}}
}
