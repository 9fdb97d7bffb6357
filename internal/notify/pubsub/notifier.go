// Package pubsub publishes payloads to a Google Cloud Pub/Sub topic, for
// channels whose destination is a downstream relay instead of a webhook.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/notify"
)

// Message is the JSON document published for one payload.
type Message struct {
	Channel      string    `json:"channel"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	URL          string    `json:"url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier wraps a Pub/Sub topic.
type Notifier struct {
	topic   *pubsub.Topic
	channel string
	logger  *zap.Logger
}

// New creates a Notifier for topic; channel is attached as an attribute.
func New(topic *pubsub.Topic, channel string, logger *zap.Logger) (*Notifier, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{topic: topic, channel: channel, logger: logger}, nil
}

// Notify publishes the payload and waits for the server ack.
func (n *Notifier) Notify(ctx context.Context, payload notify.Payload) bool {
	data, err := json.Marshal(Message{
		Channel:      n.channel,
		Title:        payload.Title,
		Body:         payload.Body(),
		URL:          payload.URL,
		ThumbnailURL: payload.ThumbnailURL,
		Timestamp:    payload.Timestamp.UTC(),
	})
	if err != nil {
		n.logger.Warn("marshal pubsub payload", zap.Error(err))
		return false
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"channel": n.channel},
	})
	id, err := result.Get(ctx)
	if err != nil {
		n.logger.Warn("pubsub delivery failed", zap.String("title", payload.Title), zap.Error(err))
		return false
	}
	n.logger.Debug("published notification", zap.String("message_id", id))
	return true
}
