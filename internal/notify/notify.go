// Package notify defines the payload and delivery contract shared by every
// notification destination.
package notify

import (
	"context"
	"strings"
	"time"
)

// Notifier delivers one payload to one destination. Implementations never
// panic or return errors; failures are logged and reported as false.
type Notifier interface {
	Notify(ctx context.Context, payload Payload) bool
}

// Field is one labeled line of a payload body.
type Field struct {
	Label string
	Value string
}

// Payload is a rendered notification.
type Payload struct {
	Title        string
	Fields       []Field
	Footer       string
	URL          string
	ThumbnailURL string
	Color        int
	Timestamp    time.Time
	// Plain asks destinations that support rich layouts to send text only.
	Plain bool
}

// Text renders the title and body as one message.
func (p Payload) Text() string {
	body := p.Body()
	switch {
	case p.Title == "":
		return body
	case body == "":
		return p.Title
	default:
		return p.Title + "\n" + body
	}
}

// Body renders the labeled fields followed by the footer.
func (p Payload) Body() string {
	var b strings.Builder
	for i, f := range p.Fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("**")
		b.WriteString(f.Label)
		b.WriteString(":** ")
		b.WriteString(f.Value)
	}
	if p.Footer != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Footer)
	}
	return b.String()
}

// FuncNotifier adapts a function to Notifier.
type FuncNotifier func(ctx context.Context, payload Payload) bool

// Notify calls f.
func (f FuncNotifier) Notify(ctx context.Context, payload Payload) bool {
	return f(ctx, payload)
}
