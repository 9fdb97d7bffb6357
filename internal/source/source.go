// Package source defines the contract between the pipeline and the adapters
// that discover candidate items.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/dropwatch/internal/notify"
)

// ErrNotFound reports that a candidate has no extractable metadata. The
// pipeline skips the candidate without treating the source as unhealthy.
var ErrNotFound = errors.New("candidate metadata not found")

// Hints carries what an adapter already knows about a candidate.
type Hints struct {
	// HasMetadata is false when the adapter knows extraction would find
	// nothing, letting the pipeline skip the network-heavy step.
	HasMetadata bool
	Attrs       map[string]string
}

// Candidate is one item discovered during a poll.
type Candidate struct {
	Name  string
	Hints Hints
}

// Attr returns a hint attribute or "".
func (c Candidate) Attr(key string) string {
	if c.Hints.Attrs == nil {
		return ""
	}
	return c.Hints.Attrs[key]
}

// Validate rejects candidates missing required fields.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("candidate has empty name")
	}
	return nil
}

// Source discovers candidates and turns them into notifications.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Candidates lists items in the order the upstream presents them.
	Candidates(ctx context.Context) ([]Candidate, error)
	// Key returns the dedup key recorded in the seen store.
	Key(c Candidate) string
	// Build derives the notification for c. It returns an error wrapping
	// ErrNotFound when c has nothing to announce, and an httpx transport or
	// status error when the upstream is unhealthy.
	Build(ctx context.Context, c Candidate) (notify.Payload, error)
}
