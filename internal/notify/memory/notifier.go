// Package memory contains an in-memory notifier for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/dropwatch/internal/notify"
)

// Notifier records delivered payloads for inspection.
type Notifier struct {
	mu       sync.RWMutex
	payloads []notify.Payload
	attempts int
	// Fail makes every delivery report failure.
	Fail bool
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the payload unless Fail is set.
func (n *Notifier) Notify(_ context.Context, payload notify.Payload) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts++
	if n.Fail {
		return false
	}
	n.payloads = append(n.payloads, payload)
	return true
}

// SetFail toggles failure mode.
func (n *Notifier) SetFail(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Fail = fail
}

// Payloads returns the delivered payloads.
func (n *Notifier) Payloads() []notify.Payload {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]notify.Payload, len(n.payloads))
	copy(out, n.payloads)
	return out
}

// Attempts returns how many deliveries were attempted.
func (n *Notifier) Attempts() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.attempts
}
