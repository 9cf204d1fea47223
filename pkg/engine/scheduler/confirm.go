package scheduler

import (
	"context"
	"sync"
	"time"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/logger"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Confirmation Bus
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// Decision is a policy-channel verdict on a pending tool call.
type Decision string

const (
	DecisionAllow   Decision = "allow"
	DecisionDeny    Decision = "deny"
	DecisionAskUser Decision = "ask_user"

	// DecisionCancelled is only ever produced by Check itself, when the
	// waiting context is cancelled. Cancellation is not a policy verdict.
	DecisionCancelled Decision = "cancelled"
)

// ConfirmationRequest is published on the bus for each tool call that wants
// a verdict before executing.
type ConfirmationRequest struct {
	CorrelationID string
	Call          api.ToolCallRequest
	Details       *api.ConfirmationDetails
}

// DefaultConfirmationTimeout bounds how long a published request waits for a
// decision before falling back to asking the user interactively.
const DefaultConfirmationTimeout = 30 * time.Second

// Bus is the request/response channel between the scheduler and whatever
// automated policy layers are listening. Exactly one response is honored per
// correlation id; late or duplicate responses are dropped. When nobody
// answers in time the verdict degrades to DecisionAskUser, so the system
// fails toward asking a human rather than silently allowing or blocking.
type Bus struct {
	mu      sync.Mutex
	subs    []chan ConfirmationRequest
	pending map[string]chan Decision

	// Timeout overrides DefaultConfirmationTimeout when non-zero.
	Timeout time.Duration
}

func NewBus() *Bus {
	return &Bus{pending: make(map[string]chan Decision)}
}

// Subscribe registers a decision-maker. Requests are delivered best-effort;
// a subscriber that is not draining its channel misses requests rather than
// blocking the scheduler.
func (b *Bus) Subscribe() <-chan ConfirmationRequest {
	ch := make(chan ConfirmationRequest, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Respond delivers a decision for a correlation id. It reports whether the
// decision was applied; false means no such request is pending or a decision
// already won the race.
func (b *Bus) Respond(correlationID string, d Decision) bool {
	b.mu.Lock()
	ch, ok := b.pending[correlationID]
	if ok {
		delete(b.pending, correlationID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- d // cap 1, never blocks
	return true
}

// Check publishes a confirmation request and waits for the first decision,
// the timeout, or cancellation. Timeout and publish failure both resolve to
// DecisionAskUser; cancellation resolves to DecisionCancelled so the caller
// can end the call as cancelled rather than policy-denied.
func (b *Bus) Check(ctx context.Context, req ConfirmationRequest) Decision {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}

	ch := make(chan Decision, 1)
	b.mu.Lock()
	b.pending[req.CorrelationID] = ch
	subs := make([]chan ConfirmationRequest, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	if len(subs) == 0 {
		b.drop(req.CorrelationID)
		return DecisionAskUser
	}
	delivered := false
	for _, sub := range subs {
		select {
		case sub <- req:
			delivered = true
		default:
		}
	}
	if !delivered {
		b.drop(req.CorrelationID)
		return DecisionAskUser
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case d := <-ch:
		return d
	case <-t.C:
		b.drop(req.CorrelationID)
		logger.Debug("Scheduler", "Confirmation request timed out", map[string]any{
			"correlation_id": req.CorrelationID,
		})
		return DecisionAskUser
	case <-ctx.Done():
		b.drop(req.CorrelationID)
		return DecisionCancelled
	}
}

func (b *Bus) drop(correlationID string) {
	b.mu.Lock()
	delete(b.pending, correlationID)
	b.mu.Unlock()
}
