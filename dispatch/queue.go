// Package dispatch serializes outbound chat messages to the transport. The
// queue is FIFO and unbounded; a fixed delay between sends keeps the service
// inside the transport's external rate limit.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aew2sbee/study-time-tracker/telemetry"
)

// Transport is the outbound send primitive. Implementations post one chat
// message and report success or failure; the queue never retries.
type Transport interface {
	Send(ctx context.Context, text string) error
}

// Message is one outbound request. Recipient is a display label carried for
// logging; the text already addresses the participant.
type Message struct {
	Recipient string
	Text      string
}

// Queue buffers outbound messages for serialized delivery.
type Queue struct {
	mu       sync.Mutex
	items    []Message
	draining atomic.Bool

	transport Transport
	delay     time.Duration
}

func NewQueue(transport Transport, delay time.Duration) *Queue {
	return &Queue{transport: transport, delay: delay}
}

// Enqueue appends a message. It never blocks and never drops.
func (q *Queue) Enqueue(recipient, text string) {
	q.mu.Lock()
	q.items = append(q.items, Message{Recipient: recipient, Text: text})
	n := len(q.items)
	q.mu.Unlock()
	telemetry.SetDispatchDepth(n)
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain sends queued messages oldest-first until the queue is empty or ctx is
// canceled. A send failure is logged and the message dropped; delivery of
// acknowledgements is best-effort and session state never depends on it.
// Drain is reentrancy-safe: a call while another drain is running returns
// immediately, so at most one drain is ever in flight.
func (q *Queue) Drain(ctx context.Context) {
	if !q.draining.CompareAndSwap(false, true) {
		return
	}
	defer q.draining.Store(false)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			telemetry.SetDispatchDepth(0)
			return
		}
		msg := q.items[0]
		q.items = q.items[1:]
		remaining := len(q.items)
		q.mu.Unlock()
		telemetry.SetDispatchDepth(remaining)

		if err := q.transport.Send(ctx, msg.Text); err != nil {
			slog.Warn("outbound send failed; dropping message",
				slog.String("recipient", msg.Recipient),
				slog.Any("err", err),
				slog.String("component", "dispatch"))
			telemetry.MessageSendFailed()
		} else {
			telemetry.MessageSent()
		}

		if remaining > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.delay):
			}
		}
	}
}
