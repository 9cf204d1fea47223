package store

import (
	"context"
	"fmt"
	"io"
	"sync"

	"AgentCore/pkg/engine/api"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Channel Event Stream (for runtime use)
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// ChannelEventStream implements api.EventStream using a channel. The producer
// side (Send) is owned by the turn orchestrator; the consumer side (Recv) by
// the caller. Either side may Close; the event channel itself is never closed,
// so a consumer Close racing an in-flight Send cannot panic — the Send just
// fails.
type ChannelEventStream struct {
	ch   chan api.Event
	done chan struct{}
	once sync.Once
}

// NewChannelEventStream creates a new channel-based event stream.
func NewChannelEventStream(bufferSize int) *ChannelEventStream {
	return &ChannelEventStream{
		ch:   make(chan api.Event, bufferSize),
		done: make(chan struct{}),
	}
}

// Send sends an event to the stream. It blocks while the buffer is full,
// which is what makes the producer a cooperative, lazily-consumed sequence.
// Cancellation or a Close from either side unblocks a stalled send.
func (s *ChannelEventStream) Send(ctx context.Context, e api.Event) error {
	select {
	case <-s.done:
		return fmt.Errorf("stream is closed")
	default:
	}

	select {
	case s.ch <- e:
		return nil
	case <-s.done:
		return fmt.Errorf("stream is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv receives an event from the stream. Events buffered before Close are
// still delivered; io.EOF follows once the buffer is drained.
func (s *ChannelEventStream) Recv(ctx context.Context) (api.Event, error) {
	select {
	case <-ctx.Done():
		return api.Event{}, ctx.Err()
	case e := <-s.ch:
		return e, nil
	case <-s.done:
		select {
		case e := <-s.ch:
			return e, nil
		default:
			return api.Event{}, io.EOF
		}
	}
}

// Close ends the stream. Safe to call from either side, multiple times.
func (s *ChannelEventStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// sliceEventStream replays a fixed slice of events.
type sliceEventStream struct {
	events []api.Event
	pos    int
}

func (s *sliceEventStream) Recv(ctx context.Context) (api.Event, error) {
	select {
	case <-ctx.Done():
		return api.Event{}, ctx.Err()
	default:
	}
	if s.pos >= len(s.events) {
		return api.Event{}, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

func (s *sliceEventStream) Close() error { return nil }
