package store

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"AgentCore/pkg/engine/api"
)

func TestChannelEventStreamDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	s := NewChannelEventStream(4)

	for i := 0; i < 3; i++ {
		if err := s.Send(ctx, api.Event{Seq: int64(i), Type: api.EventContent}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	s.Close()

	for i := 0; i < 3; i++ {
		e, err := s.Recv(ctx)
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if e.Seq != int64(i) {
			t.Errorf("recv %d: got seq %d", i, e.Seq)
		}
	}
	if _, err := s.Recv(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after close, got %v", err)
	}
}

func TestChannelEventStreamSendAfterCloseFails(t *testing.T) {
	s := NewChannelEventStream(1)
	s.Close()
	if err := s.Send(context.Background(), api.Event{}); err == nil {
		t.Error("send after close should fail")
	}
}

func TestChannelEventStreamSendUnblocksOnCancel(t *testing.T) {
	s := NewChannelEventStream(0)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- s.Send(ctx, api.Event{Type: api.EventContent})
	}()

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send did not unblock on cancellation")
	}
}

func TestChannelEventStreamCloseUnblocksBlockedSend(t *testing.T) {
	// A consumer that closes while the producer is blocked on a full buffer
	// must fail the send, not panic it.
	s := NewChannelEventStream(1)
	ctx := context.Background()

	if err := s.Send(ctx, api.Event{Seq: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.Send(ctx, api.Event{Seq: 2}) // buffer full, blocks
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("send into a closed stream should fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send did not unblock on close")
	}

	// The buffered event is still deliverable before EOF.
	e, err := s.Recv(ctx)
	if err != nil || e.Seq != 1 {
		t.Fatalf("expected buffered event, got (%v, %v)", e, err)
	}
	if _, err := s.Recv(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after drain, got %v", err)
	}
}

func TestChannelEventStreamRecvHonorsContext(t *testing.T) {
	s := NewChannelEventStream(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
}

func TestMemoryEventLogReplay(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryEventLog()

	for i := 0; i < 3; i++ {
		e := api.Event{PromptID: "p1", Seq: int64(i), Type: api.EventContent}
		if err := log.Append(ctx, "p1", e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := log.Append(ctx, "p2", api.Event{PromptID: "p2", Type: api.EventFinished}); err != nil {
		t.Fatalf("append: %v", err)
	}

	stream, err := log.Replay(ctx, "p1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	defer stream.Close()

	var got []api.Event
	for {
		e, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		got = append(got, e)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 replayed events, got %d", len(got))
	}
	for i, e := range got {
		if e.Seq != int64(i) {
			t.Errorf("event %d out of order: seq %d", i, e.Seq)
		}
		if e.Ts.IsZero() {
			t.Errorf("event %d missing timestamp", i)
		}
	}
}

func TestMemoryEventLogReplayUnknownPrompt(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryEventLog()

	stream, err := log.Replay(ctx, "nope")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if _, err := stream.Recv(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("unknown prompt should replay empty, got %v", err)
	}
}
