package runtime

import (
	"context"
	"errors"
	"io"
	"testing"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/llm"
)

func collect(t *testing.T, s api.EventStream) []api.Event {
	t.Helper()
	var events []api.Event
	for {
		e, err := s.Recv(context.Background())
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		events = append(events, e)
	}
}

func types(events []api.Event) []api.EventType {
	out := make([]api.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func newOrchestrator(client llm.Client, opts func(*Options)) *Orchestrator {
	o := Options{
		Client: client,
		Model:  testModel,
	}
	if opts != nil {
		opts(&o)
	}
	return NewOrchestrator(o)
}

func TestZeroTurnsRemainingYieldsEmptyStream(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn("never"))
	orch := newOrchestrator(client, nil)

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "hi"}}, "p1", 0)
	events := collect(t, stream)
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
	if len(client.Requests) != 0 {
		t.Fatal("model was called with no turn budget")
	}
	if turn.FinishReason != "" || len(turn.PendingCalls) != 0 {
		t.Fatalf("turn has side effects: %+v", turn)
	}
	if orch.History().Len() != 0 {
		t.Fatal("history mutated with no turn budget")
	}
}

func TestMaxSessionTurnsHardStop(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn("a"), llm.TextTurn("b"))
	orch := newOrchestrator(client, func(o *Options) { o.MaxSessionTurns = 2 })

	for i := 0; i < 2; i++ {
		stream, _ := orch.SendMessageStream(context.Background(), []api.Part{{Text: "hi"}}, "p1", 1)
		collect(t, stream)
	}
	requestsBefore := len(client.Requests)

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "again"}}, "p2", 1)
	events := collect(t, stream)
	if len(events) != 1 || events[0].Type != api.EventMaxSessionTurns {
		t.Fatalf("events = %v, want exactly one max_session_turns", types(events))
	}
	if len(client.Requests) != requestsBefore {
		t.Fatal("model was called past the session cap")
	}
	if turn.FinishReason != "max_session_turns" {
		t.Fatalf("finish reason = %q", turn.FinishReason)
	}
}

func TestContentStreamAndHistoryRecording(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn("hello there"))
	orch := newOrchestrator(client, nil)

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "hi"}}, "p1", 1)
	events := collect(t, stream)

	want := []api.EventType{api.EventContent, api.EventFinished}
	got := types(events)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if events[0].Content.Text != "hello there" {
		t.Errorf("content = %q", events[0].Content.Text)
	}
	if turn.FinishReason != "stop" {
		t.Errorf("finish reason = %q", turn.FinishReason)
	}

	full := orch.History().Full()
	if len(full) != 2 || full[0].Role != api.RoleUser || full[1].Role != api.RoleModel {
		t.Fatalf("history = %+v", full)
	}
	// Events carry stamped metadata.
	if events[0].PromptID != "p1" || events[0].Seq == 0 {
		t.Errorf("event metadata missing: %+v", events[0])
	}
}

func TestNextSpeakerContinuationLoops(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.TextTurn("First I will check the files."),
		llm.TextTurn(`{"reasoning":"stated next action","next_speaker":"model"}`),
		llm.TextTurn("All done."),
		llm.TextTurn(`{"reasoning":"task complete","next_speaker":"user"}`),
	)
	orch := newOrchestrator(client, nil)

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "go"}}, "p1", 3)
	events := collect(t, stream)

	var contents int
	for _, e := range events {
		if e.Type == api.EventContent {
			contents++
		}
	}
	if contents != 2 {
		t.Fatalf("got %d content events across continuation, want 2", contents)
	}
	if turn.FinishReason != "stop" {
		t.Fatalf("finish reason = %q", turn.FinishReason)
	}

	// The synthetic continuation request is recorded as user input.
	sawContinue := false
	for _, c := range orch.History().Full() {
		if c.Role == api.RoleUser && c.Text() == "Please continue." {
			sawContinue = true
		}
	}
	if !sawContinue {
		t.Fatal("continuation prompt missing from history")
	}
}

func TestToolCallsSurfaceWithGeneratedIDs(t *testing.T) {
	client := llm.NewScriptedClient(llm.CallTurn("", "read_file", api.Args{"path": "x"}))
	orch := newOrchestrator(client, nil)

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "read x"}}, "p1", 3)
	events := collect(t, stream)

	got := types(events)
	if len(got) != 2 || got[0] != api.EventToolCallRequest || got[1] != api.EventFinished {
		t.Fatalf("events = %v", got)
	}
	if events[1].Finished.Reason != "tool_calls" {
		t.Errorf("finish reason = %q", events[1].Finished.Reason)
	}
	if len(turn.PendingCalls) != 1 {
		t.Fatalf("pending calls = %d", len(turn.PendingCalls))
	}
	if turn.PendingCalls[0].CallID == "" {
		t.Error("missing generated call id")
	}
	if turn.PendingCalls[0].PromptID != "p1" {
		t.Errorf("prompt id = %q", turn.PendingCalls[0].PromptID)
	}
	// No auto-continuation probe when tool calls are pending.
	if len(client.Requests) != 1 {
		t.Fatalf("model called %d times, want 1", len(client.Requests))
	}
}

func TestLoopDetectionAbortsTurn(t *testing.T) {
	fc := api.FunctionCall{ID: "c1", Name: "list_dir", Args: api.Args{"path": "."}}
	client := llm.NewScriptedClient(llm.ScriptedTurn{Chunks: []llm.Chunk{
		{FunctionCall: &fc}, {FunctionCall: &fc}, {FunctionCall: &fc},
	}})
	orch := newOrchestrator(client, nil)

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "go"}}, "p1", 3)
	events := collect(t, stream)

	last := events[len(events)-1]
	if last.Type != api.EventLoopDetected {
		t.Fatalf("last event = %s, want loop_detected", last.Type)
	}
	if last.LoopDetected.Kind != api.LoopToolCalls {
		t.Errorf("kind = %s", last.LoopDetected.Kind)
	}
	if len(turn.PendingCalls) != 0 {
		t.Error("aborted turn still carries pending calls")
	}
	if turn.FinishReason != "aborted" {
		t.Errorf("finish reason = %q", turn.FinishReason)
	}
}

func TestStreamStartFailureEmitsError(t *testing.T) {
	client := llm.NewScriptedClient(llm.ErrTurn(llm.ErrorFromHTTPStatus(400, "bad request", nil)))
	orch := newOrchestrator(client, nil)

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "hi"}}, "p1", 1)
	events := collect(t, stream)

	if len(events) != 1 || events[0].Type != api.EventError {
		t.Fatalf("events = %v", types(events))
	}
	if events[0].Error.Code != api.ErrModelStream {
		t.Errorf("error code = %s", events[0].Error.Code)
	}
	if turn.FinishReason != "error" {
		t.Errorf("finish reason = %q", turn.FinishReason)
	}
}

func TestQuotaFallbackSuppressesContinuation(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.ErrTurn(llm.ErrorFromHTTPStatus(429, "quota exhausted", nil)),
		llm.TextTurn("Answer from the fallback model. Next, I will keep going."),
	)
	orch := newOrchestrator(client, func(o *Options) {
		p := llm.DefaultRetryPolicy()
		p.Consecutive429Threshold = 1
		o.RetryPolicy = p
		o.Fallback = func(ctx context.Context, attemptedModel, authMode string, err error) (string, bool) {
			return "gemini-2.5-flash", true
		}
	})

	stream, turn := orch.SendMessageStream(context.Background(), []api.Part{{Text: "hi"}}, "p1", 3)
	events := collect(t, stream)

	if turn.FinishReason != "stop" {
		t.Fatalf("finish reason = %q, events %v", turn.FinishReason, types(events))
	}
	// Two model calls: the 429 and the fallback retry. No next-speaker
	// probe after a mid-call model change, so no third request.
	if len(client.Requests) != 2 {
		t.Fatalf("model called %d times, want 2", len(client.Requests))
	}
	if m := client.Requests[1].Model; m != "gemini-2.5-flash" {
		t.Errorf("retried on %q, want the substituted model", m)
	}
}

func TestCancelledContextEndsStream(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn("hello"))
	orch := newOrchestrator(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream, _ := orch.SendMessageStream(ctx, []api.Part{{Text: "hi"}}, "p1", 1)

	_, err := stream.Recv(ctx)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		t.Fatalf("recv after cancel: %v", err)
	}
}
