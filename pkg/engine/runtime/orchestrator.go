// Package runtime contains the turn orchestrator: the top-level driver that
// sends a request, streams back model output, interleaves compression and
// loop checks, decides whether the model should keep talking, and enforces
// the session turn cap.
package runtime

import (
	"context"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/history"
	"AgentCore/pkg/engine/llm"
	"AgentCore/pkg/engine/loop"
	"AgentCore/pkg/engine/prompts"
	"AgentCore/pkg/engine/store"
	"AgentCore/pkg/engine/telemetry"
	"AgentCore/pkg/engine/tools"
	"AgentCore/pkg/logger"
)

// MaxContinuationDepth caps auto-continuation regardless of the caller's
// turns-remaining budget, guaranteeing termination.
const MaxContinuationDepth = 100

// Options configures an Orchestrator.
type Options struct {
	Client   llm.Client
	History  *history.History
	Registry *tools.Registry
	Loader   *prompts.Loader
	Sink     telemetry.Sink

	// EventLog, when set, records every emitted event for replay.
	EventLog store.EventLog

	Model             string
	SystemInstruction string
	AuthMode          string

	// MaxSessionTurns, when >0, hard-stops the session after that many
	// orchestrator invocations.
	MaxSessionTurns int

	RetryPolicy llm.RetryPolicy
	Fallback    llm.FallbackHook
}

// Orchestrator drives model turns for one session. Not safe for concurrent
// SendMessageStream calls; a session runs one turn at a time.
type Orchestrator struct {
	client     llm.Client
	hist       *history.History
	registry   *tools.Registry
	loader     *prompts.Loader
	sink       telemetry.Sink
	eventLog   store.EventLog
	detector   *loop.Detector
	compressor *Compressor

	model           string
	system          string
	authMode        string
	maxSessionTurns int
	retryPolicy     llm.RetryPolicy
	fallback        llm.FallbackHook

	sessionTurns   int
	lastPromptID   string
	pendingContext []api.Part
}

func NewOrchestrator(opts Options) *Orchestrator {
	loader := opts.Loader
	if loader == nil {
		loader = prompts.DefaultLoader
	}
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	hist := opts.History
	if hist == nil {
		hist = history.New()
	}
	policy := opts.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = llm.DefaultRetryPolicy()
	}
	return &Orchestrator{
		client:          opts.Client,
		hist:            hist,
		registry:        opts.Registry,
		loader:          loader,
		sink:            sink,
		eventLog:        opts.EventLog,
		detector:        loop.NewDetector(),
		compressor:      NewCompressor(opts.Client, hist, loader, sink),
		model:           opts.Model,
		system:          opts.SystemInstruction,
		authMode:        opts.AuthMode,
		maxSessionTurns: opts.MaxSessionTurns,
		retryPolicy:     policy,
		fallback:        opts.Fallback,
	}
}

// Compressor exposes the session's compression engine, mainly so a caller
// can force a compression round or clear the sticky failure flag.
func (o *Orchestrator) Compressor() *Compressor { return o.compressor }

// History returns the session history the orchestrator mutates.
func (o *Orchestrator) History() *history.History { return o.hist }

// InjectContext queues side context (editor state, environment notes) to be
// folded into the next user message. Held back while a function response is
// owed, since injecting user content then would corrupt the call/response
// adjacency the remote API requires.
func (o *Orchestrator) InjectContext(parts []api.Part) {
	o.pendingContext = append(o.pendingContext, parts...)
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// SendMessageStream
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// SendMessageStream starts one turn. The returned stream yields events
// lazily; the Turn is authoritative once the stream has ended. A
// turnsRemaining of zero or less produces an empty stream with no side
// effects.
func (o *Orchestrator) SendMessageStream(ctx context.Context, parts []api.Part, promptID string, turnsRemaining int) (api.EventStream, *Turn) {
	stream := store.NewChannelEventStream(16)
	turn := &Turn{PromptID: promptID}
	go o.run(ctx, stream, turn, parts, promptID, turnsRemaining)
	return stream, turn
}

// emitter stamps and records events on their way out.
type emitter struct {
	ctx      context.Context
	stream   *store.ChannelEventStream
	log      store.EventLog
	promptID string
	seq      int64
}

func (e *emitter) emit(ev api.Event) error {
	e.seq++
	ev.PromptID = e.promptID
	ev.Seq = e.seq
	ev.Ts = time.Now()
	if e.log != nil {
		_ = e.log.Append(e.ctx, e.promptID, ev)
	}
	return e.stream.Send(e.ctx, ev)
}

func (o *Orchestrator) run(ctx context.Context, stream *store.ChannelEventStream, turn *Turn, parts []api.Part, promptID string, turnsRemaining int) {
	defer stream.Close()
	em := &emitter{ctx: ctx, stream: stream, log: o.eventLog, promptID: promptID}

	if turnsRemaining <= 0 {
		return
	}
	if turnsRemaining > MaxContinuationDepth {
		turnsRemaining = MaxContinuationDepth
	}

	o.sessionTurns++
	if o.maxSessionTurns > 0 && o.sessionTurns > o.maxSessionTurns {
		// Hard stop, not retryable. No model call is issued.
		_ = em.emit(api.Event{Type: api.EventMaxSessionTurns})
		turn.FinishReason = "max_session_turns"
		return
	}

	// A changed prompt id means a new user-initiated request.
	if promptID != o.lastPromptID {
		o.detector.Reset(promptID)
		o.lastPromptID = promptID
	}

	currentModel := o.model

	for {
		if ctx.Err() != nil {
			return
		}

		info, err := o.compressor.TryCompress(ctx, currentModel, promptID, false)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("Orchestrator", "Compression attempt errored", map[string]any{"error": err.Error()})
		} else if info.Status == api.CompressionCompressed {
			c := info
			if err := em.emit(api.Event{Type: api.EventChatCompressed, Compression: &c}); err != nil {
				return
			}
		}

		parts = o.withInjectedContext(parts)
		o.hist.Add(api.Content{Role: api.RoleUser, Parts: parts})

		modelStream, err := o.startStream(ctx, &currentModel)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			_ = em.emit(api.Event{Type: api.EventError, Error: &api.ErrorPayload{
				Code:    api.ErrModelStream,
				Message: err.Error(),
			}})
			turn.FinishReason = "error"
			return
		}

		modelParts, calls, aborted := o.drainStream(ctx, em, modelStream, promptID)
		if len(modelParts) > 0 {
			o.hist.Add(api.Content{Role: api.RoleModel, Parts: modelParts})
		}
		if aborted {
			turn.FinishReason = "aborted"
			return
		}

		if len(calls) > 0 {
			turn.PendingCalls = append(turn.PendingCalls, calls...)
			turn.FinishReason = "tool_calls"
			_ = em.emit(api.Event{Type: api.EventFinished, Finished: &api.FinishedPayload{Reason: "tool_calls"}})
			return
		}

		// A mid-call model change means quota fallback happened; keep
		// quiet rather than auto-continuing on a weaker model.
		modelChanged := currentModel != o.model
		if turnsRemaining > 1 && !modelChanged &&
			checkNextSpeaker(ctx, o.client, currentModel, o.hist.Curated(), o.loader) == speakerModel {
			parts = []api.Part{{Text: o.loader.Get(prompts.Continue)}}
			turnsRemaining--
			continue
		}

		turn.FinishReason = "stop"
		_ = em.emit(api.Event{Type: api.EventFinished, Finished: &api.FinishedPayload{Reason: "stop"}})
		return
	}
}

// withInjectedContext folds queued side context into the outgoing user parts
// unless a function response is still owed.
func (o *Orchestrator) withInjectedContext(parts []api.Part) []api.Part {
	if len(o.pendingContext) == 0 || o.hist.PendingFunctionResponse() {
		return parts
	}
	merged := append(append([]api.Part(nil), o.pendingContext...), parts...)
	o.pendingContext = nil
	return merged
}

// startStream opens the model stream through the retry/fallback wrapper. The
// model pointer is updated when a quota fallback substitutes a different one.
func (o *Orchestrator) startStream(ctx context.Context, model *string) (llm.Stream, error) {
	req := llm.Request{
		Contents:          o.hist.Curated(),
		SystemInstruction: o.system,
	}
	if o.registry != nil {
		req.Tools = o.registry.Schemas()
	}

	return llm.Retry(ctx, o.retryPolicy, nil, o.fallback, *model, o.authMode,
		func(ctx context.Context, attemptModel string) (llm.Stream, error) {
			*model = attemptModel
			r := req
			r.Model = attemptModel
			return o.client.GenerateContentStream(ctx, r)
		})
}

// drainStream forwards chunks as events, feeding each one to the loop
// detector. Returns the accumulated model parts, the tool-call requests, and
// whether the turn was aborted (loop, cancellation or stream error).
func (o *Orchestrator) drainStream(ctx context.Context, em *emitter, s llm.Stream, promptID string) (modelParts []api.Part, calls []api.ToolCallRequest, aborted bool) {
	defer s.Close()

	for {
		chunk, err := s.Recv(ctx)
		if err == io.EOF {
			return modelParts, calls, false
		}
		if err != nil {
			if ctx.Err() != nil {
				return modelParts, calls, true
			}
			_ = em.emit(api.Event{Type: api.EventError, Error: &api.ErrorPayload{
				Code:    api.ErrModelStream,
				Message: err.Error(),
			}})
			return modelParts, calls, true
		}

		var ev api.Event
		switch {
		case chunk.FunctionCall != nil:
			fc := *chunk.FunctionCall
			if fc.ID == "" {
				fc.ID = ulid.Make().String()
			}
			modelParts = append(modelParts, api.Part{FunctionCall: &fc})
			req := api.ToolCallRequest{
				CallID:   fc.ID,
				Name:     fc.Name,
				Args:     fc.Args,
				PromptID: promptID,
			}
			calls = append(calls, req)
			r := req
			ev = api.Event{Type: api.EventToolCallRequest, ToolCallRequest: &r}

		case chunk.Thought:
			modelParts = append(modelParts, api.Part{Text: chunk.Text, Thought: true})
			ev = api.Event{Type: api.EventThought, Thought: &api.ThoughtPayload{Text: chunk.Text}}

		case chunk.Text != "":
			modelParts = append(modelParts, api.Part{Text: chunk.Text})
			ev = api.Event{Type: api.EventContent, Content: &api.ContentPayload{Text: chunk.Text}}

		default:
			continue // bare finish-reason chunk
		}

		if o.detector.AddAndCheck(ev) {
			kind := o.detector.Kind()
			telemetry.Emit(func() { o.sink.LoopDetected(promptID, kind) })
			_ = em.emit(api.Event{Type: api.EventLoopDetected, LoopDetected: &api.LoopPayload{Kind: kind}})
			return modelParts, nil, true
		}
		if err := em.emit(ev); err != nil {
			return modelParts, calls, true
		}
	}
}
