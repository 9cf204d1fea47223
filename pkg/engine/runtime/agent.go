package runtime

import (
	"context"
	"errors"
	"io"

	"github.com/oklog/ulid/v2"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/scheduler"
	"AgentCore/pkg/logger"
)

// Agent owns the full agentic loop: it drives the orchestrator, hands
// surfaced tool calls to the scheduler, feeds results back as function
// responses and continues until the model has nothing left to do.
type Agent struct {
	orch  *Orchestrator
	sched *scheduler.Scheduler

	// OnEvent observes every stream event. Optional. Tool-call status
	// transitions are observed through the scheduler's own OnUpdate.
	OnEvent func(api.Event)
}

func NewAgent(orch *Orchestrator, sched *scheduler.Scheduler) *Agent {
	return &Agent{orch: orch, sched: sched}
}

// Run processes one user message to completion, including any tool rounds
// and auto-continuations. Returns the terminal finish reason of the last
// turn.
func (a *Agent) Run(ctx context.Context, userText string) (string, error) {
	promptID := ulid.Make().String()
	parts := []api.Part{{Text: userText}}

	for {
		stream, turn := a.orch.SendMessageStream(ctx, parts, promptID, MaxContinuationDepth)

		if err := a.drain(ctx, stream); err != nil {
			return turn.FinishReason, err
		}

		if len(turn.PendingCalls) == 0 {
			return turn.FinishReason, nil
		}

		logger.Debug("Agent", "Scheduling tool calls", map[string]any{
			"prompt_id": promptID,
			"count":     len(turn.PendingCalls),
		})
		calls := a.sched.Schedule(ctx, turn.PendingCalls)
		if ctx.Err() != nil {
			return turn.FinishReason, ctx.Err()
		}

		// The next round's user message is the batch of function
		// responses, in request order.
		parts = scheduler.ToResponses(calls).Parts
	}
}

func (a *Agent) drain(ctx context.Context, stream api.EventStream) error {
	defer stream.Close()
	for {
		e, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if a.OnEvent != nil {
			a.OnEvent(e)
		}
	}
}
