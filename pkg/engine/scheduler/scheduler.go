// Package scheduler owns the lifecycle of requested tool calls: validation,
// policy checks, the confirmation protocol and execution. It never inspects
// a tool beyond its declared contract.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/policy"
	"AgentCore/pkg/engine/tools"
	"AgentCore/pkg/logger"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Types
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// Confirmer supplies the interactive confirmation step when the bus answers
// ask-user. Typically backed by a terminal prompt.
type Confirmer interface {
	Confirm(ctx context.Context, call api.ToolCallRequest, details *api.ConfirmationDetails) (api.ConfirmationOutcome, error)
}

// ToolCall tracks one requested invocation through the state machine.
type ToolCall struct {
	Request api.ToolCallRequest
	Status  api.ToolCallStatus
	Outcome api.ConfirmationOutcome
	Result  api.ToolResult
}

// Options configures a Scheduler.
type Options struct {
	Registry      *tools.Registry
	Policy        policy.Policy
	PolicyContext policy.Context
	Bus           *Bus

	// Confirmer handles ask-user verdicts. When nil, ask-user calls are
	// cancelled rather than silently executed.
	Confirmer Confirmer

	// OnUpdate observes every status transition. Transitions for one call
	// are delivered in state-machine order; initial announcements across a
	// batch are delivered in request order.
	OnUpdate func(*ToolCall)
}

// Scheduler drives batches of tool calls. Safe for sequential reuse across
// turns; the always-allow set accumulated from "proceed always" outcomes
// persists for the scheduler's lifetime.
type Scheduler struct {
	registry  *tools.Registry
	policy    policy.Policy
	pctx      policy.Context
	bus       *Bus
	confirmer Confirmer
	onUpdate  func(*ToolCall)

	announceMu sync.Mutex

	mu            sync.Mutex
	alwaysAllowed map[string]bool
}

func New(opts Options) *Scheduler {
	pol := opts.Policy
	if pol == nil {
		pol = policy.NewDefaultPolicy()
	}
	bus := opts.Bus
	if bus == nil {
		bus = NewBus()
	}
	return &Scheduler{
		registry:      opts.Registry,
		policy:        pol,
		pctx:          opts.PolicyContext,
		bus:           bus,
		confirmer:     opts.Confirmer,
		onUpdate:      opts.OnUpdate,
		alwaysAllowed: make(map[string]bool),
	}
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Scheduling
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// prep is the outcome of the concurrent validation phase for one call.
type prep struct {
	tool        tools.Tool
	failKind    string
	failMsg     string
	needConfirm bool
	details     *api.ConfirmationDetails
}

// Schedule drives every call in the batch through the state machine and
// returns them in request order, each in a terminal state (unless the
// context was cancelled first, in which case not-yet-executing calls are
// left short of EXECUTING).
//
// Validation and confirmation-waits run concurrently across the batch, but
// the initial status announcements happen in request order. A hard denial
// blocks only its own call; an unresolved confirmation does not hold up
// approved siblings.
func (s *Scheduler) Schedule(ctx context.Context, reqs []api.ToolCallRequest) []*ToolCall {
	calls := make([]*ToolCall, len(reqs))
	for i, req := range reqs {
		calls[i] = &ToolCall{Request: req, Status: api.StatusValidating}
	}
	for _, c := range calls {
		s.announce(c)
	}

	// Phase 1: validate concurrently.
	preps := make([]prep, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c *ToolCall) {
			defer wg.Done()
			preps[i] = s.prepare(ctx, c.Request)
		}(i, c)
	}
	wg.Wait()

	// Phase 2: announce outcomes in request order.
	for i, c := range calls {
		p := preps[i]
		if p.failKind != "" {
			s.fail(c, p.failKind, p.failMsg)
			continue
		}
		c.Status = api.StatusScheduled
		s.announce(c)
	}

	// Phase 3: gate and execute concurrently.
	for i, c := range calls {
		if c.Status != api.StatusScheduled {
			continue
		}
		wg.Add(1)
		go func(c *ToolCall, p prep) {
			defer wg.Done()
			s.run(ctx, c, p)
		}(c, preps[i])
	}
	wg.Wait()
	return calls
}

func (s *Scheduler) prepare(ctx context.Context, req api.ToolCallRequest) prep {
	tool, ok := s.registry.Get(req.Name)
	if !ok {
		return prep{failKind: api.ErrToolNotFound, failMsg: fmt.Sprintf("tool %q is not registered", req.Name)}
	}
	if err := tool.Validate(req.Args); err != nil {
		return prep{failKind: api.ErrToolArgsInvalid, failMsg: err.Error()}
	}
	// Policy denial is a hard stop for this call, not a question.
	if err := s.policy.Validate(ctx, s.pctx, tool, req.Args); err != nil {
		kind := api.ErrPolicyDenied
		if perr, ok := err.(*policy.PolicyError); ok {
			kind = perr.Code
		}
		return prep{failKind: kind, failMsg: err.Error()}
	}

	p := prep{tool: tool}
	if s.pctx.ApprovalMode == api.ModeFullAuto || s.isAlwaysAllowed(req.Name) {
		return p
	}
	details, err := tool.ShouldConfirm(ctx, req.Args)
	if err != nil {
		return prep{failKind: api.ErrToolExecuteFailed, failMsg: err.Error()}
	}
	p.details = details
	p.needConfirm = details != nil || s.policy.NeedConfirmation(ctx, s.pctx, tool, req.Args)
	return p
}

func (s *Scheduler) run(ctx context.Context, c *ToolCall, p prep) {
	if ctx.Err() != nil {
		s.cancel(c, "cancelled before execution")
		return
	}

	if p.needConfirm {
		c.Status = api.StatusAwaitingApproval
		s.announce(c)

		switch s.bus.Check(ctx, ConfirmationRequest{
			CorrelationID: c.Request.CallID,
			Call:          c.Request,
			Details:       p.details,
		}) {
		case DecisionAllow:
			// Proceed without asking.
		case DecisionDeny:
			s.fail(c, api.ErrPolicyDenied, fmt.Sprintf("tool %q denied by policy", c.Request.Name))
			return
		case DecisionCancelled:
			s.cancel(c, "cancelled while awaiting confirmation")
			return
		case DecisionAskUser:
			if !s.confirmInteractive(ctx, c, p) {
				return
			}
		}
	}

	if ctx.Err() != nil {
		s.cancel(c, "cancelled before execution")
		return
	}

	c.Status = api.StatusExecuting
	s.announce(c)
	logger.Debug("Scheduler", "Executing tool", map[string]any{
		"tool":    c.Request.Name,
		"call_id": c.Request.CallID,
	})

	result, err := p.tool.Execute(ctx, c.Request.Args, nil)
	if err != nil {
		if ctx.Err() != nil {
			s.cancel(c, "cancelled during execution")
			return
		}
		s.fail(c, api.ErrToolExecuteFailed, err.Error())
		return
	}
	c.Result = result
	if result.Error != "" {
		c.Status = api.StatusError
	} else {
		c.Status = api.StatusSuccess
	}
	s.announce(c)
}

// confirmInteractive asks the user. Returns true when execution may proceed.
func (s *Scheduler) confirmInteractive(ctx context.Context, c *ToolCall, p prep) bool {
	if s.confirmer == nil {
		s.cancel(c, "no confirmation path available")
		return false
	}
	outcome, err := s.confirmer.Confirm(ctx, c.Request, p.details)
	if err != nil {
		s.cancel(c, "confirmation failed: "+err.Error())
		return false
	}
	c.Outcome = outcome
	switch outcome {
	case api.OutcomeProceedAlways:
		s.mu.Lock()
		s.alwaysAllowed[c.Request.Name] = true
		s.mu.Unlock()
		return true
	case api.OutcomeProceed:
		return true
	default:
		s.cancel(c, "rejected by user")
		return false
	}
}

func (s *Scheduler) isAlwaysAllowed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alwaysAllowed[name]
}

func (s *Scheduler) fail(c *ToolCall, kind, msg string) {
	c.Status = api.StatusError
	c.Result = api.ToolResult{Content: msg, Error: msg, ErrorKind: kind}
	s.announce(c)
}

func (s *Scheduler) cancel(c *ToolCall, reason string) {
	c.Status = api.StatusCancelled
	c.Result = api.ToolResult{Content: reason, Error: reason, ErrorKind: api.ErrUserCancelled}
	s.announce(c)
}

func (s *Scheduler) announce(c *ToolCall) {
	if s.onUpdate == nil {
		return
	}
	s.announceMu.Lock()
	defer s.announceMu.Unlock()
	s.onUpdate(c)
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Responses
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// ToResponses folds a finished batch into the single function-response turn
// the model expects, in request order.
func ToResponses(calls []*ToolCall) api.Content {
	parts := make([]api.Part, 0, len(calls))
	for _, c := range calls {
		resp := map[string]any{}
		if c.Result.Error != "" {
			resp["error"] = c.Result.Error
		} else {
			resp["output"] = c.Result.Content
		}
		parts = append(parts, api.Part{FunctionResponse: &api.FunctionResponse{
			ID:       c.Request.CallID,
			Name:     c.Request.Name,
			Response: resp,
		}})
	}
	return api.Content{Role: api.RoleUser, Parts: parts}
}
