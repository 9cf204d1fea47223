// Package api defines the stable public types for the agent core.
// All external interactions with the engine use these types.
package api

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Conversation Content
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// Role identifies the author of a conversation entry.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one element of a conversation entry. Exactly one of the payload
// fields should be set. Thought marks model reasoning text that is shown to
// the user but excluded from curated history.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// FunctionCall is a model-requested tool invocation.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model. The ID must match
// the originating FunctionCall.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Content is one entry of the conversation history.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// TextContent builds a single-part text entry for the given role.
func TextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// HasFunctionCall reports whether any part of c is a function call.
func (c Content) HasFunctionCall() bool {
	for _, p := range c.Parts {
		if p.FunctionCall != nil {
			return true
		}
	}
	return false
}

// IsFunctionResponse reports whether c consists solely of function responses.
// Such entries are glue between a model call and its tool results, never a
// real user turn.
func (c Content) IsFunctionResponse() bool {
	if len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

// Text concatenates all non-thought text parts.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if p.Text != "" && !p.Thought {
			out += p.Text
		}
	}
	return out
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Tool Contract Types
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// Args is the canonical argument container for tools.
type Args = map[string]any

// ToolKind separates read-only tools from tools with filesystem or process
// side effects. A mutator tool must never execute before its own confirmation
// resolves.
type ToolKind string

const (
	KindReadOnly ToolKind = "read_only"
	KindMutator  ToolKind = "mutator"
)

// ToolSchema is the model-exposed tool declaration.
type ToolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"` // JSON Schema
}

// ToolResult is the outcome of a tool execution.
type ToolResult struct {
	// Content is the text fed back to the model as the function response.
	Content string `json:"content"`
	// Display is an optional user-facing rendering (e.g. a diff).
	Display string `json:"display,omitempty"`
	// Error is set for terminal execution failures; the model sees it too.
	Error string `json:"error,omitempty"`
	// ErrorKind is a machine-readable classification of Error.
	ErrorKind string `json:"error_kind,omitempty"`
}

// ToolCallRequest is a model-requested tool invocation as surfaced to the
// scheduler. CallID is caller supplied and unique within a turn; it is the
// correlation key for confirmation and result routing.
type ToolCallRequest struct {
	CallID   string `json:"call_id"`
	Name     string `json:"name"`
	Args     Args   `json:"args"`
	PromptID string `json:"prompt_id"`
}

// ToolCallStatus is the scheduler-visible lifecycle state of one call.
type ToolCallStatus string

const (
	StatusValidating       ToolCallStatus = "validating"
	StatusScheduled        ToolCallStatus = "scheduled"
	StatusAwaitingApproval ToolCallStatus = "awaiting_approval"
	StatusExecuting        ToolCallStatus = "executing"
	StatusSuccess          ToolCallStatus = "success"
	StatusError            ToolCallStatus = "error"
	StatusCancelled        ToolCallStatus = "cancelled"
)

// Terminal reports whether s is a terminal state.
func (s ToolCallStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusCancelled:
		return true
	}
	return false
}

// ConfirmationDetails describes what a tool is about to do, for approval UIs.
type ConfirmationDetails struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Command     string `json:"command,omitempty"`
	Diff        string `json:"diff,omitempty"`
}

// ConfirmationOutcome is the interactive confirmer's decision.
type ConfirmationOutcome string

const (
	OutcomeProceed       ConfirmationOutcome = "proceed"
	OutcomeProceedAlways ConfirmationOutcome = "proceed_always"
	OutcomeCancel        ConfirmationOutcome = "cancel"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Approval Mode
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// ApprovalMode determines when tool calls require user approval.
type ApprovalMode string

const (
	// ModeSuggest requires approval for all tool calls (safest)
	ModeSuggest ApprovalMode = "suggest"

	// ModeAuto requires approval only for mutator tools (default)
	ModeAuto ApprovalMode = "auto"

	// ModeFullAuto skips approval but still validates (trusted environments only)
	ModeFullAuto ApprovalMode = "full-auto"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Compression
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// CompressionStatus is the terminal status of one compression attempt.
type CompressionStatus string

const (
	CompressionNoop                  CompressionStatus = "noop"
	CompressionCompressed            CompressionStatus = "compressed"
	CompressionFailedTokenCountError CompressionStatus = "failed_token_count_error"
	CompressionFailedInflatedCount   CompressionStatus = "failed_inflated_count"
)

// CompressionInfo is emitted once per compression attempt. Never mutated
// after creation.
type CompressionInfo struct {
	OriginalTokenCount int               `json:"original_token_count"`
	NewTokenCount      int               `json:"new_token_count"`
	Status             CompressionStatus `json:"status"`
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Standard Error Codes
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

const (
	ErrToolNotFound      = "tool_not_found"
	ErrToolArgsInvalid   = "tool_args_invalid"
	ErrPolicyDenied      = "policy_denied"
	ErrWorkspaceEscape   = "workspace_escape"
	ErrToolExecuteFailed = "tool_execute_failed"
	ErrUserCancelled     = "user_cancelled"
	ErrModelStream       = "model_stream_error"
	ErrTurnLimit         = "turn_limit"
)
