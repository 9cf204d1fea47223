package runtime

import (
	"AgentCore/pkg/engine/api"
)

// Turn is one orchestrator invocation cycle bound to a prompt id, including
// any auto-continuation. It accumulates the tool-call requests surfaced while
// draining the stream and records the terminal finish reason. The caller
// holds it across the stream's lifetime; fields are safe to read once the
// stream has ended.
type Turn struct {
	PromptID     string
	PendingCalls []api.ToolCallRequest
	FinishReason string
}
