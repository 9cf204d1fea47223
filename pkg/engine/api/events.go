package api

import (
	"context"
	"time"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// EventStream Interface
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// EventStream is the lazy, cancelable sequence of events produced by a turn.
type EventStream interface {
	// Recv returns the next event. io.EOF indicates stream end.
	Recv(ctx context.Context) (Event, error)

	// Close releases stream resources.
	Close() error
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Event Types
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// EventType identifies the kind of event.
type EventType string

const (
	EventContent         EventType = "content"
	EventThought         EventType = "thought"
	EventToolCallRequest EventType = "tool_call_request"
	EventChatCompressed  EventType = "chat_compressed"
	EventLoopDetected    EventType = "loop_detected"
	EventMaxSessionTurns EventType = "max_session_turns"
	EventError           EventType = "error"
	EventFinished        EventType = "finished"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Event (Strict Union)
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// Event is the unified output type. Only one payload should be non-nil.
type Event struct {
	PromptID string    `json:"prompt_id"`
	Seq      int64     `json:"seq"` // Monotonically increasing within a turn
	Type     EventType `json:"type"`
	Ts       time.Time `json:"ts"`

	// Strict union: exactly one payload should be non-nil
	Content         *ContentPayload  `json:"content,omitempty"`
	Thought         *ThoughtPayload  `json:"thought,omitempty"`
	ToolCallRequest *ToolCallRequest `json:"tool_call_request,omitempty"`
	Compression     *CompressionInfo `json:"compression,omitempty"`
	LoopDetected    *LoopPayload     `json:"loop_detected,omitempty"`
	Error           *ErrorPayload    `json:"error,omitempty"`
	Finished        *FinishedPayload `json:"finished,omitempty"`
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Payload Types
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// ContentPayload carries a streamed model text increment.
type ContentPayload struct {
	Text string `json:"text"`
}

// ThoughtPayload carries a streamed reasoning summary.
type ThoughtPayload struct {
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text"`
}

// LoopKind classifies what kind of repetition tripped the detector.
type LoopKind string

const (
	LoopToolCalls LoopKind = "consecutive_identical_tool_calls"
	LoopContent   LoopKind = "repetitive_content"
)

// LoopPayload reports a detected unproductive loop. The turn is aborted;
// choosing a recovery strategy is the caller's job.
type LoopPayload struct {
	Kind LoopKind `json:"kind"`
}

// ErrorPayload contains error information.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FinishedPayload marks clean turn completion.
type FinishedPayload struct {
	Reason string `json:"reason,omitempty"` // e.g. "stop", "tool_calls", "cancelled"
}
