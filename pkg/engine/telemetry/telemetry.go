// Package telemetry provides a fire-and-forget sink for engine diagnostics.
// A sink failure must never affect control flow.
package telemetry

import (
	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/logger"
)

// Sink receives engine diagnostics.
type Sink interface {
	CompressionOutcome(promptID string, info api.CompressionInfo)
	LoopDetected(promptID string, kind api.LoopKind)
	MalformedResponse(promptID string, detail string)
}

// Emit calls fn guarding against both nil sinks and panicking sinks.
func Emit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Telemetry", "Sink panicked", map[string]any{"panic": r})
		}
	}()
	fn()
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Implementations
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// LogSink writes telemetry into the structured log.
type LogSink struct{}

func (LogSink) CompressionOutcome(promptID string, info api.CompressionInfo) {
	logger.Info("Telemetry", "Compression outcome", map[string]any{
		"prompt_id":  promptID,
		"status":     string(info.Status),
		"old_tokens": info.OriginalTokenCount,
		"new_tokens": info.NewTokenCount,
	})
}

func (LogSink) LoopDetected(promptID string, kind api.LoopKind) {
	logger.Warn("Telemetry", "Loop detected", map[string]any{
		"prompt_id": promptID,
		"kind":      string(kind),
	})
}

func (LogSink) MalformedResponse(promptID string, detail string) {
	logger.Warn("Telemetry", "Malformed model response", map[string]any{
		"prompt_id": promptID,
		"detail":    detail,
	})
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) CompressionOutcome(string, api.CompressionInfo) {}
func (NopSink) LoopDetected(string, api.LoopKind)              {}
func (NopSink) MalformedResponse(string, string)               {}
