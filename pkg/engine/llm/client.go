// Package llm defines the model transport consumed by the agent core, a
// unified error taxonomy for classifying remote failures, and the
// retry/fallback policy that wraps every remote call.
package llm

import (
	"context"

	"AgentCore/pkg/engine/api"
)

// Client is the model transport. Implementations must surface structured
// errors (see errors.go) sufficient to classify transient vs quota vs fatal
// failures.
type Client interface {
	// GenerateContentStream starts a streaming generation call.
	GenerateContentStream(ctx context.Context, req Request) (Stream, error)

	// GenerateContent performs a non-streaming generation call.
	GenerateContent(ctx context.Context, req Request) (*Response, error)

	// CountTokens returns the token count of the given contents for a model.
	CountTokens(ctx context.Context, model string, contents []api.Content) (int, error)
}

// Request is a single generation request.
type Request struct {
	Model             string
	Contents          []api.Content
	Tools             []api.ToolSchema
	SystemInstruction string
	MaxOutputTokens   int

	// ResponseJSON asks the model for a JSON-only answer (used by the
	// next-speaker check and other structured probes).
	ResponseJSON bool
}

// Chunk is one streamed increment of a generation.
type Chunk struct {
	Text         string
	Thought      bool
	FunctionCall *api.FunctionCall
	FinishReason string
}

// Stream is a streaming response. Recv returns io.EOF at end of stream.
type Stream interface {
	Recv(ctx context.Context) (Chunk, error)
	Close() error
}

// Response is a complete non-streaming generation result.
type Response struct {
	Text          string
	FunctionCalls []api.FunctionCall
	FinishReason  string
}
