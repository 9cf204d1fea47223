package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/history"
	"AgentCore/pkg/engine/llm"
	"AgentCore/pkg/engine/prompts"
	"AgentCore/pkg/engine/telemetry"
	"AgentCore/pkg/logger"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Compression Engine
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

const (
	// DefaultTokenThreshold is the fraction of the model's context window
	// at which compression kicks in.
	DefaultTokenThreshold = 0.7

	// DefaultPreserveFraction is the fraction of recent history (by
	// serialized size) kept verbatim.
	DefaultPreserveFraction = 0.3
)

// Compressor decides whether and how to replace an older prefix of history
// with a model-generated snapshot. One Compressor serves one session.
type Compressor struct {
	client llm.Client
	hist   *history.History
	loader *prompts.Loader
	sink   telemetry.Sink

	// TokenThreshold and PreserveFraction override the defaults when >0.
	TokenThreshold   float64
	PreserveFraction float64

	// failed is the sticky failure flag: once an unforced attempt fails,
	// further unforced attempts are skipped for the rest of the session.
	failed bool
}

func NewCompressor(client llm.Client, hist *history.History, loader *prompts.Loader, sink telemetry.Sink) *Compressor {
	if loader == nil {
		loader = prompts.DefaultLoader
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Compressor{client: client, hist: hist, loader: loader, sink: sink}
}

// ResetFailure clears the sticky failure flag, as when a fresh chat starts.
func (c *Compressor) ResetFailure() { c.failed = false }

func (c *Compressor) threshold() float64 {
	if c.TokenThreshold > 0 {
		return c.TokenThreshold
	}
	return DefaultTokenThreshold
}

func (c *Compressor) preserve() float64 {
	if c.PreserveFraction > 0 {
		return c.PreserveFraction
	}
	return DefaultPreserveFraction
}

// TryCompress counts tokens in the curated history and, if over budget (or
// forced), rewrites the session history as [snapshot, acknowledgement,
// retained suffix]. The rewritten history only becomes canonical after its
// token count is re-measured and confirmed smaller; an inflated result rolls
// back. Token-accounting failures are non-fatal: they mark the sticky flag
// (unless forced) and surface through the returned status.
func (c *Compressor) TryCompress(ctx context.Context, model, promptID string, force bool) (api.CompressionInfo, error) {
	info := api.CompressionInfo{Status: api.CompressionNoop}

	curated := c.hist.Curated()
	if len(curated) == 0 {
		return info, nil
	}
	if c.failed && !force {
		return info, nil
	}

	originalCount, err := c.client.CountTokens(ctx, model, curated)
	if err != nil {
		if ctx.Err() != nil {
			return info, ctx.Err()
		}
		if !force {
			c.failed = true
		}
		info.Status = api.CompressionFailedTokenCountError
		c.report(promptID, info)
		return info, nil
	}
	info.OriginalTokenCount = originalCount

	window := llm.ContextWindowFor(model)
	if !force && float64(originalCount) < c.threshold()*float64(window) {
		return info, nil
	}

	split := findSplitIndex(curated, 1.0-c.preserve())
	if split <= 0 || split >= len(curated) {
		return info, nil
	}
	prefix, suffix := curated[:split], curated[split:]

	summary, err := c.summarize(ctx, model, prefix)
	if err != nil {
		return info, fmt.Errorf("summarize history: %w", err)
	}

	rewritten := make([]api.Content, 0, len(suffix)+2)
	rewritten = append(rewritten,
		api.TextContent(api.RoleUser, summary),
		api.TextContent(api.RoleModel, c.loader.Get(prompts.CompressAck)),
	)
	rewritten = append(rewritten, suffix...)

	newCount, err := c.client.CountTokens(ctx, model, history.Curate(rewritten))
	if err != nil {
		if ctx.Err() != nil {
			return info, ctx.Err()
		}
		if !force {
			c.failed = true
		}
		info.Status = api.CompressionFailedTokenCountError
		c.report(promptID, info)
		return info, nil
	}
	info.NewTokenCount = newCount

	if newCount >= originalCount {
		// Summarizing made things worse; keep the original history.
		if !force {
			c.failed = true
		}
		info.Status = api.CompressionFailedInflatedCount
		logger.Warn("Compressor", "Compression inflated the history, rolling back", map[string]any{
			"original_tokens": originalCount,
			"new_tokens":      newCount,
		})
		c.report(promptID, info)
		return info, nil
	}

	c.hist.Replace(rewritten)
	info.Status = api.CompressionCompressed
	logger.Info("Compressor", "History compressed", map[string]any{
		"original_tokens": originalCount,
		"new_tokens":      newCount,
		"dropped_entries": split,
	})
	c.report(promptID, info)
	return info, nil
}

func (c *Compressor) summarize(ctx context.Context, model string, prefix []api.Content) (string, error) {
	contents := make([]api.Content, 0, len(prefix)+1)
	contents = append(contents, prefix...)
	contents = append(contents, api.TextContent(api.RoleUser,
		"First, reason through the entire history. Then, generate the <state_snapshot>."))

	resp, err := c.client.GenerateContent(ctx, llm.Request{
		Model:             model,
		Contents:          contents,
		SystemInstruction: c.loader.Get(prompts.CompressSummary),
	})
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", fmt.Errorf("empty summary response")
	}
	return resp.Text, nil
}

func (c *Compressor) report(promptID string, info api.CompressionInfo) {
	telemetry.Emit(func() { c.sink.CompressionOutcome(promptID, info) })
}

// findSplitIndex walks forward until the given fraction of cumulative
// serialized size has been consumed, then advances to the next user turn
// boundary so a function-call/function-response pair is never split.
func findSplitIndex(entries []api.Content, fraction float64) int {
	total := 0
	sizes := make([]int, len(entries))
	for i, e := range entries {
		sizes[i] = serializedSize(e)
		total += sizes[i]
	}
	if total == 0 {
		return 0
	}

	budget := int(float64(total) * fraction)
	consumed := 0
	idx := 0
	for idx < len(entries) && consumed < budget {
		consumed += sizes[idx]
		idx++
	}

	// Advance to a user-authored boundary that is real input, not the
	// response half of a tool-call pair.
	for idx < len(entries) {
		e := entries[idx]
		if e.Role == api.RoleUser && !e.IsFunctionResponse() {
			break
		}
		idx++
	}
	return idx
}

func serializedSize(c api.Content) int {
	raw, err := json.Marshal(c)
	if err != nil {
		return 1
	}
	return len(raw)
}
