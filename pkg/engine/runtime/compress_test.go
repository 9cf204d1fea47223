package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/history"
	"AgentCore/pkg/engine/llm"
)

const testModel = "gemini-2.5-pro"

func seededHistory(turns int) *history.History {
	h := history.New()
	for i := 0; i < turns; i++ {
		h.Add(api.TextContent(api.RoleUser, strings.Repeat("question ", 20)))
		h.Add(api.TextContent(api.RoleModel, strings.Repeat("answer ", 20)))
	}
	return h
}

func TestTryCompressNoopBelowThreshold(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn("<state_snapshot>x</state_snapshot>"))
	client.SetTokenCounter(func([]api.Content) (int, error) { return 100, nil })

	h := seededHistory(4)
	before := h.Full()

	c := NewCompressor(client, h, nil, nil)
	info, err := c.TryCompress(context.Background(), testModel, "p1", false)
	if err != nil {
		t.Fatalf("TryCompress: %v", err)
	}
	if info.Status != api.CompressionNoop {
		t.Fatalf("status = %s, want noop", info.Status)
	}
	if len(h.Full()) != len(before) {
		t.Fatal("history mutated on noop")
	}
}

func TestTryCompressEmptyHistoryIsNoop(t *testing.T) {
	client := llm.NewScriptedClient()
	c := NewCompressor(client, history.New(), nil, nil)
	info, err := c.TryCompress(context.Background(), testModel, "p1", true)
	if err != nil || info.Status != api.CompressionNoop {
		t.Fatalf("got %s, %v", info.Status, err)
	}
	if len(client.Requests) != 0 {
		t.Fatal("empty history should not reach the model")
	}
}

func TestTryCompressRewritesHistory(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn("<state_snapshot>summary</state_snapshot>"))
	counts := 0
	client.SetTokenCounter(func([]api.Content) (int, error) {
		counts++
		if counts == 1 {
			return 1000, nil
		}
		return 100, nil
	})

	h := seededHistory(10)
	c := NewCompressor(client, h, nil, nil)
	c.TokenThreshold = 0.0000001 // force the budget check to trip

	info, err := c.TryCompress(context.Background(), testModel, "p1", false)
	if err != nil {
		t.Fatalf("TryCompress: %v", err)
	}
	if info.Status != api.CompressionCompressed {
		t.Fatalf("status = %s, want compressed", info.Status)
	}
	if info.OriginalTokenCount != 1000 || info.NewTokenCount != 100 {
		t.Fatalf("counts = %d/%d", info.OriginalTokenCount, info.NewTokenCount)
	}

	full := h.Full()
	if full[0].Role != api.RoleUser || !strings.Contains(full[0].Text(), "state_snapshot") {
		t.Fatalf("rewritten history does not start with the snapshot: %+v", full[0])
	}
	if full[1].Role != api.RoleModel {
		t.Fatalf("second entry should be the acknowledgement, got role %s", full[1].Role)
	}
	if len(full) >= len(seededHistory(10).Full()) {
		t.Fatal("history did not shrink")
	}
}

func TestTryCompressInflatedCountRollsBack(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn(strings.Repeat("verbose snapshot ", 100)))
	counts := 0
	client.SetTokenCounter(func([]api.Content) (int, error) {
		counts++
		if counts == 1 {
			return 1000, nil
		}
		return 2000, nil // summarizing made it worse
	})

	h := seededHistory(10)
	before := h.Curated()

	c := NewCompressor(client, h, nil, nil)
	c.TokenThreshold = 0.0000001

	info, err := c.TryCompress(context.Background(), testModel, "p1", false)
	if err != nil {
		t.Fatalf("TryCompress: %v", err)
	}
	if info.Status != api.CompressionFailedInflatedCount {
		t.Fatalf("status = %s, want failed_inflated_count", info.Status)
	}
	after := h.Curated()
	if len(after) != len(before) {
		t.Fatal("history changed despite rollback")
	}

	// The failure is sticky: the next unforced attempt is a silent noop
	// that never reaches the token counter.
	countsBefore := counts
	info, _ = c.TryCompress(context.Background(), testModel, "p1", false)
	if info.Status != api.CompressionNoop {
		t.Fatalf("sticky attempt status = %s", info.Status)
	}
	if counts != countsBefore {
		t.Fatal("sticky failure flag did not suppress the retry")
	}
}

func TestTryCompressTokenCountErrorIsStickyUnlessForced(t *testing.T) {
	client := llm.NewScriptedClient(llm.TextTurn("<state_snapshot>x</state_snapshot>"))
	client.SetTokenCounter(func([]api.Content) (int, error) {
		return 0, errors.New("counting service down")
	})

	h := seededHistory(4)
	c := NewCompressor(client, h, nil, nil)

	info, err := c.TryCompress(context.Background(), testModel, "p1", false)
	if err != nil {
		t.Fatalf("TryCompress: %v", err)
	}
	if info.Status != api.CompressionFailedTokenCountError {
		t.Fatalf("status = %s", info.Status)
	}

	// Forced attempts bypass the sticky flag and do not set it.
	c2 := NewCompressor(client, h, nil, nil)
	info, _ = c2.TryCompress(context.Background(), testModel, "p1", true)
	if info.Status != api.CompressionFailedTokenCountError {
		t.Fatalf("forced status = %s", info.Status)
	}
	if c2.failed {
		t.Fatal("forced failure marked the sticky flag")
	}
}

func TestFindSplitIndexNeverSplitsToolCallPair(t *testing.T) {
	pad := strings.Repeat("x", 200)
	entries := []api.Content{
		api.TextContent(api.RoleUser, pad),
		api.TextContent(api.RoleModel, pad),
		api.TextContent(api.RoleUser, pad),
		{Role: api.RoleModel, Parts: []api.Part{{FunctionCall: &api.FunctionCall{ID: "1", Name: "t"}}}},
		{Role: api.RoleUser, Parts: []api.Part{{FunctionResponse: &api.FunctionResponse{ID: "1", Name: "t"}}}},
		api.TextContent(api.RoleModel, pad),
		api.TextContent(api.RoleUser, pad),
		api.TextContent(api.RoleModel, pad),
	}

	for _, fraction := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		idx := findSplitIndex(entries, fraction)
		if idx >= len(entries) {
			continue
		}
		first := entries[idx]
		if first.Role == api.RoleModel && first.HasFunctionCall() {
			t.Errorf("fraction %.1f: suffix starts with a dangling function call", fraction)
		}
		if first.Role == api.RoleUser && first.IsFunctionResponse() {
			t.Errorf("fraction %.1f: suffix starts with a bare function response", fraction)
		}
	}
}
