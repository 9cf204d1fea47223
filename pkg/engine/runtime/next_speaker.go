package runtime

import (
	"context"
	"encoding/json"
	"strings"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/llm"
	"AgentCore/pkg/engine/prompts"
	"AgentCore/pkg/logger"
)

// nextSpeakerVerdict is the model's JSON answer to the next-speaker probe.
type nextSpeakerVerdict struct {
	Reasoning   string `json:"reasoning"`
	NextSpeaker string `json:"next_speaker"`
}

const (
	speakerUser  = "user"
	speakerModel = "model"
)

// checkNextSpeaker asks the model whether it should keep talking without new
// user input. Any failure resolves to the user speaking next; a wrong "user"
// answer merely pauses, while a wrong "model" answer burns turns.
func checkNextSpeaker(ctx context.Context, client llm.Client, model string, curated []api.Content, loader *prompts.Loader) string {
	if len(curated) == 0 {
		return speakerUser
	}
	last := curated[len(curated)-1]
	if last.Role != api.RoleModel {
		return speakerUser
	}
	// An unanswered function call is the scheduler's business, not a
	// continuation decision.
	if last.HasFunctionCall() {
		return speakerUser
	}

	contents := make([]api.Content, 0, len(curated)+1)
	contents = append(contents, curated...)
	contents = append(contents, api.TextContent(api.RoleUser, loader.Get(prompts.NextSpeaker)))

	resp, err := client.GenerateContent(ctx, llm.Request{
		Model:        model,
		Contents:     contents,
		ResponseJSON: true,
	})
	if err != nil {
		logger.Debug("Orchestrator", "Next-speaker check failed", map[string]any{"error": err.Error()})
		return speakerUser
	}

	var verdict nextSpeakerVerdict
	raw := strings.TrimSpace(resp.Text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &verdict); err != nil {
		logger.Debug("Orchestrator", "Next-speaker response unparseable", map[string]any{"raw": resp.Text})
		return speakerUser
	}
	if verdict.NextSpeaker == speakerModel {
		return speakerModel
	}
	return speakerUser
}
