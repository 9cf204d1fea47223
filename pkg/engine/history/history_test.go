package history

import (
	"testing"

	"AgentCore/pkg/engine/api"
)

func user(text string) api.Content {
	return api.TextContent(api.RoleUser, text)
}

func model(text string) api.Content {
	return api.TextContent(api.RoleModel, text)
}

func TestAddMergesConsecutiveUserEntries(t *testing.T) {
	h := New()
	h.Add(user("context injection"))
	h.Add(user("actual question"))

	full := h.Full()
	if len(full) != 1 {
		t.Fatalf("expected merged entry, got %d entries", len(full))
	}
	if len(full[0].Parts) != 2 {
		t.Fatalf("expected 2 parts in merged entry, got %d", len(full[0].Parts))
	}
}

func TestAddDoesNotMergeModelEntries(t *testing.T) {
	h := New()
	h.Add(model("first"))
	h.Add(model("second"))

	if h.Len() != 2 {
		t.Fatalf("model entries must not merge, got %d entries", h.Len())
	}
}

func TestAddSkipsEmptyContent(t *testing.T) {
	h := New()
	h.Add(api.Content{Role: api.RoleUser})
	if h.Len() != 0 {
		t.Error("entry with no parts should be dropped")
	}
}

func TestCuratedDropsEmptyModelTurnWithItsPrompt(t *testing.T) {
	h := New(
		user("hello"),
		model("hi"),
		user("and this one failed"),
		api.Content{Role: api.RoleModel, Parts: []api.Part{{Text: "thinking...", Thought: true}}},
		user("try again"),
		model("done"),
	)

	curated := h.Curated()
	if len(curated) != 4 {
		t.Fatalf("expected 4 curated entries, got %d", len(curated))
	}
	// The failed exchange disappears entirely.
	for _, c := range curated {
		if c.Text() == "and this one failed" {
			t.Error("user entry paired with invalid model output should be dropped")
		}
	}
	// Full view still has everything.
	if h.Len() != 6 {
		t.Errorf("full history should be untouched, got %d entries", h.Len())
	}
}

func TestCuratedKeepsFunctionCallOnlyModelEntries(t *testing.T) {
	h := New(
		user("list the files"),
		api.Content{Role: api.RoleModel, Parts: []api.Part{
			{FunctionCall: &api.FunctionCall{ID: "c1", Name: "list_dir"}},
		}},
	)
	if len(h.Curated()) != 2 {
		t.Error("a function call is a valid model part")
	}
}

func TestPendingFunctionResponse(t *testing.T) {
	h := New()
	h.Add(user("run it"))
	h.Add(api.Content{Role: api.RoleModel, Parts: []api.Part{
		{FunctionCall: &api.FunctionCall{ID: "c1", Name: "shell"}},
	}})

	if !h.PendingFunctionResponse() {
		t.Fatal("unanswered function call should be pending")
	}

	h.Add(api.Content{Role: api.RoleUser, Parts: []api.Part{
		{FunctionResponse: &api.FunctionResponse{ID: "c1", Name: "shell"}},
	}})

	if h.PendingFunctionResponse() {
		t.Error("answered function call should not be pending")
	}
}

func TestReplaceInstallsNewHistory(t *testing.T) {
	h := New(user("old"), model("old reply"))

	h.Replace([]api.Content{user("snapshot"), model("ack")})

	full := h.Full()
	if len(full) != 2 || full[0].Text() != "snapshot" {
		t.Fatalf("replace did not install new entries: %+v", full)
	}
}

func TestFullReturnsCopy(t *testing.T) {
	h := New(user("immutable"))
	full := h.Full()
	full[0] = model("mutated")

	if h.Full()[0].Role != api.RoleUser {
		t.Error("mutating the returned slice must not affect the history")
	}
}
