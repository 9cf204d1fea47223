package loop

import (
	"strings"
	"testing"

	"AgentCore/pkg/engine/api"
)

func toolEvent(name string, args api.Args) api.Event {
	return api.Event{
		Type:            api.EventToolCallRequest,
		ToolCallRequest: &api.ToolCallRequest{CallID: "c", Name: name, Args: args},
	}
}

func contentEvent(text string) api.Event {
	return api.Event{Type: api.EventContent, Content: &api.ContentPayload{Text: text}}
}

func TestToolCallLoopFlagsOnThirdIdenticalCall(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	args := api.Args{"path": "/tmp/x", "recursive": true}
	if d.AddAndCheck(toolEvent("list_dir", args)) {
		t.Fatal("first call flagged")
	}
	if d.AddAndCheck(toolEvent("list_dir", args)) {
		t.Fatal("second call flagged")
	}
	if !d.AddAndCheck(toolEvent("list_dir", args)) {
		t.Fatal("third identical call not flagged")
	}
}

func TestToolCallLoopArgOrderIsIrrelevant(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	d.AddAndCheck(toolEvent("grep", api.Args{"pattern": "x", "path": "."}))
	d.AddAndCheck(toolEvent("grep", api.Args{"path": ".", "pattern": "x"}))
	if !d.AddAndCheck(toolEvent("grep", api.Args{"pattern": "x", "path": "."})) {
		t.Fatal("identical calls with reordered args should share a signature")
	}
}

func TestToolCallLoopResetsOnDifferentCall(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	d.AddAndCheck(toolEvent("read_file", api.Args{"path": "a"}))
	d.AddAndCheck(toolEvent("read_file", api.Args{"path": "a"}))
	// Different args break the run.
	if d.AddAndCheck(toolEvent("read_file", api.Args{"path": "b"})) {
		t.Fatal("distinct call flagged")
	}
	d.AddAndCheck(toolEvent("read_file", api.Args{"path": "b"}))
	if d.AddAndCheck(toolEvent("read_file", api.Args{"path": "b"})) {
		t.Fatal("run restarted mid-count should need three more")
	}
}

func TestContentLoopFlagsRepeatedChunks(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	phrase := strings.Repeat("I am stuck in a loop. ", 3)[:ContentChunkSize]
	flagged := false
	for i := 0; i < ContentRepeatThreshold; i++ {
		if d.AddAndCheck(contentEvent(phrase)) {
			flagged = true
			break
		}
	}
	if !flagged {
		t.Fatalf("%d identical chunks did not flag", ContentRepeatThreshold)
	}
}

func TestContentLoopIgnoresVariedText(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	for i := 0; i < 200; i++ {
		text := strings.Repeat(string(rune('a'+i%26)), ContentChunkSize)
		if i%26 != 0 && d.AddAndCheck(contentEvent(text)) {
			t.Fatalf("varied text flagged at chunk %d", i)
		}
	}
}

func TestToolCallResetsContentTracking(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	phrase := strings.Repeat("x", ContentChunkSize)
	for i := 0; i < ContentRepeatThreshold-1; i++ {
		if d.AddAndCheck(contentEvent(phrase)) {
			t.Fatal("flagged below threshold")
		}
	}
	// Tool activity means progress; prose counting starts over.
	d.AddAndCheck(toolEvent("write_file", api.Args{"path": "a"}))
	for i := 0; i < ContentRepeatThreshold-1; i++ {
		if d.AddAndCheck(contentEvent(phrase)) {
			t.Fatal("content counter survived a tool call")
		}
	}
}

func TestResetOnNewPromptClearsState(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	args := api.Args{"cmd": "ls"}
	d.AddAndCheck(toolEvent("shell", args))
	d.AddAndCheck(toolEvent("shell", args))

	d.Reset("p2")
	d.AddAndCheck(toolEvent("shell", args))
	if d.AddAndCheck(toolEvent("shell", args)) {
		t.Fatal("count leaked across prompts")
	}
}

func TestResetSamePromptIsNoop(t *testing.T) {
	d := NewDetector()
	d.Reset("p1")

	args := api.Args{"cmd": "ls"}
	d.AddAndCheck(toolEvent("shell", args))
	d.AddAndCheck(toolEvent("shell", args))

	// Nested model turns within one prompt keep the running count.
	d.Reset("p1")
	if !d.AddAndCheck(toolEvent("shell", args)) {
		t.Fatal("same-prompt reset should not clear the running count")
	}
}
