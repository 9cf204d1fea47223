// Package loop watches a model turn for unproductive repetition: the same
// tool invoked with the same arguments over and over, or the same stretch of
// prose streamed again and again.
package loop

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/logger"
)

const (
	// ToolCallRepeatThreshold is how many consecutive identical tool calls
	// trip the detector. The flagging call is the Nth, so two repeats pass.
	ToolCallRepeatThreshold = 3

	// ContentChunkSize is the granularity at which streamed text is
	// fingerprinted.
	ContentChunkSize = 50

	// ContentRepeatThreshold is how many identical chunk fingerprints in
	// the tracked window trip the detector.
	ContentRepeatThreshold = 10

	// maxTrackedChunks bounds the fingerprint history.
	maxTrackedChunks = 1000
)

// Detector accumulates per-prompt repetition state. It is not safe for
// concurrent use; the turn loop feeds it events one at a time.
type Detector struct {
	promptID string

	lastToolSig    string
	toolRepeat     int
	toolThreshold  int
	chunkThreshold int

	pending     string // text not yet a full chunk
	chunkOrder  []string
	chunkCounts map[string]int

	kind api.LoopKind
}

func NewDetector() *Detector {
	return &Detector{
		toolThreshold:  ToolCallRepeatThreshold,
		chunkThreshold: ContentRepeatThreshold,
		chunkCounts:    make(map[string]int),
	}
}

// Reset clears all accumulated state when a new prompt begins. Calling it
// again with the same prompt ID is a no-op, so nested model turns within one
// user prompt keep accumulating.
func (d *Detector) Reset(promptID string) {
	if promptID == d.promptID {
		return
	}
	d.promptID = promptID
	d.lastToolSig = ""
	d.toolRepeat = 0
	d.resetContent()
}

func (d *Detector) resetContent() {
	d.pending = ""
	d.chunkOrder = d.chunkOrder[:0]
	d.chunkCounts = make(map[string]int)
}

// AddAndCheck feeds one streamed event to the detector and reports whether a
// loop is now in evidence. Once it returns true the caller abandons the turn,
// so the detector makes no attempt to stay meaningful past that point.
func (d *Detector) AddAndCheck(e api.Event) bool {
	switch e.Type {
	case api.EventToolCallRequest:
		return d.addToolCall(e.ToolCallRequest)
	case api.EventContent:
		if e.Content == nil {
			return false
		}
		return d.addContent(e.Content.Text)
	default:
		return false
	}
}

func (d *Detector) addToolCall(req *api.ToolCallRequest) bool {
	// A tool call means the turn is doing something; stale prose repetition
	// no longer signifies.
	d.resetContent()
	if req == nil {
		return false
	}

	sig := toolCallSignature(req.Name, req.Args)
	if sig == d.lastToolSig {
		d.toolRepeat++
	} else {
		d.lastToolSig = sig
		d.toolRepeat = 1
	}
	if d.toolRepeat >= d.toolThreshold {
		logger.Warn("LoopDetector", "Consecutive identical tool calls", map[string]any{
			"tool":    req.Name,
			"repeats": d.toolRepeat,
		})
		d.kind = api.LoopToolCalls
		return true
	}
	return false
}

// Kind reports what tripped the detector on the last positive AddAndCheck.
func (d *Detector) Kind() api.LoopKind { return d.kind }

func (d *Detector) addContent(text string) bool {
	d.pending += text
	for len(d.pending) >= ContentChunkSize {
		chunk := d.pending[:ContentChunkSize]
		d.pending = d.pending[ContentChunkSize:]
		if d.addChunk(chunk) {
			return true
		}
	}
	return false
}

func (d *Detector) addChunk(chunk string) bool {
	h := hashString(chunk)
	d.chunkOrder = append(d.chunkOrder, h)
	d.chunkCounts[h]++
	if len(d.chunkOrder) > maxTrackedChunks {
		oldest := d.chunkOrder[0]
		d.chunkOrder = d.chunkOrder[1:]
		if d.chunkCounts[oldest]--; d.chunkCounts[oldest] <= 0 {
			delete(d.chunkCounts, oldest)
		}
	}
	if d.chunkCounts[h] >= d.chunkThreshold {
		logger.Warn("LoopDetector", "Repetitive streamed content", map[string]any{
			"repeats": d.chunkCounts[h],
		})
		d.kind = api.LoopContent
		return true
	}
	return false
}

// toolCallSignature fingerprints a tool invocation. json.Marshal writes map
// keys in sorted order, so semantically identical argument maps collapse to
// one signature regardless of construction order.
func toolCallSignature(name string, args api.Args) string {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", args))
	}
	return hashString(name + ":" + string(raw))
}

func hashString(s string) string {
	sum := blake3.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum[:16])
}
