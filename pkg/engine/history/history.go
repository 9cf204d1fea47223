// Package history owns the conversation record shared by the turn
// orchestrator and the compression engine. No other component writes it.
package history

import (
	"sync"

	"AgentCore/pkg/engine/api"
)

// History is the ordered conversation record. It exposes two views: the full
// history (everything recorded, including transient context injections) and
// the curated history (role-alternating, semantically valid entries used for
// token accounting and compression).
type History struct {
	mu      sync.RWMutex
	entries []api.Content
}

// New creates a history seeded with the given entries.
func New(initial ...api.Content) *History {
	return &History{entries: append([]api.Content(nil), initial...)}
}

// Add appends one entry to the full history. Consecutive entries by the same
// role are merged so the record stays alternating even when the orchestrator
// records a context injection next to real user input.
func (h *History) Add(c api.Content) {
	if len(c.Parts) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if n > 0 && h.entries[n-1].Role == c.Role && c.Role == api.RoleUser {
		merged := h.entries[n-1]
		merged.Parts = append(append([]api.Part(nil), merged.Parts...), c.Parts...)
		h.entries[n-1] = merged
		return
	}
	h.entries = append(h.entries, c)
}

// Full returns a copy of the complete history.
func (h *History) Full() []api.Content {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]api.Content(nil), h.entries...)
}

// Curated returns the role-alternating, semantically valid subset. A model
// entry with no usable parts is dropped together with the user input that
// produced it, mirroring how the remote call would have seen the exchange.
func (h *History) Curated() []api.Content {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Curate(h.entries)
}

// Len returns the number of full-history entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// PendingFunctionResponse reports whether the most recent model entry issued a
// function call that has not yet been answered by a user function response.
// While true, no other user content may be appended: the remote call requires
// the call/response pair to be adjacent.
func (h *History) PendingFunctionResponse() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pending := map[string]bool{}
	for _, c := range h.entries {
		switch c.Role {
		case api.RoleModel:
			for _, p := range c.Parts {
				if p.FunctionCall != nil {
					pending[p.FunctionCall.ID] = true
				}
			}
		case api.RoleUser:
			for _, p := range c.Parts {
				if p.FunctionResponse != nil {
					delete(pending, p.FunctionResponse.ID)
				}
			}
		}
	}
	return len(pending) > 0
}

// Replace atomically installs a new history. Used by the compression engine
// once a rewritten history has been validated.
func (h *History) Replace(entries []api.Content) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]api.Content(nil), entries...)
}

// Curate filters entries down to the curated view: model entries must carry
// at least one non-empty part; an invalid model entry invalidates the user
// entry that prompted it.
func Curate(entries []api.Content) []api.Content {
	out := make([]api.Content, 0, len(entries))
	for i := 0; i < len(entries); i++ {
		c := entries[i]
		if c.Role != api.RoleUser {
			if validModelEntry(c) {
				out = append(out, c)
			} else if n := len(out); n > 0 && out[n-1].Role == api.RoleUser {
				out = out[:n-1]
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func validModelEntry(c api.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionCall != nil || (p.Text != "" && !p.Thought) {
			return true
		}
	}
	return false
}
