package llm

import "strings"

// modelContextWindows maps model name prefixes to context window sizes in
// tokens. Metadata only; not a call path.
var modelContextWindows = []struct {
	prefix string
	tokens int
}{
	{"gemini-1.5-pro", 2_097_152},
	{"gemini-1.5", 1_048_576},
	{"gemini-2.0", 1_048_576},
	{"gemini-2.5", 1_048_576},
	{"gemini", 1_048_576},
}

// DefaultContextWindow is used for unknown models.
const DefaultContextWindow = 1_048_576

// ContextWindowFor returns the context window size for a model, longest
// matching prefix first.
func ContextWindowFor(model string) int {
	model = strings.ToLower(strings.TrimSpace(model))
	best := 0
	tokens := DefaultContextWindow
	for _, e := range modelContextWindows {
		if strings.HasPrefix(model, e.prefix) && len(e.prefix) > best {
			best = len(e.prefix)
			tokens = e.tokens
		}
	}
	return tokens
}
