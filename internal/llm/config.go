// Package llm provides centralized LLM configuration and client abstractions,
// including the ordered model-fallback primitive used for every provider call.
package llm

// Default model identifiers. The primary may be overridden by configuration;
// the fallbacks are a fixed set appended after it.
const (
	// DefaultPrimaryModel is tried first for every evaluation call
	DefaultPrimaryModel = "gemini-2.5-pro"
)

// DefaultFallbackModels are tried, in order, after the primary fails.
var DefaultFallbackModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
}

// Candidates builds the ordered candidate list for one invocation: the primary
// identifier followed by the fallback set, with duplicates removed while
// preserving first-occurrence order. Empty identifiers are skipped.
func Candidates(primary string, fallbacks ...string) []string {
	seen := make(map[string]bool, 1+len(fallbacks))
	out := make([]string, 0, 1+len(fallbacks))
	for _, model := range append([]string{primary}, fallbacks...) {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		out = append(out, model)
	}
	return out
}

// DefaultCandidates returns the candidate list for the default configuration.
func DefaultCandidates() []string {
	return Candidates(DefaultPrimaryModel, DefaultFallbackModels...)
}
