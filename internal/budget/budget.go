// Package budget provides token budget estimation for prompts sent to the
// completion backend. Backends use different tokenizers, so this package uses
// a rune-based heuristic calibrated on Russian text: 1 token ≈ 3 runes.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// runesPerToken is the rune-to-token ratio used for estimation.
	runesPerToken = 3

	// messageOverhead is the per-message framing cost in most chat APIs.
	messageOverhead = 4

	// MinFragmentTokens is the least a single surviving fragment is cut down to,
	// even when the rest of the prompt already spends the budget.
	MinFragmentTokens = 100

	// DefaultMaxPromptTokens is the default input budget for one completion.
	// It leaves room for the 2048-token answer inside an 8k context window.
	DefaultMaxPromptTokens = 6000
)

// Estimate returns a rough token count for s using the rune heuristic.
func Estimate(s string) int {
	r := utf8.RuneCountInString(s)
	n := r / runesPerToken
	if n == 0 && r > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// EstimatePrompt returns the estimated token count of a system + user prompt
// pair as sent to a chat completion endpoint.
func EstimatePrompt(system, user string) int {
	return EstimateMessages([]*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
}

// FitFragments returns how many leading fragments fit within maxTokens given
// a fixed cost already spent on the rest of the prompt. Fragments are kept in
// order and dropped from the tail, so the best-ranked ones survive. A
// non-positive maxTokens disables the budget and every fragment fits.
func FitFragments(fixed int, fragments []string, maxTokens int) int {
	if maxTokens <= 0 {
		return len(fragments)
	}
	total := fixed
	for i, f := range fragments {
		total += Estimate(f)
		if total > maxTokens {
			return i
		}
	}
	return len(fragments)
}

// Truncate returns the longest rune prefix of s estimated at no more than
// maxTokens. A non-positive maxTokens returns "".
func Truncate(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * runesPerToken
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
