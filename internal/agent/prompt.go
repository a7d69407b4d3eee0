package agent

import (
	"fmt"
	"strings"

	"github.com/fractalcore/agentmem/internal/fractalmemory"
	"github.com/fractalcore/agentmem/internal/model"
)

const systemPreamble = "You are a helpful assistant with access to the user's conversation history and prior strategies. Use the context below if relevant; ignore it otherwise."

// buildPrompt assembles spec.md §4.6 step 4's prompt: a system preamble,
// context snippets truncated to a character budget (approximating the
// spec's "token budget" absent a wired tokenizer), and up to
// strategy_hint_limit strategy hints rendered as "DO: ..." / "AVOID: ...".
func buildPrompt(userText string, context []fractalmemory.Result, strategies []model.Strategy, charBudget int) (systemPrompt, userMessage string) {
	var b strings.Builder
	b.WriteString(systemPreamble)

	if len(context) > 0 && charBudget > 0 {
		b.WriteString("\n\nRelevant context:\n")
		remaining := charBudget
		for _, r := range context {
			if remaining <= 0 {
				break
			}
			line := fmt.Sprintf("- %s\n", truncate(r.Content, remaining))
			b.WriteString(line)
			remaining -= len(line)
		}
	}

	if len(strategies) > 0 {
		b.WriteString("\nStrategy hints:\n")
		for _, s := range strategies {
			if s.AntiPattern {
				fmt.Fprintf(&b, "- AVOID: %s\n", s.Description)
			} else {
				fmt.Fprintf(&b, "- DO: %s\n", s.Description)
			}
		}
	}

	return b.String(), userText
}

func truncate(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	if budget <= 1 {
		return s[:budget]
	}
	return s[:budget-1] + "…"
}
