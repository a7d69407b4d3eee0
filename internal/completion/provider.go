// Package completion defines the narrow completion-producer seam the
// Fractal Memory summariser (spec.md §4.3 Step 1) and the Agent Facade's
// fast path (§4.6) both consume, grounded on the teacher's
// internal/compression.ClaudeClient interface: one method, easily mocked,
// easily swapped for a different model provider.
package completion

import "context"

// Provider generates text completions from a system prompt and a user
// message. Both Fractal Memory's consolidation summariser and the Agent
// Facade's chat turn share one Provider instance, matching the teacher's
// pattern of a single ClaudeClient-shaped interface reused across
// subsystems (SPEC_FULL.md §4.3).
type Provider interface {
	// Complete returns the model's response text for the given system
	// prompt and user message.
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
