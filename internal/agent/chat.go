package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/metrics"
	"github.com/fractalcore/agentmem/internal/model"
)

// TurnResult is Chat's return value: the completion text plus the
// observability metadata spec.md §4.6 step 6 names. StrategiesUsed lists
// the descriptions of the strategies that were actually rendered into
// the prompt, matching spec.md §6.1's `POST /chat` response shape
// (`strategies_used` is an array of strings, not a count).
type TurnResult struct {
	Text             string
	ContextCount     int
	StrategiesUsed   []string
	ProcessingTimeMS int64
}

// Chat runs one per-turn fast path per spec.md §4.6: remember the user
// turn, recall context, optionally fetch strategy hints, build a prompt,
// invoke the completion provider under a per-turn timeout, remember the
// agent's reply, and return it with turn metadata.
func (a *Agent) Chat(ctx context.Context, userText string) (TurnResult, error) {
	start := time.Now()
	result, err := a.chat(ctx, userText)
	elapsed := time.Since(start)
	result.ProcessingTimeMS = elapsed.Milliseconds()

	metrics.AgentTurnDuration.Observe(elapsed.Seconds())
	switch {
	case err == nil:
		metrics.AgentTurnsTotal.WithLabelValues("ok").Inc()
	case ctx.Err() != nil:
		metrics.AgentTurnsTotal.WithLabelValues("timeout").Inc()
	default:
		metrics.AgentTurnsTotal.WithLabelValues("error").Inc()
	}
	return result, err
}

func (a *Agent) chat(ctx context.Context, userText string) (TurnResult, error) {
	// Step 1: remember the user turn (importance 1.0 per spec.md §4.6).
	if _, err := a.memory.Remember(ctx, userText, 1.0, map[string]any{"role": "user"}); err != nil {
		return TurnResult{}, fmt.Errorf("chat: remember user turn: %w", err)
	}

	// Step 2: recall context for the turn.
	recallLimit := a.cfg.RecallLimit
	if recallLimit <= 0 {
		recallLimit = 5
	}
	recalled, err := a.memory.Recall(ctx, userText, recallLimit)
	if err != nil {
		a.log.Warn(ctx, "chat: recall failed, proceeding without context", zap.Error(err))
		recalled = nil
	}

	// Step 3: classify the turn and fetch strategy hints if it's a task.
	var strategies []model.Strategy
	if isTask, taskType := classifyTask(userText); isTask {
		hintLimit := a.cfg.StrategyHintLimit
		if hintLimit <= 0 {
			hintLimit = 2
		}
		strategies, err = a.bank.StrategiesFor(ctx, userText, taskType, hintLimit, true)
		if err != nil {
			a.log.Warn(ctx, "chat: strategies_for failed, proceeding without hints", zap.Error(err))
			strategies = nil
		}
	}

	// Step 4: build the prompt.
	budget := a.cfg.PromptContextBudgetChars
	if budget <= 0 {
		budget = 4000
	}
	systemPrompt, userMessage := buildPrompt(userText, recalled, strategies, budget)

	// Step 5: invoke the completion provider under a per-turn timeout.
	timeout := a.cfg.ChatTurnTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	turnCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := a.completion.Complete(turnCtx, systemPrompt, userMessage)
	if err != nil {
		return TurnResult{}, fmt.Errorf("chat: completion: %w", err)
	}

	// Step 6: remember the agent turn and return.
	if _, err := a.memory.Remember(ctx, text, 1.0, map[string]any{"role": "agent"}); err != nil {
		a.log.Warn(ctx, "chat: remember agent turn failed", zap.Error(err))
	}

	used := make([]string, len(strategies))
	for i, s := range strategies {
		used[i] = s.Description
	}

	return TurnResult{
		Text:           text,
		ContextCount:   len(recalled),
		StrategiesUsed: used,
	}, nil
}
