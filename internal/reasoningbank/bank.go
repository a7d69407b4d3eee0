package reasoningbank

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/model"
)

// antiPatternConfidenceCeiling is the fixed confidence an anti-pattern
// strategy is emitted with (spec.md §4.5 extract_strategies).
const antiPatternConfidenceCeiling = 0.1

// failureCompoundingThreshold triggers a second confidence decrement on
// the same update call once a strategy has failed this many times.
const failureCompoundingThreshold = 5

// Bank is the Reasoning Bank: attempt logging, strategy extraction,
// ε-greedy selection, and confidence reinforcement, all persisted as
// graph-tier Episodes.
type Bank struct {
	graph  graphstore.Store
	buffer *experienceBuffer
	cfg    config.Config
	log    *logging.Logger
	rand   *rand.Rand
}

// New constructs a Bank over graph for the durations/thresholds in cfg.
func New(graph graphstore.Store, cfg config.Config, log *logging.Logger) *Bank {
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	return &Bank{
		graph:  graph,
		buffer: newExperienceBuffer(cfg.ExperienceBufferSize),
		cfg:    cfg,
		log:    log,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// LogExperience records one attempt, buffers it, and persists it as an
// Episode. If the buffer has reached experience_buffer_size, it triggers
// extract_strategies for the user before returning.
func (b *Bank) LogExperience(ctx context.Context, userID, taskDesc, taskType string, taskCtx map[string]any, action string, outcome model.Outcome, reasoning, errText string) (string, error) {
	exp := model.Experience{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskDesc:  taskDesc,
		TaskType:  taskType,
		Context:   taskCtx,
		Action:    action,
		Outcome:   outcome,
		Reasoning: reasoning,
		Error:     errText,
		Timestamp: time.Now(),
	}

	ep, err := encodeExperience(exp)
	if err != nil {
		return "", err
	}
	if err := b.graph.UpsertEpisode(ctx, ep, nil); err != nil {
		return "", fmt.Errorf("log_experience: upsert episode: %w", err)
	}

	if ready := b.buffer.add(userID, exp); ready {
		if _, err := b.ExtractStrategies(ctx, userID); err != nil {
			b.log.Warn(ctx, "extract_strategies triggered by full buffer failed", zap.Error(err))
		}
	}

	return exp.ID, nil
}

// ExtractStrategies groups the user's buffered experiences by task type,
// separates successes from failures, and emits a Strategy per side with
// at least two members, per spec.md §4.5. The buffer is cleared only if
// extraction succeeds.
func (b *Bank) ExtractStrategies(ctx context.Context, userID string) ([]model.Strategy, error) {
	buffered := b.buffer.snapshot(userID)
	if len(buffered) < b.cfg.MinExperiencesForStrategy {
		return nil, nil
	}

	byType := make(map[string][]model.Experience)
	for _, exp := range buffered {
		byType[exp.TaskType] = append(byType[exp.TaskType], exp)
	}

	var emitted []model.Strategy
	for taskType, group := range byType {
		if len(group) < b.cfg.MinExperiencesForStrategy {
			continue
		}

		var successes, failures []model.Experience
		for _, exp := range group {
			if exp.Outcome == model.OutcomeFailure {
				failures = append(failures, exp)
			} else {
				successes = append(successes, exp)
			}
		}

		if s, ok := b.emitStrategy(ctx, userID, taskType, successes, false); ok {
			emitted = append(emitted, s)
		}
		if s, ok := b.emitStrategy(ctx, userID, taskType, failures, true); ok {
			emitted = append(emitted, s)
		}
	}

	if len(emitted) > 0 {
		b.buffer.drain(userID)
	}
	return emitted, nil
}

func (b *Bank) emitStrategy(ctx context.Context, userID, taskType string, side []model.Experience, antiPattern bool) (model.Strategy, bool) {
	if len(side) < 2 {
		return model.Strategy{}, false
	}

	actions := make([]string, len(side))
	for i, exp := range side {
		actions[i] = exp.Action
	}
	tokens := keywordSignature(actions)

	var description string
	var confidence float64
	if antiPattern {
		description = fmt.Sprintf("AVOID for %s: %s", taskType, strings.Join(tokens, ", "))
		confidence = antiPatternConfidenceCeiling
	} else {
		description = fmt.Sprintf("For %s: %s", taskType, strings.Join(tokens, ", "))
		confidence = min(0.9, 0.5+0.1*float64(len(side)))
	}

	strat := model.Strategy{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: description,
		TaskTypes:   []string{taskType},
		Confidence:  confidence,
		CreatedAt:   time.Now(),
		AntiPattern: antiPattern,
	}
	if antiPattern {
		strat.FailureCount = len(side)
	} else {
		strat.SuccessCount = len(side)
	}

	ep, err := encodeStrategy(strat)
	if err != nil {
		b.log.Warn(ctx, "encode extracted strategy failed", zap.Error(err))
		return model.Strategy{}, false
	}
	if err := b.graph.UpsertEpisode(ctx, ep, nil); err != nil {
		b.log.Warn(ctx, "upsert extracted strategy failed", zap.Error(err))
		return model.Strategy{}, false
	}
	return strat, true
}

// StrategiesFor returns up to limit strategies matching taskType (all
// task types when empty), ranked by confidence. Anti-patterns are
// included only when includeAntiPatterns is true.
func (b *Bank) StrategiesFor(ctx context.Context, taskDescription, taskType string, limit int, includeAntiPatterns bool) ([]model.Strategy, error) {
	userID := b.cfg.UserID
	all, err := b.listStrategies(ctx, userID)
	if err != nil {
		return nil, err
	}

	var matched []model.Strategy
	for _, s := range all {
		if s.Deleted {
			continue
		}
		if s.AntiPattern && !includeAntiPatterns {
			continue
		}
		if taskType != "" && !containsTaskType(s.TaskTypes, taskType) {
			continue
		}
		matched = append(matched, s)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Confidence > matched[j].Confidence })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Select performs ε-greedy selection over non-anti-pattern candidates for
// taskType: with probability exploration_rate, pick uniformly at random;
// otherwise pick the max-confidence candidate. Returns ok=false if there
// are no candidates.
func (b *Bank) Select(ctx context.Context, taskDescription, taskType string) (model.Strategy, bool, error) {
	candidates, err := b.StrategiesFor(ctx, taskDescription, taskType, 0, false)
	if err != nil {
		return model.Strategy{}, false, err
	}
	if len(candidates) == 0 {
		return model.Strategy{}, false, nil
	}
	if b.rand.Float64() < b.cfg.ExplorationRate {
		return candidates[b.rand.Intn(len(candidates))], true, nil
	}
	// StrategiesFor already sorts by descending confidence.
	return candidates[0], true, nil
}

// Update applies outcome's confidence reinforcement to strategyID:
// success increments success_count and confidence by confidence_boost
// (capped at 1); failure increments failure_count and decrements
// confidence by confidence_penalty (floored at 0), with a second,
// compounding decrement when failure_count exceeds
// failureCompoundingThreshold on this same call.
func (b *Bank) Update(ctx context.Context, userID, strategyID string, outcome model.Outcome) error {
	ep, ok, err := b.graph.GetEpisode(ctx, userID, strategyID)
	if err != nil {
		return fmt.Errorf("update: get strategy episode: %w", err)
	}
	if !ok {
		return fmt.Errorf("update: strategy %s not found", strategyID)
	}
	strat, err := decodeStrategy(ep)
	if err != nil {
		return err
	}

	now := time.Now()
	strat.LastUsedAt = &now

	switch outcome {
	case model.OutcomeSuccess:
		strat.SuccessCount++
		strat.Confidence = min(1, strat.Confidence+b.cfg.ConfidenceBoost)
	case model.OutcomeFailure:
		strat.FailureCount++
		strat.Confidence = max(0, strat.Confidence-b.cfg.ConfidencePenalty)
		if strat.FailureCount > failureCompoundingThreshold {
			strat.Confidence = max(0, strat.Confidence-b.cfg.ConfidencePenalty)
		}
	default:
		return fmt.Errorf("update: unsupported outcome %q", outcome)
	}

	newEp, err := encodeStrategy(strat)
	if err != nil {
		return err
	}
	if err := b.graph.UpsertEpisode(ctx, newEp, nil); err != nil {
		return fmt.Errorf("update: upsert strategy: %w", err)
	}
	return nil
}

// AntiPatterns returns strategies flagged as anti-patterns or whose
// confidence has fallen to the anti-pattern ceiling, optionally filtered
// by taskType.
func (b *Bank) AntiPatterns(ctx context.Context, taskType string, limit int) ([]model.Strategy, error) {
	all, err := b.listStrategies(ctx, b.cfg.UserID)
	if err != nil {
		return nil, err
	}

	var flagged []model.Strategy
	for _, s := range all {
		if s.Deleted {
			continue
		}
		if !s.AntiPattern && s.Confidence > antiPatternConfidenceCeiling {
			continue
		}
		if taskType != "" && !containsTaskType(s.TaskTypes, taskType) {
			continue
		}
		flagged = append(flagged, s)
	}

	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Confidence < flagged[j].Confidence })
	if limit > 0 && len(flagged) > limit {
		flagged = flagged[:limit]
	}
	return flagged, nil
}

func (b *Bank) listStrategies(ctx context.Context, userID string) ([]model.Strategy, error) {
	l2Tier := model.TierL2
	episodes, err := b.graph.ListEpisodes(ctx, userID, &l2Tier)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	var out []model.Strategy
	for _, ep := range episodes {
		if ep.Source != model.SourceStrategy {
			continue
		}
		strat, err := decodeStrategy(ep)
		if err != nil {
			b.log.Warn(ctx, "skipping undecodable strategy episode", zap.String("episode_id", ep.ID), zap.Error(err))
			continue
		}
		out = append(out, strat)
	}
	return out, nil
}

func containsTaskType(taskTypes []string, want string) bool {
	for _, t := range taskTypes {
		if t == want {
			return true
		}
	}
	return false
}
