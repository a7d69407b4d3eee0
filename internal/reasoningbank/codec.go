// Package reasoningbank implements the Reasoning Bank: attempt logging,
// strategy extraction, ε-greedy selection, and confidence reinforcement,
// per spec.md §4.5. Strategies and Experiences are persisted as Episodes
// in the graph tier (type-tagged via model.Source*), so user isolation
// and recall work uniformly with the rest of the hierarchy, matching the
// teacher's pattern of using one storage substrate for every memory kind
// rather than a bespoke table per type.
package reasoningbank

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fractalcore/agentmem/internal/model"
)

// strategyPayload is the JSON form of a Strategy stored inside an
// Episode's content.
type strategyPayload struct {
	Description   string     `json:"description"`
	TaskTypes     []string   `json:"task_types"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
	Confidence    float64    `json:"confidence"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	AntiPattern   bool       `json:"anti_pattern"`
	EvolvedFromID string     `json:"evolved_from_id,omitempty"`
}

// encodeStrategy maps a Strategy onto an Episode at L2, source=strategy.
func encodeStrategy(s model.Strategy) (model.Episode, error) {
	payload := strategyPayload{
		Description:   s.Description,
		TaskTypes:     s.TaskTypes,
		SuccessCount:  s.SuccessCount,
		FailureCount:  s.FailureCount,
		Confidence:    s.Confidence,
		LastUsedAt:    s.LastUsedAt,
		AntiPattern:   s.AntiPattern,
		EvolvedFromID: s.EvolvedFromID,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return model.Episode{}, fmt.Errorf("encode strategy: %w", err)
	}
	return model.Episode{
		ID:             s.ID,
		UserID:         s.UserID,
		Content:        string(content),
		Source:         model.SourceStrategy,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.CreatedAt,
		Importance:     s.Confidence,
		Tier:           model.TierL2,
		Scale:          model.ScaleMeso,
		Deleted:        s.Deleted,
	}, nil
}

// decodeStrategy recovers a Strategy from an Episode previously produced
// by encodeStrategy.
func decodeStrategy(ep model.Episode) (model.Strategy, error) {
	var payload strategyPayload
	if err := json.Unmarshal([]byte(ep.Content), &payload); err != nil {
		return model.Strategy{}, fmt.Errorf("decode strategy %s: %w", ep.ID, err)
	}
	return model.Strategy{
		ID:            ep.ID,
		UserID:        ep.UserID,
		Description:   payload.Description,
		TaskTypes:     payload.TaskTypes,
		SuccessCount:  payload.SuccessCount,
		FailureCount:  payload.FailureCount,
		Confidence:    payload.Confidence,
		CreatedAt:     ep.CreatedAt,
		LastUsedAt:    payload.LastUsedAt,
		AntiPattern:   payload.AntiPattern,
		Deleted:       ep.Deleted,
		EvolvedFromID: payload.EvolvedFromID,
	}, nil
}

// experiencePayload is the JSON form of an Experience stored inside an
// Episode's content.
type experiencePayload struct {
	TaskDesc   string         `json:"task_desc"`
	TaskType   string         `json:"task_type"`
	Context    map[string]any `json:"context,omitempty"`
	Action     string         `json:"action"`
	Outcome    model.Outcome  `json:"outcome"`
	Reasoning  string         `json:"reasoning"`
	Error      string         `json:"error,omitempty"`
	StrategyID string         `json:"strategy_id,omitempty"`
}

// encodeExperience maps an Experience onto an Episode at L2,
// source=experience_log.
func encodeExperience(e model.Experience) (model.Episode, error) {
	payload := experiencePayload{
		TaskDesc:   e.TaskDesc,
		TaskType:   e.TaskType,
		Context:    e.Context,
		Action:     e.Action,
		Outcome:    e.Outcome,
		Reasoning:  e.Reasoning,
		Error:      e.Error,
		StrategyID: e.StrategyID,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return model.Episode{}, fmt.Errorf("encode experience: %w", err)
	}
	importance := 0.8
	if e.Outcome == model.OutcomeFailure {
		importance = 1.0
	}
	return model.Episode{
		ID:             e.ID,
		UserID:         e.UserID,
		Content:        string(content),
		Source:         model.SourceExperienceLog,
		CreatedAt:      e.Timestamp,
		LastAccessedAt: e.Timestamp,
		Importance:     importance,
		Tier:           model.TierL2,
		Scale:          model.ScaleMicro,
	}, nil
}

// decodeExperience recovers an Experience from an Episode previously
// produced by encodeExperience.
func decodeExperience(ep model.Episode) (model.Experience, error) {
	var payload experiencePayload
	if err := json.Unmarshal([]byte(ep.Content), &payload); err != nil {
		return model.Experience{}, fmt.Errorf("decode experience %s: %w", ep.ID, err)
	}
	return model.Experience{
		ID:         ep.ID,
		UserID:     ep.UserID,
		TaskDesc:   payload.TaskDesc,
		TaskType:   payload.TaskType,
		Context:    payload.Context,
		Action:     payload.Action,
		Outcome:    payload.Outcome,
		Reasoning:  payload.Reasoning,
		Error:      payload.Error,
		Timestamp:  ep.CreatedAt,
		EpisodeID:  ep.ID,
		StrategyID: payload.StrategyID,
	}, nil
}
