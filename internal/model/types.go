// Package model defines the core entities of the hierarchical memory store:
// Episodes, Entities, Strategies, and Experiences, along with the relations
// between them. These types are shared by every tier adapter so that a
// single wire shape crosses volatile store, graph store, retriever, and
// reasoning bank boundaries.
package model

import (
	"time"
)

// Tier identifies which level of the hierarchy an Episode currently resides in.
type Tier int

const (
	TierL0 Tier = iota
	TierL1
	TierL2
	TierL3
)

func (t Tier) String() string {
	switch t {
	case TierL0:
		return "L0"
	case TierL1:
		return "L1"
	case TierL2:
		return "L2"
	case TierL3:
		return "L3"
	default:
		return "unknown"
	}
}

// Outcome is the result classification of an Episode or Experience.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
	OutcomeUnknown Outcome = "unknown"
	OutcomeNone    Outcome = "none"
)

// Scale classifies how broad an Episode's content is.
type Scale string

const (
	ScaleMicro Scale = "micro"
	ScaleMeso  Scale = "meso"
	ScaleMacro Scale = "macro"
)

// Source tags the origin of an Episode.
const (
	SourceConversation     = "conversation"
	SourceBatchSummary     = "batch_summary"
	SourceConversationSum  = "conversation_summary"
	SourceExperienceLog    = "experience_log"
	SourceStrategy         = "strategy"
)

// Episode is a single dated textual observation.
type Episode struct {
	ID             string
	UserID         string
	Content        string
	Summary        string
	Source         string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Importance     float64
	AccessCount    int
	Tier           Tier
	Outcome        Outcome
	Deleted        bool
	DeletedAt      *time.Time
	Scale          Scale
	Embedding      []float32
	// Metadata carries any foreign, store-managed attributes verbatim.
	Metadata map[string]any
}

// ContentHash returns a stable identifier used for L2 dedup (invariant 3.3.7).
func (e *Episode) ContentHash() string {
	return ContentHash(e.Content)
}

// Entity is a referent (person, project, concept) extracted from episodes.
type Entity struct {
	ID             string
	UserID         string
	Name           string
	Type           string
	Importance     float64
	AccessCount    int
	Embedding      []float32
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Deleted        bool
	DeletedAt      *time.Time
}

// Strategy is a recipe for a class of tasks, owned by the reasoning bank.
type Strategy struct {
	ID               string
	UserID           string
	Description      string
	TaskTypes        []string
	SuccessCount     int
	FailureCount     int
	Confidence       float64
	CreatedAt        time.Time
	LastUsedAt       *time.Time
	AntiPattern      bool
	Deleted          bool
	EvolvedFromID    string
}

// Experience is a record of one attempt at a task.
type Experience struct {
	ID          string
	UserID      string
	TaskDesc    string
	TaskType    string
	Context     map[string]any
	Action      string
	Outcome     Outcome
	Reasoning   string
	Error       string
	Timestamp   time.Time
	EpisodeID   string // Experience APPLIED_IN Episode, at most one
	StrategyID  string // Experience TRIED Strategy, at most one
}

// Mention is the MENTIONS edge: Episode -> Entity, with a confidence score.
type Mention struct {
	EpisodeID  string
	EntityID   string
	Confidence float64
}

// Relation is the RELATES_TO edge: Entity -> Entity.
type Relation struct {
	FromEntityID string
	ToEntityID   string
	Strength     float64
	Type         string
}

// StrategyUse is the USED_IN edge: Strategy -> Episode.
type StrategyUse struct {
	StrategyID string
	EpisodeID  string
}
