// Package config loads the flat configuration payload described in
// SPEC_FULL.md §6.4: a single Config struct with recognised keys,
// environment overrides taking precedence over a YAML file, and
// forward-compatible handling of unknown keys.
package config

import "time"

// RetrievalWeights are the reciprocal-rank-fusion arm weights, summing to 1.
type RetrievalWeights struct {
	Vector  float64 `koanf:"vector"`
	Keyword float64 `koanf:"keyword"`
	Graph   float64 `koanf:"graph"`
}

// Config is the typed configuration record for the memory core: the keys
// enumerated in spec §6.4 plus the completion, agent, HTTP and embedding
// settings the daemon adds on top of them.
type Config struct {
	UserID string `koanf:"user_id"`

	GraphURI      string `koanf:"graph_uri"`
	GraphUser     string `koanf:"graph_user"`
	GraphPassword string `koanf:"graph_password"`

	VolatileURL string `koanf:"volatile_url"`

	L0Capacity          int     `koanf:"l0_capacity"`
	L1TTLDays           int     `koanf:"l1_ttl_days"`
	BatchSize           int     `koanf:"batch_size"`
	ImportanceThreshold float64 `koanf:"importance_threshold"`
	L2Threshold         float64 `koanf:"l2_threshold"`

	ConsolidationIntervalSeconds int `koanf:"consolidation_interval_seconds"`

	RetrievalWeights RetrievalWeights `koanf:"retrieval_weights"`
	RetrievalLimit   int              `koanf:"retrieval_limit"`

	ExplorationRate   float64 `koanf:"exploration_rate"`
	ConfidenceBoost   float64 `koanf:"confidence_boost"`
	ConfidencePenalty float64 `koanf:"confidence_penalty"`

	ExperienceBufferSize      int `koanf:"experience_buffer_size"`
	MinExperiencesForStrategy int `koanf:"min_experiences_for_strategy"`

	EmbeddingDimensions int `koanf:"embedding_dimensions"`

	// CompletionModel selects the completion provider's model. Not part of
	// the original §6.4 table but required to construct a default
	// completion provider; see SPEC_FULL.md §6.4.
	CompletionModel string `koanf:"completion_model"`

	// NATSURL, when non-empty, enables best-effort event publication for
	// background tick observability (SPEC_FULL.md §4.6 event bus).
	NATSURL string `koanf:"nats_url"`

	// ChatTurnTimeoutSeconds bounds the Agent Facade's per-turn fast path
	// (SPEC_FULL.md §4.6 step 5).
	ChatTurnTimeoutSeconds int `koanf:"chat_turn_timeout_seconds"`

	// GCIntervalHours is the Agent Facade's background garbage_collect
	// tick cadence (SPEC_FULL.md §4.6, "a lower-frequency tick (daily)").
	GCIntervalHours int `koanf:"gc_interval_hours"`

	// PromptContextBudgetChars bounds the context snippets assembled into
	// the Agent Facade's prompt (SPEC_FULL.md §4.6 step 4's "token budget",
	// approximated in characters since no tokenizer is wired).
	PromptContextBudgetChars int `koanf:"prompt_context_budget_chars"`

	// RecallLimit is the Agent Facade's per-turn recall width (§4.6 step 2).
	RecallLimit int `koanf:"recall_limit"`

	// StrategyHintLimit bounds how many strategies are rendered into the
	// prompt (§4.6 step 3, "up to 2 strategies").
	StrategyHintLimit int `koanf:"strategy_hint_limit"`

	// HTTPHost and HTTPPort bind the chat HTTP surface (SPEC_FULL.md §6.1).
	// Not in spec.md §6.4's table but required to serve it; named and
	// defaulted the way the teacher's internal/http.Config does.
	HTTPHost string `koanf:"http_host"`
	HTTPPort int    `koanf:"http_port"`

	// CORSAllowedOrigins lists origins the chat HTTP surface accepts
	// cross-origin requests from. Empty means refuse cross-origin, per
	// spec.md §6.1's "default empty (refuse cross-origin)".
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// AnthropicAPIKey authenticates the default completion provider. Not
	// part of §6.4's table for the same reason CompletionModel isn't: the
	// daemon needs it to construct a live provider, and koanf's permissive
	// unmarshal means adding it costs nothing for callers who omit it.
	AnthropicAPIKey string `koanf:"anthropic_api_key"`

	// EmbeddingBaseURL, EmbeddingModel, EmbeddingAPIKey configure the
	// OpenAI-compatible embedding client (internal/embedding). Embeddings
	// are optional per spec.md §3.1; leaving EmbeddingBaseURL empty means
	// cmd/agentmemd constructs Memory without an embedder.
	EmbeddingBaseURL string `koanf:"embedding_base_url"`
	EmbeddingModel   string `koanf:"embedding_model"`
	EmbeddingAPIKey  string `koanf:"embedding_api_key"`
}

// Defaults returns the configuration with every value from spec §6.4's
// "default" column populated.
func Defaults() Config {
	return Config{
		UserID:                       "default",
		L0Capacity:                   500,
		L1TTLDays:                    30,
		BatchSize:                    15,
		ImportanceThreshold:          0.3,
		L2Threshold:                  0.7,
		ConsolidationIntervalSeconds: 300,
		RetrievalWeights:             RetrievalWeights{Vector: 0.5, Keyword: 0.3, Graph: 0.2},
		RetrievalLimit:               5,
		ExplorationRate:              0.1,
		ConfidenceBoost:              0.05,
		ConfidencePenalty:            0.10,
		ExperienceBufferSize:         100,
		MinExperiencesForStrategy:    3,
		EmbeddingDimensions:          1536,
		CompletionModel:              "claude-3-5-haiku-latest",
		ChatTurnTimeoutSeconds:       30,
		GCIntervalHours:              24,
		PromptContextBudgetChars:     4000,
		RecallLimit:                  5,
		StrategyHintLimit:            2,
		HTTPHost:                     "localhost",
		HTTPPort:                     8080,
		CORSAllowedOrigins:           nil,
	}
}

// ChatTurnTimeout returns the per-turn fast-path deadline as a duration.
func (c Config) ChatTurnTimeout() time.Duration {
	return time.Duration(c.ChatTurnTimeoutSeconds) * time.Second
}

// GCInterval returns the background garbage_collect tick cadence.
func (c Config) GCInterval() time.Duration {
	return time.Duration(c.GCIntervalHours) * time.Hour
}

// L1TTL returns the L1 TTL as a duration.
func (c Config) L1TTL() time.Duration {
	return time.Duration(c.L1TTLDays) * 24 * time.Hour
}

// ConsolidationInterval returns the slow-path tick interval as a duration.
func (c Config) ConsolidationInterval() time.Duration {
	return time.Duration(c.ConsolidationIntervalSeconds) * time.Second
}

// Validate rejects configurations that cannot possibly serve the core
// (required connection strings, and the l0_capacity ≤ 10,000 constraint of
// spec §4.1).
func (c Config) Validate() error {
	if c.GraphURI == "" {
		return errConfig("graph_uri is required")
	}
	if c.VolatileURL == "" {
		return errConfig("volatile_url is required")
	}
	if c.L0Capacity <= 0 || c.L0Capacity > 10000 {
		return errConfig("l0_capacity must be in (0, 10000]")
	}
	if c.BatchSize <= 0 || c.BatchSize > c.L0Capacity {
		return errConfig("batch_size must be in (0, l0_capacity]")
	}
	w := c.RetrievalWeights
	sum := w.Vector + w.Keyword + w.Graph
	if sum < 0.99 || sum > 1.01 {
		return errConfig("retrieval_weights must sum to 1.0")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errConfig(msg string) error { return configError(msg) }
