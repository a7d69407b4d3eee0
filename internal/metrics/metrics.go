// Package metrics exposes Prometheus counters and histograms for the
// memory core's tier transitions, retrieval arms, and reasoning-bank
// updates, following the promauto registration pattern the teacher uses
// for vector-store health metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// L0Dropped counts episodes evicted from the volatile L0 ring buffer
	// because it was at capacity (spec invariant 3.1.2).
	L0Dropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "volatile",
		Name:      "l0_dropped_total",
		Help:      "Episodes dropped from L0 due to capacity eviction",
	})

	// ConsolidationTicksTotal counts consolidation pipeline runs by outcome.
	ConsolidationTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "consolidation",
		Name:      "ticks_total",
		Help:      "Consolidation ticks by outcome (success, skipped, error)",
	}, []string{"result"})

	// ConsolidationPromoted counts episodes promoted to L1/L2/L3 per tick.
	ConsolidationPromoted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "consolidation",
		Name:      "promoted_total",
		Help:      "Records promoted between tiers",
	}, []string{"to_tier"})

	// ConsolidationForgotten counts records soft- and hard-deleted by GC.
	ConsolidationForgotten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "consolidation",
		Name:      "forgotten_total",
		Help:      "Records forgotten by garbage collection",
	}, []string{"stage"})

	// ConsolidationDuration tracks consolidation tick latency.
	ConsolidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentmem",
		Subsystem: "consolidation",
		Name:      "duration_seconds",
		Help:      "Duration of a full consolidation tick",
		Buckets:   prometheus.DefBuckets,
	})

	// RetrieverArmFailures counts hybrid-retriever arm failures by arm name.
	RetrieverArmFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "retrieval",
		Name:      "arm_failures_total",
		Help:      "Retrieval arm failures by arm (vector, keyword, graph)",
	}, []string{"arm"})

	// RetrieverDegraded counts queries served with fewer than all arms.
	RetrieverDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "retrieval",
		Name:      "degraded_total",
		Help:      "Queries served in degraded mode (one or more arms failed)",
	})

	// RetrieverDuration tracks end-to-end hybrid retrieval latency.
	RetrieverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentmem",
		Subsystem: "retrieval",
		Name:      "duration_seconds",
		Help:      "Duration of a hybrid retrieval call",
		Buckets:   prometheus.DefBuckets,
	})

	// ReasoningBankUpdates counts strategy confidence updates by outcome.
	ReasoningBankUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "reasoningbank",
		Name:      "strategy_updates_total",
		Help:      "Strategy confidence updates by outcome (success, failure, partial)",
	}, []string{"outcome"})

	// ReasoningBankAntiPatterns counts strategies flagged as anti-patterns.
	ReasoningBankAntiPatterns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "reasoningbank",
		Name:      "anti_patterns_flagged_total",
		Help:      "Strategies flagged as anti-patterns after repeated failure",
	})

	// StoreUnavailable counts store-adapter errors that exhausted retries,
	// by store name (volatile, graph).
	StoreUnavailable = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "store",
		Name:      "unavailable_total",
		Help:      "Store operations that failed after exhausting retries",
	}, []string{"store"})

	// AgentTurnDuration tracks the Agent Facade's per-turn fast-path latency.
	AgentTurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentmem",
		Subsystem: "agent",
		Name:      "turn_duration_seconds",
		Help:      "Duration of one Agent Facade chat turn",
		Buckets:   prometheus.DefBuckets,
	})

	// AgentTurnsTotal counts chat turns by outcome (ok, error, timeout).
	AgentTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentmem",
		Subsystem: "agent",
		Name:      "turns_total",
		Help:      "Chat turns processed by outcome",
	}, []string{"result"})
)
