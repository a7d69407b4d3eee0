package fractalmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/metrics"
	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/volatile"
)

const consolidationLockTTL = 60 * time.Second

// shortHalfLife and mediumHalfLife are the L0/L1 decay kernels of spec.md
// §4.3 step 3 ("short half-life (e.g. minutes)" / "medium half-life
// (hours)"); L2/L3 decay is delegated entirely to the Graph Store.
const (
	shortHalfLife  = 10 * time.Minute
	mediumHalfLife = 6 * time.Hour
	forgetAgeL2    = 30 * 24 * time.Hour
	// abstractionCohesionEntities and abstractionAccessCount are
	// SPEC_FULL.md's Open-Question resolution for step 5: a connected
	// sub-graph counts as cohesive once it shares at least this many
	// entities across at least this much combined access.
	abstractionCohesionEntities = 3
	abstractionAccessCount      = 5
)

// ConsolidateCounters is consolidate's return shape. L0ToL1 and L1ToL2
// break Promoted down by the transition that produced it (steps 1 and 2),
// matching spec.md §6.1's `POST /memory/consolidate` response shape;
// Promoted (their sum, plus step 5's abstractions) is kept for the
// coarser-grained counter the background tick events already report.
type ConsolidateCounters struct {
	Promoted  int
	L0ToL1    int
	L1ToL2    int
	Decayed   int
	Forgotten int
}

// Consolidate runs the five-step consolidation pipeline for the configured
// user, guarded by a non-reentrant per-user lock. If the lock is already
// held, it returns a zero counter immediately rather than blocking.
func (m *Memory) Consolidate(ctx context.Context) (ConsolidateCounters, error) {
	start := time.Now()
	lockKey := fmt.Sprintf("memory:%s:consolidation_lock", m.cfg.UserID)
	token, ok, err := m.volatile.LockAcquire(ctx, lockKey, consolidationLockTTL)
	if err != nil {
		metrics.ConsolidationTicksTotal.WithLabelValues("error").Inc()
		return ConsolidateCounters{}, fmt.Errorf("consolidate: lock acquire: %w", err)
	}
	if !ok {
		metrics.ConsolidationTicksTotal.WithLabelValues("skipped").Inc()
		return ConsolidateCounters{}, nil
	}
	defer func() {
		if _, err := m.volatile.LockRelease(ctx, lockKey, token); err != nil {
			m.log.Warn(ctx, "consolidation lock release failed", zap.Error(err))
		}
	}()

	var counters ConsolidateCounters

	l0ToL1, err := m.consolidateStep1BatchL0(ctx)
	if err != nil {
		m.log.Warn(ctx, "consolidation step 1 (l0->l1 batching) failed", zap.Error(err))
	}
	counters.L0ToL1 += l0ToL1
	counters.Promoted += l0ToL1

	l1ToL2, err := m.consolidateStep2PromoteL1(ctx)
	if err != nil {
		m.log.Warn(ctx, "consolidation step 2 (l1->l2 promotion) failed", zap.Error(err))
	}
	counters.L1ToL2 += l1ToL2
	counters.Promoted += l1ToL2

	if err := m.consolidateStep3Decay(ctx); err != nil {
		m.log.Warn(ctx, "consolidation step 3 (decay) failed", zap.Error(err))
	} else {
		counters.Decayed++
	}

	forgotten, err := m.consolidateStep4Forget(ctx)
	if err != nil {
		m.log.Warn(ctx, "consolidation step 4 (forgetting) failed", zap.Error(err))
	}
	counters.Forgotten += forgotten

	abstracted, err := m.consolidateStep5Abstract(ctx)
	if err != nil {
		m.log.Warn(ctx, "consolidation step 5 (l2->l3 abstraction) failed", zap.Error(err))
	}
	counters.Promoted += abstracted

	m.mu.Lock()
	m.lastConsolidationAt = time.Now()
	m.mu.Unlock()

	metrics.ConsolidationTicksTotal.WithLabelValues("success").Inc()
	metrics.ConsolidationDuration.Observe(time.Since(start).Seconds())
	return counters, nil
}

// consolidateStep1BatchL0 pops batch_size oldest L0 items (if at least that
// many are unconsolidated), summarises them, and writes the synthesised
// record to both L1 and L2.
func (m *Memory) consolidateStep1BatchL0(ctx context.Context) (int, error) {
	pending, err := m.volatile.L0Read(ctx, m.cfg.UserID, m.cfg.L0Capacity)
	if err != nil {
		return 0, fmt.Errorf("l0 read: %w", err)
	}
	if len(pending) < m.cfg.BatchSize {
		return 0, nil
	}

	batch, err := m.volatile.L0RangePop(ctx, m.cfg.UserID, m.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("l0 range pop: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	contents := make([]string, len(batch))
	importances := make([]float64, len(batch))
	for i, ep := range batch {
		contents[i] = ep.Content
		importances[i] = ep.Importance
	}

	summary := m.summariseBatch(ctx, contents, importances)

	sessionID := uuid.NewString()
	now := time.Now()
	if err := m.volatile.L1Put(ctx, m.cfg.UserID, volatile.L1Record{
		SessionID:   sessionID,
		Summary:     summary.Summary,
		Importance:  summary.Importance,
		SourceCount: summary.SourceCount,
		CreatedAt:   now,
		Extra:       map[string]any{"source": model.SourceConversationSum},
	}); err != nil {
		return 0, fmt.Errorf("l1 put: %w", err)
	}

	ep := model.Episode{
		ID:             uuid.NewString(),
		UserID:         m.cfg.UserID,
		Content:        summary.Summary,
		Source:         model.SourceConversationSum,
		CreatedAt:      now,
		LastAccessedAt: now,
		Importance:     summary.Importance,
		Tier:           model.TierL2,
		Scale:          model.ScaleMeso,
	}
	if m.embedder != nil {
		if vecs, err := m.embedder.Embed(ctx, []string{summary.Summary}); err == nil && len(vecs) == 1 {
			ep.Embedding = vecs[0]
		}
	}
	if err := m.graph.UpsertEpisode(ctx, ep, nil); err != nil {
		return 0, fmt.Errorf("upsert l2 summary episode: %w", err)
	}

	metrics.ConsolidationPromoted.WithLabelValues("L1").Inc()
	metrics.ConsolidationPromoted.WithLabelValues("L2").Inc()
	return 1, nil
}

// summariseBatch calls the configured completion provider and coerces its
// response, falling back to a deterministic summary on any failure.
func (m *Memory) summariseBatch(ctx context.Context, contents []string, importances []float64) batchSummary {
	if m.completion == nil {
		return deterministicSummary(contents, importances)
	}
	prompt := "Summarize the following notes as JSON with fields summary, importance (0-1), and source_count:\n\n"
	for _, c := range contents {
		prompt += "- " + c + "\n"
	}
	raw, err := m.completion.Complete(ctx, "You are a memory consolidation summarizer. Respond with JSON only.", prompt)
	if err != nil {
		m.log.Warn(ctx, "external summariser call failed, using deterministic fallback", zap.Error(err))
		return deterministicSummary(contents, importances)
	}
	return coerceSummary(raw, contents, importances)
}

// consolidateStep2PromoteL1 promotes aged or important L1 records to L2,
// deduplicating by content hash. Records written by step 1 (tagged as
// conversation summaries) already have their L2 episode and are skipped.
func (m *Memory) consolidateStep2PromoteL1(ctx context.Context) (int, error) {
	records, err := m.volatile.L1List(ctx, m.cfg.UserID, 0)
	if err != nil {
		return 0, fmt.Errorf("l1 list: %w", err)
	}

	promoted := 0
	now := time.Now()
	for _, rec := range records {
		if src, _ := rec.Extra["source"].(string); src == model.SourceConversationSum {
			continue
		}
		aged := now.Sub(rec.CreatedAt) >= m.cfg.L1TTL()
		important := rec.Importance >= m.cfg.L2Threshold
		if !aged && !important {
			continue
		}

		hash := model.ContentHash(rec.Summary)
		dup, err := m.graph.ExistsDuplicate(ctx, m.cfg.UserID, hash)
		if err != nil {
			m.log.Warn(ctx, "exists_duplicate check failed", zap.String("session_id", rec.SessionID), zap.Error(err))
			continue
		}
		if dup {
			if err := m.volatile.L1Delete(ctx, m.cfg.UserID, rec.SessionID); err != nil {
				m.log.Warn(ctx, "l1 delete of duplicate failed", zap.Error(err))
			}
			continue
		}

		ep := model.Episode{
			ID:             uuid.NewString(),
			UserID:         m.cfg.UserID,
			Content:        rec.Summary,
			Source:         model.SourceBatchSummary,
			CreatedAt:      rec.CreatedAt,
			LastAccessedAt: now,
			Importance:     rec.Importance,
			Tier:           model.TierL2,
			Scale:          model.ScaleMeso,
		}
		if m.embedder != nil {
			if vecs, err := m.embedder.Embed(ctx, []string{rec.Summary}); err == nil && len(vecs) == 1 {
				ep.Embedding = vecs[0]
			}
		}
		if err := m.graph.UpsertEpisode(ctx, ep, nil); err != nil {
			m.log.Warn(ctx, "upsert promoted l2 episode failed", zap.Error(err))
			continue
		}
		if err := m.volatile.L1Delete(ctx, m.cfg.UserID, rec.SessionID); err != nil {
			m.log.Warn(ctx, "l1 delete after promotion failed", zap.Error(err))
		}
		promoted++
	}
	if promoted > 0 {
		metrics.ConsolidationPromoted.WithLabelValues("L2").Add(float64(promoted))
	}
	return promoted, nil
}

// consolidateStep3Decay applies the L0/L1/L2 decay kernels.
func (m *Memory) consolidateStep3Decay(ctx context.Context) error {
	if err := m.decayL0(ctx); err != nil {
		return fmt.Errorf("decay l0: %w", err)
	}
	if err := m.decayL1(ctx); err != nil {
		return fmt.Errorf("decay l1: %w", err)
	}
	if err := m.graph.ApplyDecay(ctx, m.cfg.UserID, shortHalfLife); err != nil {
		return fmt.Errorf("decay l2/l3: %w", err)
	}
	return nil
}

func (m *Memory) decayL0(ctx context.Context) error {
	// L0Append only ever adds to the tail, so decaying in place means
	// draining the log with L0RangePop (oldest-first) and re-appending the
	// decayed snapshot in the same order, rather than doubling it.
	log, err := m.volatile.L0RangePop(ctx, m.cfg.UserID, m.cfg.L0Capacity)
	if err != nil {
		return err
	}
	now := time.Now()
	for i := range log {
		log[i].Importance = decayedImportance(log[i].Importance, now.Sub(log[i].LastAccessedAt), shortHalfLife)
	}
	for _, ep := range log {
		if err := m.volatile.L0Append(ctx, m.cfg.UserID, ep, m.cfg.L0Capacity); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) decayL1(ctx context.Context) error {
	records, err := m.volatile.L1List(ctx, m.cfg.UserID, 0)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, rec := range records {
		rec.Importance = decayedImportance(rec.Importance, now.Sub(rec.CreatedAt), mediumHalfLife)
		if err := m.volatile.L1Put(ctx, m.cfg.UserID, rec); err != nil {
			return err
		}
	}
	return nil
}

// consolidateStep4Forget drops/deletes/soft-deletes below-threshold records
// per tier.
func (m *Memory) consolidateStep4Forget(ctx context.Context) (int, error) {
	forgotten := 0

	// Drain the whole log (oldest-first) rather than reading it, since
	// L0Append only ever appends: rewriting survivors requires popping
	// first to avoid duplicating entries.
	log, err := m.volatile.L0RangePop(ctx, m.cfg.UserID, m.cfg.L0Capacity)
	if err != nil {
		return forgotten, fmt.Errorf("l0 range pop: %w", err)
	}
	var keep []model.Episode
	for _, ep := range log {
		if ep.Importance < m.cfg.ImportanceThreshold && ep.AccessCount == 0 {
			forgotten++
			continue
		}
		keep = append(keep, ep)
	}
	for _, ep := range keep {
		if err := m.volatile.L0Append(ctx, m.cfg.UserID, ep, m.cfg.L0Capacity); err != nil {
			return forgotten, fmt.Errorf("l0 append survivor: %w", err)
		}
	}
	if forgotten > 0 {
		metrics.ConsolidationForgotten.WithLabelValues("L0").Add(float64(forgotten))
	}

	records, err := m.volatile.L1List(ctx, m.cfg.UserID, 0)
	if err != nil {
		return forgotten, fmt.Errorf("l1 list: %w", err)
	}
	now := time.Now()
	l1Forgotten := 0
	for _, rec := range records {
		aged := now.Sub(rec.CreatedAt) >= m.cfg.L1TTL()
		if rec.Importance < m.cfg.ImportanceThreshold && aged {
			if err := m.volatile.L1Delete(ctx, m.cfg.UserID, rec.SessionID); err != nil {
				m.log.Warn(ctx, "l1 forget delete failed", zap.Error(err))
				continue
			}
			l1Forgotten++
		}
	}
	if l1Forgotten > 0 {
		metrics.ConsolidationForgotten.WithLabelValues("L1").Add(float64(l1Forgotten))
		forgotten += l1Forgotten
	}

	l2Tier := model.TierL2
	episodes, err := m.graph.ListEpisodes(ctx, m.cfg.UserID, &l2Tier)
	if err != nil {
		return forgotten, fmt.Errorf("l2 list: %w", err)
	}
	l2Forgotten := 0
	for _, ep := range episodes {
		aged := now.Sub(ep.CreatedAt) >= forgetAgeL2
		if ep.Importance < m.cfg.ImportanceThreshold && aged {
			if err := m.graph.SoftDelete(ctx, m.cfg.UserID, ep.ID); err != nil {
				m.log.Warn(ctx, "l2 forget soft-delete failed", zap.String("episode_id", ep.ID), zap.Error(err))
				continue
			}
			l2Forgotten++
		}
	}
	if l2Forgotten > 0 {
		metrics.ConsolidationForgotten.WithLabelValues("L2").Add(float64(l2Forgotten))
		forgotten += l2Forgotten
	}

	return forgotten, nil
}

// consolidateStep5Abstract emits an abstractive L3 episode inline when the
// user's live L2 episodes (all of them, not only those promoted in this
// tick) exceed the cohesion threshold (SPEC_FULL.md's Open-Question resolution for step 5:
// shared-entity count ≥ abstractionCohesionEntities and combined
// access-count ≥ abstractionAccessCount).
func (m *Memory) consolidateStep5Abstract(ctx context.Context) (int, error) {
	l2Tier := model.TierL2
	episodes, err := m.graph.ListEpisodes(ctx, m.cfg.UserID, &l2Tier)
	if err != nil {
		return 0, fmt.Errorf("l2 list: %w", err)
	}

	entityCounts := make(map[string]int)
	contentByEntity := make(map[string][]string)
	totalAccess := 0
	for _, ep := range episodes {
		totalAccess += ep.AccessCount
		for _, name := range model.ExtractEntityNames(ep.Content) {
			id := model.EntityID(m.cfg.UserID, name)
			entityCounts[id]++
			contentByEntity[id] = append(contentByEntity[id], ep.Content)
		}
	}

	sharedEntities := 0
	var abstractedContent []string
	for id, count := range entityCounts {
		if count >= 2 {
			sharedEntities++
			abstractedContent = append(abstractedContent, contentByEntity[id]...)
		}
	}

	if sharedEntities < abstractionCohesionEntities || totalAccess < abstractionAccessCount {
		return 0, nil
	}

	summary := deterministicSummary(abstractedContent, nil)
	now := time.Now()
	ep := model.Episode{
		ID:             uuid.NewString(),
		UserID:         m.cfg.UserID,
		Content:        summary.Summary,
		Source:         model.SourceBatchSummary,
		CreatedAt:      now,
		LastAccessedAt: now,
		Importance:     m.cfg.L2Threshold,
		Tier:           model.TierL3,
		Scale:          model.ScaleMacro,
	}
	if err := m.graph.UpsertEpisode(ctx, ep, nil); err != nil {
		return 0, fmt.Errorf("upsert l3 abstraction: %w", err)
	}
	metrics.ConsolidationPromoted.WithLabelValues("L3").Inc()
	return 1, nil
}
