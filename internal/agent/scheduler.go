package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/metrics"
)

// scheduler drives the Agent Facade's background slow path (spec.md
// §4.6): a consolidation_interval_seconds-cadence consolidate tick and a
// daily garbage_collect tick. Grounded on the teacher's
// ConsolidationScheduler (internal/reasoningbank/scheduler.go):
// mutex-guarded Start/Stop (a second start while running is an error), a
// panic-recovering run loop driven
// by a ticker — generalized here to two independent tickers sharing one
// stop channel instead of one.
type scheduler struct {
	agent *Agent
	log   *logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func newScheduler(a *Agent, log *logging.Logger) *scheduler {
	return &scheduler{agent: a, log: log}
}

func (s *scheduler) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler: already running")
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(2)
	go s.runConsolidation()
	go s.runGarbageCollection()
	return nil
}

func (s *scheduler) stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *scheduler) runConsolidation() {
	defer s.wg.Done()
	defer s.recoverPanic("consolidation")

	interval := s.agent.cfg.ConsolidationInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tickConsolidate()
		}
	}
}

func (s *scheduler) runGarbageCollection() {
	defer s.wg.Done()
	defer s.recoverPanic("garbage_collect")

	interval := s.agent.cfg.GCInterval()
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tickGarbageCollect()
		}
	}
}

func (s *scheduler) tickConsolidate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.agent.cfg.ConsolidationInterval())
	defer cancel()

	counters, err := s.agent.memory.Consolidate(ctx)
	ev := tickEvent{Kind: "consolidate", UserID: s.agent.cfg.UserID, Timestamp: time.Now()}
	if err != nil {
		s.log.Warn(ctx, "scheduled consolidation tick failed", zap.Error(err))
		ev.Err = err.Error()
	} else {
		ev.Promoted = counters.Promoted
		ev.Decayed = counters.Decayed
		ev.Forgotten = counters.Forgotten
	}
	s.agent.events.publish("agentmem.consolidate", ev)
}

func (s *scheduler) tickGarbageCollect() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	counters, err := s.agent.memory.GarbageCollect(ctx, 0)
	ev := tickEvent{Kind: "garbage_collect", UserID: s.agent.cfg.UserID, Timestamp: time.Now()}
	if err != nil {
		s.log.Warn(ctx, "scheduled garbage collection tick failed", zap.Error(err))
		ev.Err = err.Error()
	} else {
		ev.Forgotten = counters.SoftDeleted + counters.HardDeleted
	}
	s.agent.events.publish("agentmem.garbage_collect", ev)
}

func (s *scheduler) recoverPanic(name string) {
	if r := recover(); r != nil {
		metrics.AgentTurnsTotal.WithLabelValues("panic").Inc()
		s.log.Error(context.Background(), "scheduler goroutine panicked", zap.String("loop", name), zap.Any("panic", r), zap.Stack("stack"))
	}
}
