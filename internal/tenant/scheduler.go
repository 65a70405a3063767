package tenant

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// Scheduler runs chain operations that carry a cron schedule instead of
// executing immediately. Each scheduled operation fires on its cadence
// with a fresh copy of the operation record, so one run's Results never
// bleed into the next.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	log    logrus.FieldLogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(engine *Engine, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		engine:  engine,
		cron:    cron.New(),
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers op to run on its cron expression. An operation
// with an empty Schedule is a caller error here; immediate execution
// goes through Engine.Execute directly. Re-scheduling an op ID replaces
// the previous entry.
func (s *Scheduler) Schedule(op *domain.ChainOperation) error {
	if op.Schedule == "" {
		return voicehiveerr.Validation("chain operation has no schedule", nil)
	}
	if op.ID == "" {
		return voicehiveerr.Validation("scheduled chain operation needs an id", nil)
	}

	template := *op
	id, err := s.cron.AddFunc(op.Schedule, func() {
		run := template
		run.Results = nil
		run.Status = domain.ChainOpPending
		run.PercentComplete = 0
		if err := s.engine.Execute(context.Background(), &run); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"operation_id": run.ID,
				"chain_id":     run.ChainID,
				"type":         run.Type,
			}).Error("scheduled chain operation failed")
		}
	})
	if err != nil {
		return voicehiveerr.Validation("invalid cron schedule "+op.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[op.ID]; ok {
		s.cron.Remove(prev)
	}
	s.entries[op.ID] = id
	return nil
}

// Unschedule removes a previously scheduled operation; unknown IDs are
// a no-op.
func (s *Scheduler) Unschedule(opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[opID]; ok {
		s.cron.Remove(id)
		delete(s.entries, opID)
	}
}

// Start begins firing scheduled operations; Stop halts the timer and
// waits for any in-flight run to finish.
func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
