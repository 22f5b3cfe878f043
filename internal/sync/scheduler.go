package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"clinic-sync-service/internal/logger"
)

// Scheduler drives the periodic flush. Stopping it only cancels the timer;
// an in-flight flush runs to completion.
type Scheduler struct {
	interval time.Duration
	manager  *Manager
	cron     *cron.Cron
	entryID  cron.EntryID
}

func NewScheduler(interval time.Duration, manager *Manager) *Scheduler {
	return &Scheduler{
		interval: interval,
		manager:  manager,
		cron:     cron.New(),
	}
}

func (s *Scheduler) Start() error {
	logger.Log.Info("Starting flush scheduler", zap.Duration("interval", s.interval))

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.manager.Flush(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule flush: %w", err)
	}

	s.entryID = id
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	logger.Log.Info("Stopped flush scheduler")
}
