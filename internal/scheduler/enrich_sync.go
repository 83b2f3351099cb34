// Package scheduler runs periodic maintenance: a cron-driven sweep that
// enqueues enrichment for notes still missing summaries, plus tag and
// batch cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/notekeeper/internal/tasks"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config controls the enrichment sweep scheduler.
type Config struct {
	Enabled  bool
	Schedule string // standard 5-field cron expression
}

// EnrichSyncScheduler periodically enqueues background maintenance
// tasks: the enrichment sweep for notes without summaries, orphan tag
// cleanup and old batch cleanup.
type EnrichSyncScheduler struct {
	queue  *tasks.Client
	config Config

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSweeping bool
	cancelFunc context.CancelFunc
}

// NewEnrichSyncScheduler creates a new scheduler instance.
func NewEnrichSyncScheduler(queue *tasks.Client, config Config) *EnrichSyncScheduler {
	return &EnrichSyncScheduler{
		queue:  queue,
		config: config,
		cron:   cron.New(cron.WithParser(cronParser)),
	}
}

// Start begins the scheduler if the sweep is enabled.
func (s *EnrichSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.config.Enabled {
		log.Printf("Enrichment sweep scheduler: disabled")
		return nil
	}

	if _, err := cronParser.Parse(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Enrichment sweep scheduler: started with schedule '%s'", s.config.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep job.
func (s *EnrichSyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Enrichment sweep scheduler: stopped")
}

// RunNow triggers an immediate sweep.
func (s *EnrichSyncScheduler) RunNow() error {
	go s.runSweep()
	return nil
}

// IsRunning returns whether the scheduler is active.
func (s *EnrichSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sweep will occur.
func (s *EnrichSyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSweep enqueues the maintenance tasks. Skipped when the previous
// sweep's enqueue is still in flight.
func (s *EnrichSyncScheduler) runSweep() {
	s.mu.Lock()
	if s.isSweeping {
		s.mu.Unlock()
		log.Printf("Enrichment sweep: skipped (already running)")
		return
	}
	s.isSweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSweeping = false
		s.mu.Unlock()
	}()

	if _, err := s.queue.Add(tasks.EnrichPendingNotesTask{}).Save(); err != nil {
		log.Printf("Enrichment sweep: failed to enqueue: %v", err)
		return
	}
	if _, err := s.queue.Add(tasks.CleanupOrphanTagsTask{}).Save(); err != nil {
		log.Printf("Enrichment sweep: failed to enqueue tag cleanup: %v", err)
	}
	if _, err := s.queue.Add(tasks.CleanupOldBatchesTask{}).Save(); err != nil {
		log.Printf("Enrichment sweep: failed to enqueue batch cleanup: %v", err)
	}

	log.Printf("Enrichment sweep: maintenance tasks enqueued")
}
