// Package scheduler runs the periodic background jobs: keeping the book
// collection in sync with the store and closing abandoned add-book forms.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/flashshelf/internal/config"
)

const (
	sweepSchedule = "@every 1m"
	fetchTimeout  = time.Minute
)

// Syncer is the part of library.Library the scheduler drives.
type Syncer interface {
	Live() bool
	Run(ctx context.Context) error
	FetchAll(ctx context.Context) error
}

// Sweeper closes idle forms.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Scheduler keeps the change feed running and periodically refetches the
// whole table. A dropped feed is restarted on the next tick; there is no
// retry loop in between.
type Scheduler struct {
	syncer   Syncer
	sweeper  Sweeper
	schedule string
	idle     time.Duration

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	isSyncing bool
	ctx       context.Context
	cancel    context.CancelFunc
	feeds     sync.WaitGroup
}

// New creates a scheduler. sweeper may be nil.
func New(syncer Syncer, sweeper Sweeper, cfg config.Sync) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		sweeper:  sweeper,
		schedule: cfg.ResyncSchedule,
		idle:     cfg.FormIdleTimeout,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
	}
}

// ValidateSchedule reports whether schedule is a valid five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := cron.ParseStandard(schedule)
	return err
}

// Start subscribes and fetches immediately, then schedules the jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.schedule != "" {
		entryID, err := s.cron.AddFunc(s.schedule, s.Resync)
		if err != nil {
			return fmt.Errorf("invalid resync schedule '%s': %w", s.schedule, err)
		}
		s.entryID = entryID
	}
	if s.sweeper != nil && s.idle > 0 {
		if _, err := s.cron.AddFunc(sweepSchedule, s.sweep); err != nil {
			return fmt.Errorf("failed to schedule form sweep: %w", err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.isRunning = true

	if s.schedule != "" {
		log.Printf("Resync scheduler: started with schedule '%s'", s.schedule)
	} else {
		log.Printf("Resync scheduler: periodic resync disabled")
	}

	go s.Resync()

	return nil
}

// Stop cancels the feed and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	cancel()
	<-done.Done()
	s.feeds.Wait()

	log.Printf("Resync scheduler: stopped")
}

// Resync restarts the change feed if it is down (Run fetches on its own) or
// refetches the table otherwise.
func (s *Scheduler) Resync() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	if s.isSyncing {
		s.mu.Unlock()
		log.Printf("Resync: skipped (already syncing)")
		return
	}
	s.isSyncing = true
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	if !s.syncer.Live() {
		s.startFeed(ctx)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	if err := s.syncer.FetchAll(fetchCtx); err != nil {
		log.Printf("Resync: fetch failed: %v", err)
	}
}

func (s *Scheduler) startFeed(ctx context.Context) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.feeds.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.feeds.Done()
		log.Printf("Resync: starting change feed")
		err := s.syncer.Run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
		default:
			log.Printf("Resync: change feed stopped: %v", err)
		}
	}()
}

func (s *Scheduler) sweep() {
	if n := s.sweeper.Sweep(s.idle); n > 0 {
		log.Printf("Resync: closed %d idle forms", n)
	}
}

// IsRunning returns whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next resync will occur
func (s *Scheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || s.entryID == 0 {
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
