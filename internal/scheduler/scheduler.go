package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"ReversalFlow/internal/collector"
	"ReversalFlow/internal/report"
)

// ErrRefreshInProgress is returned when a refresh is requested while another runs.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Updater refreshes stale symbols. Implemented by *collector.Collector.
type Updater interface {
	UpdateStale(ctx context.Context, hours float64) (collector.Results, error)
}

// Scheduler runs the periodic stale refresh and serializes it with manual refreshes.
type Scheduler struct {
	Cron       *cron.Cron
	Updater    Updater
	StaleHours float64
	Ctx        context.Context

	// OnRefresh is called after every successful refresh.
	OnRefresh func(collector.Results)

	mu sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, u Updater, staleHours float64) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Updater:    u,
		StaleHours: staleHours,
		Ctx:        ctx,
	}
}

// Register adds the refresh job on a six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.scheduledRefresh); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// Refresh updates stale symbols now. It fails fast with ErrRefreshInProgress
// instead of queueing behind a running refresh.
func (s *Scheduler) Refresh(ctx context.Context) (collector.Results, error) {
	if !s.mu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.mu.Unlock()

	results, err := s.Updater.UpdateStale(ctx, s.StaleHours)
	if err != nil {
		return nil, fmt.Errorf("update stale: %w", err)
	}
	if s.OnRefresh != nil {
		s.OnRefresh(results)
	}
	return results, nil
}

func (s *Scheduler) scheduledRefresh() {
	log.Println("[INFO] running scheduled refresh")
	results, err := s.Refresh(s.Ctx)
	switch {
	case errors.Is(err, ErrRefreshInProgress):
		log.Println("[WARN] scheduled refresh skipped: manual refresh running")
	case err != nil:
		log.Printf("[ERROR] scheduled refresh: %v", err)
	case len(results) > 0:
		log.Printf("[INFO] %s", report.FormatCollectionSummary(results))
	}
}
