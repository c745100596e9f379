package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jsierrab/aguachica-air/internal/airquality"
)

// Scheduler periodically runs live collection for the configured locations:
// every CollectEvery interval plus fixed morning and evening runs. The first
// collection fires immediately on start.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector *airquality.Collector
	interval  time.Duration
}

// New creates a Scheduler around the collector.
func New(collector *airquality.Collector, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		collector: collector,
		interval:  interval,
	}
}

// Start registers the jobs and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 240
	}

	job := func() {
		log.Println("scheduler: running collection job")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		successful, failed := s.collector.CollectAll(ctx)
		log.Printf("scheduler: collection job done: %d ok, %d failed", successful, failed)
	}

	if _, err := s.scheduler.Every(minutes).Minutes().StartImmediately().Do(job); err != nil {
		return err
	}
	// Fixed daily runs, matching the morning and evening reporting windows.
	if _, err := s.scheduler.Every(1).Day().At("06:00").Do(job); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(1).Day().At("18:00").Do(job); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("scheduler: started, collecting every %d minutes plus 06:00 and 18:00 UTC", minutes)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
