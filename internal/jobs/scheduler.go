package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/config"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
)

// ReminderChecker runs one pass of the unread reminder ladder.
type ReminderChecker interface {
	CheckUnresolved(ctx context.Context) (services.ReminderReport, error)
}

// PlaceholderReaper deletes media placeholders whose upload never arrived.
type PlaceholderReaper interface {
	ReapPlaceholders(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Scheduler owns the periodic background jobs.
type Scheduler struct {
	cron      *cron.Cron
	reminders ReminderChecker
	reaper    PlaceholderReaper
	maxAge    time.Duration
	timeout   time.Duration
}

func NewScheduler(cfg config.SchedulerConfig, reminders ReminderChecker, reaper PlaceholderReaper) (*Scheduler, error) {
	s := &Scheduler{
		// overlapping runs would race on the same reminder stages
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reminders: reminders,
		reaper:    reaper,
		maxAge:    cfg.PlaceholderMaxAge,
		timeout:   10 * time.Minute,
	}

	if _, err := s.cron.AddFunc(cfg.ReminderSpec, s.runReminders); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.ReaperSpec, s.runReaper); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", cfg.ReaperSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.reminders.CheckUnresolved(ctx)
	if err != nil {
		slog.Error("Reminder job failed", "error", err)
		return
	}
	slog.Info("Reminder job finished",
		"checked", report.Checked,
		"remindersSent", report.RemindersSent,
		"duration", time.Since(start))
}

func (s *Scheduler) runReaper() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.reaper.ReapPlaceholders(ctx, s.maxAge)
	if err != nil {
		slog.Error("Placeholder reaper failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Deleted stale placeholders", "count", n, "maxAge", s.maxAge)
	}
}
