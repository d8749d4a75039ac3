package services

import (
	"context"
	"fmt"
	"time"

	"duo-checkin-backend/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const reminderRunTimeout = 5 * time.Minute

// CheckInReminderJob sends remind_checkin to every user without a check-in today
type CheckInReminderJob struct {
	store      repository.Store
	dispatcher *Dispatcher
}

// NewCheckInReminderJob creates the reminder job
func NewCheckInReminderJob(store repository.Store, dispatcher *Dispatcher) *CheckInReminderJob {
	return &CheckInReminderJob{store: store, dispatcher: dispatcher}
}

// Run implements cron.Job
func (j *CheckInReminderJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderRunTimeout)
	defer cancel()

	sent, err := j.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Check-in reminder run failed")
		return
	}
	log.Info().Int("sent", sent).Msg("Check-in reminders queued")
}

// RunOnce queues reminders and returns how many were queued
func (j *CheckInReminderJob) RunOnce(ctx context.Context) (int, error) {
	userIDs, err := j.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	sent := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		delivery, err := j.dispatcher.RemindCheckIn(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to queue check-in reminder")
			continue
		}
		if delivery != nil {
			sent++
		}
	}
	return sent, nil
}

// Scheduler runs periodic jobs
type Scheduler struct {
	engine *cron.Cron
}

// NewScheduler creates a scheduler accepting six-field (seconds first) specs
func NewScheduler() *Scheduler {
	return &Scheduler{engine: cron.New(cron.WithSeconds())}
}

// Register adds job under spec
func (s *Scheduler) Register(spec string, job cron.Job) error {
	if _, err := s.engine.AddJob(spec, job); err != nil {
		return fmt.Errorf("failed to register job %q: %w", spec, err)
	}
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	log.Info().Msg("Scheduler started")
	s.engine.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.engine.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	log.Info().Msg("Scheduler stopped")
}
