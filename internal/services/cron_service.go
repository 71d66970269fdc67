package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ExpiredTokenPurger deletes refresh tokens that can no longer be used
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// LoginAttemptCleaner drops failed-login records that no longer count
type LoginAttemptCleaner interface {
	CleanupExpiredRateLimits(ctx context.Context) (int64, error)
}

// CronService manages scheduled maintenance jobs
type CronService struct {
	cron      *cron.Cron
	tokens    ExpiredTokenPurger
	search    CacheInvalidator
	attempts  LoginAttemptCleaner
	retention time.Duration
	logger    *logrus.Logger
}

// NewCronService creates a new CronService. Expired or revoked refresh tokens
// are kept for retention before being purged. search may be nil.
func NewCronService(tokens ExpiredTokenPurger, search CacheInvalidator, retention time.Duration, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:      cron.New(cron.WithSeconds()),
		tokens:    tokens,
		search:    search,
		retention: retention,
		logger:    logger,
	}
}

// SetLoginAttemptCleaner enables the login attempt cleanup job; call before Start
func (s *CronService) SetLoginAttemptCleaner(attempts LoginAttemptCleaner) {
	s.attempts = attempts
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	// second minute hour day month weekday
	if _, err := s.cron.AddFunc("0 30 3 * * *", s.purgeTokensJob); err != nil {
		return fmt.Errorf("failed to schedule token purge job: %w", err)
	}
	// yesterday's dates drop out of search results at midnight
	if _, err := s.cron.AddFunc("0 0 0 * * *", s.resetSearchCacheJob); err != nil {
		return fmt.Errorf("failed to schedule search cache reset job: %w", err)
	}
	if s.attempts != nil {
		if _, err := s.cron.AddFunc("0 */15 * * * *", s.cleanupLoginAttemptsJob); err != nil {
			return fmt.Errorf("failed to schedule login attempt cleanup job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Cron service started")
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) purgeTokensJob() {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.tokens.DeleteExpired(ctx, startTime.Add(-s.retention))
	if err != nil {
		s.logger.WithError(err).Error("Refresh token purge failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"duration": time.Since(startTime).String(),
	}).Info("Purged expired refresh tokens")
}

func (s *CronService) resetSearchCacheJob() {
	if s.search == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.search.InvalidateCache(ctx)
}

func (s *CronService) cleanupLoginAttemptsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.attempts.CleanupExpiredRateLimits(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Login attempt cleanup failed")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Debug("Cleaned up login attempts")
	}
}

// RunPurgeTokensNow runs the token purge immediately
func (s *CronService) RunPurgeTokensNow() {
	s.purgeTokensJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
