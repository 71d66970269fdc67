package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoff time.Time
	err    error
}

func (p *fakePurger) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 3, p.err
}

type fakeAttemptCleaner struct {
	calls int
}

func (c *fakeAttemptCleaner) CleanupExpiredRateLimits(_ context.Context) (int64, error) {
	c.calls++
	return 4, nil
}

func TestCronService_PurgeUsesRetention(t *testing.T) {
	purger := &fakePurger{}
	service := NewCronService(purger, nil, 48*time.Hour, quietLogger())

	service.RunPurgeTokensNow()
	assert.WithinDuration(t, time.Now().Add(-48*time.Hour), purger.cutoff, time.Minute)

	purger.err = errors.New("db down")
	assert.NotPanics(t, service.RunPurgeTokensNow)
}

func TestCronService_StartStop(t *testing.T) {
	search := &countingInvalidator{}
	service := NewCronService(&fakePurger{}, search, time.Hour, quietLogger())

	require.NoError(t, service.Start())
	status := service.GetJobStatus()
	assert.Equal(t, 2, status["job_count"])
	assert.Equal(t, true, status["running"])
	service.Stop()

	service.resetSearchCacheJob()
	assert.Equal(t, 1, search.calls)
}

func TestCronService_LoginAttemptCleanup(t *testing.T) {
	cleaner := &fakeAttemptCleaner{}
	service := NewCronService(&fakePurger{}, nil, time.Hour, quietLogger())
	service.SetLoginAttemptCleaner(cleaner)

	require.NoError(t, service.Start())
	assert.Equal(t, 3, service.GetJobStatus()["job_count"])
	service.Stop()

	service.cleanupLoginAttemptsJob()
	assert.Equal(t, 1, cleaner.calls)
}
