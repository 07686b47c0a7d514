package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // fail this many times, then succeed
	calls    atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(context.Context) error {
	if n := j.calls.Add(1); n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(logger.Nop())

	job := &countingJob{name: "forecast", schedule: "0 0 3 * * 1"}
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job), "duplicate")
	assert.Error(t, s.AddJob(&countingJob{name: "bad", schedule: "not a cron"}))

	assert.Equal(t, []string{"forecast"}, s.GetAllJobs())

	next, ok := s.NextRun("forecast")
	require.True(t, ok)
	assert.True(t, next.IsZero(), "not started yet")

	require.NoError(t, s.RemoveJob("forecast"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("forecast"))
}

func TestScheduler_RunJobRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetries(2, time.Millisecond))
	job := &countingJob{name: "flaky", schedule: "@weekly", failures: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob(context.Background(), "flaky"))
	assert.Equal(t, int32(3), job.calls.Load())

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 3, history[0].Attempts)
}

func TestScheduler_RunJobFailure(t *testing.T) {
	s := New(logger.Nop(), WithRetries(1, time.Millisecond))
	job := &countingJob{name: "broken", schedule: "@weekly", failures: 100}
	require.NoError(t, s.AddJob(job))

	err := s.RunJob(context.Background(), "broken")
	require.Error(t, err)
	assert.Equal(t, int32(2), job.calls.Load())

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Zero(t, stats.SuccessRate)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)

	assert.Error(t, s.RunJob(context.Background(), "missing"))
}

func TestScheduler_CancelledSkipsRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetries(5, time.Hour))
	job := &countingJob{name: "j", schedule: "@weekly", failures: 100}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.RunJob(ctx, "j"))
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	_, ok := h.Last()
	assert.False(t, ok)
	assert.Zero(t, h.SuccessRate())

	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "j", Attempts: i, Success: i%3 != 0})
	}

	assert.Len(t, h.Results, maxHistory)
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, 149, last.Attempts)
	assert.Equal(t, 50, h.Results[0].Attempts)

	fail, ok := h.LastWhere(false)
	require.True(t, ok)
	assert.Equal(t, 147, fail.Attempts)

	// results 50..149: multiples of 3 fail
	assert.Equal(t, 33, h.Failures())
	assert.InDelta(t, 0.67, h.SuccessRate(), 1e-9)
}
