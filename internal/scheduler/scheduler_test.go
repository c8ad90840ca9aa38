package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-lifecycle/pkg/helpers"
)

type countingJob struct {
	runs  atomic.Int32
	block chan struct{}
}

func (j *countingJob) Run() {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(helpers.NopLogger())
	err := s.Add("reaper", "not a cron", &countingJob{})
	assert.ErrorContains(t, err, "schedule reaper")
}

func TestScheduler_LogsNextRun(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	s := New(logger)
	before := time.Now()

	require.NoError(t, s.Add("reaper", "0 2 * * *", &countingJob{}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	next, ok := entry.Data["next_run"].(time.Time)
	require.True(t, ok)
	assert.True(t, next.After(before))
	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestScheduler_RunsJob(t *testing.T) {
	s := New(helpers.NopLogger())
	job := &countingJob{}
	require.NoError(t, s.Add("tick", "@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(helpers.NopLogger())
	job := &countingJob{block: make(chan struct{})}
	require.NoError(t, s.Add("slow", "@every 1s", job))

	s.Start()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, 3*time.Second, 50*time.Millisecond)

	// a second tick passes while the first run is still blocked
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
