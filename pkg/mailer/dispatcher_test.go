package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-lifecycle/pkg/helpers"
)

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []EmailJob
	err  error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, body.(EmailJob))
	return nil
}

func (p *recordingPublisher) published() []EmailJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]EmailJob(nil), p.jobs...)
}

func TestDispatcher_PublishesQueuedJobs(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, DispatcherConfig{Workers: 2, QueueSize: 8}, helpers.NopLogger())
	require.NoError(t, d.Start(context.Background()))

	for _, to := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		assert.True(t, d.Dispatch(EmailJob{To: to, Template: "verify_email"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	var got []string
	for _, j := range pub.published() {
		got = append(got, j.To)
	}
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com", "c@x.com"}, got)
}

func TestDispatcher_RejectsWhenFull(t *testing.T) {
	d := NewDispatcher(&recordingPublisher{}, DispatcherConfig{Workers: 1, QueueSize: 1}, helpers.NopLogger())

	// Not started, so nothing drains the queue.
	assert.True(t, d.Dispatch(EmailJob{To: "a@x.com"}))
	assert.False(t, d.Dispatch(EmailJob{To: "b@x.com"}))
}

func TestDispatcher_RejectsAfterStop(t *testing.T) {
	d := NewDispatcher(&recordingPublisher{}, DispatcherConfig{}, helpers.NopLogger())
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background()))

	assert.False(t, d.Dispatch(EmailJob{To: "a@x.com"}))
	assert.Error(t, d.Start(context.Background()))
}

func TestDispatcher_NilPublisher(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{}, helpers.NopLogger())
	assert.False(t, d.Dispatch(EmailJob{To: "a@x.com"}))
}

func TestDispatcher_PublishErrorDoesNotStopWorkers(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(pub, DispatcherConfig{Workers: 1, QueueSize: 4}, helpers.NopLogger())
	require.NoError(t, d.Start(context.Background()))

	assert.True(t, d.Dispatch(EmailJob{To: "a@x.com"}))
	assert.True(t, d.Dispatch(EmailJob{To: "b@x.com"}))
	require.NoError(t, d.Stop(context.Background()))
	assert.Empty(t, pub.published())
}
