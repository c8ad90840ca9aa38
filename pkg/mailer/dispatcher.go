package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Publisher hands a job to the delivery queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// DispatcherConfig holds worker pool configuration.
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	PublishTimeout time.Duration
}

// DefaultDispatcherConfig returns the default pool configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:        2,
		QueueSize:      256,
		PublishTimeout: 5 * time.Second,
	}
}

// Dispatcher publishes email jobs from a bounded in-process queue so request
// handlers never wait on the broker.
type Dispatcher struct {
	cfg    DispatcherConfig
	pub    Publisher
	logger *logrus.Logger

	jobs chan EmailJob
	wg   sync.WaitGroup

	mu      sync.RWMutex
	running bool
	closed  bool
}

func NewDispatcher(pub Publisher, cfg DispatcherConfig, logger *logrus.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		cfg:    cfg,
		pub:    pub,
		logger: logger,
		jobs:   make(chan EmailJob, cfg.QueueSize),
	}
}

// Start launches the publishing workers.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("dispatcher is stopped")
	}
	if d.running {
		return errors.New("dispatcher is already running")
	}
	d.running = true

	for i := 0; i < d.cfg.Workers; i++ {
		workerID := fmt.Sprintf("email-worker-%d", i+1)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(ctx, workerID)
		}()
	}
	d.logger.WithField("workers", d.cfg.Workers).Info("email dispatcher started")
	return nil
}

// Dispatch enqueues job without blocking and reports whether it was accepted.
func (d *Dispatcher) Dispatch(job EmailJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.pub == nil {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		d.logger.WithFields(logrus.Fields{
			"to":       job.To,
			"template": job.Template,
		}).Warn("email queue full; dropping job")
		return false
	}
}

// Stop rejects new jobs and waits for queued ones to be published.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("email dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("timeout waiting for email dispatcher to drain")
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context, workerID string) {
	for job := range d.jobs {
		d.publish(ctx, workerID, job)
	}
}

func (d *Dispatcher) publish(ctx context.Context, workerID string, job EmailJob) {
	// The request that produced the job is long gone; only the timeout applies.
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.PublishTimeout)
	defer cancel()
	if err := d.pub.PublishJSON(c, job); err != nil {
		d.logger.WithFields(logrus.Fields{
			"worker":   workerID,
			"to":       job.To,
			"template": job.Template,
			"error":    err.Error(),
		}).Error("email publish failed")
		return
	}
	d.logger.WithFields(logrus.Fields{
		"worker":   workerID,
		"to":       job.To,
		"template": job.Template,
	}).Debug("email job published")
}
