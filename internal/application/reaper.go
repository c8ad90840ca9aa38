package application

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/account-lifecycle/pkg/helpers"
)

var ErrSweepInProgress = errors.New("reaper sweep already in progress")

// Reaper deletes accounts that stayed PENDING past the retention period.
// Deletion runs in batches, each in its own unit of work, so a large backlog
// never holds one long transaction.
type Reaper struct {
	uow       repository.UnitOfWork
	retention time.Duration
	batchSize int
	logger    *logrus.Logger
	now       func() time.Time

	running atomic.Bool
}

func NewReaper(uow repository.UnitOfWork, retention time.Duration, batchSize int, logger *logrus.Logger, now func() time.Time) *Reaper {
	if batchSize <= 0 {
		batchSize = 500
	}
	if logger == nil {
		logger = helpers.NopLogger()
	}
	if now == nil {
		now = time.Now
	}
	return &Reaper{uow: uow, retention: retention, batchSize: batchSize, logger: logger, now: now}
}

// Sweep removes every stale PENDING account and returns how many were
// deleted. Only one sweep runs at a time.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	if !r.running.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer r.running.Store(false)

	cutoff := r.now().Add(-r.retention)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := r.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) (err error) {
			n, err = repos.Accounts().DeleteStale(ctx, entity.AccountPending, cutoff, r.batchSize)
			return err
		})
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"deleted": total,
				"error":   err.Error(),
			}).Error("unverified account cleanup failed")
			return total, err
		}
		total += n
		if n < int64(r.batchSize) {
			break
		}
	}

	r.logger.WithFields(logrus.Fields{
		"deleted": total,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("unverified account cleanup finished")
	return total, nil
}

// Run adapts Sweep to a scheduler callback.
func (r *Reaper) Run() {
	if _, err := r.Sweep(context.Background()); errors.Is(err, ErrSweepInProgress) {
		r.logger.Warn("skipping cleanup; previous sweep still running")
	}
}
