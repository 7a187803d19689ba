package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

const digestJob = "digest"

// JobLocker grants a scheduled run to a single instance per slot.
type JobLocker interface {
	TryAcquire(ctx context.Context, job string, slot time.Time) (bool, error)
}

type DigestSender interface {
	SendDigests(ctx context.Context) (DigestResult, error)
}

// DigestScheduler runs SendDigests on a cron schedule. When several instances
// share a lock only one of them sends per slot.
type DigestScheduler struct {
	cron    *cron.Cron
	sender  DigestSender
	lock    JobLocker
	clock   clockwork.Clock
	timeout time.Duration
	ctx     context.Context
}

// NewDigestScheduler parses schedule as a standard five-field cron expression. A nil
// lock runs every slot locally.
func NewDigestScheduler(schedule string, sender DigestSender, lock JobLocker, clock clockwork.Clock, timeout time.Duration) (*DigestScheduler, error) {
	d := &DigestScheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sender:  sender,
		lock:    lock,
		clock:   clock,
		timeout: timeout,
		ctx:     context.Background(),
	}
	if _, err := d.cron.AddFunc(schedule, func() { d.RunOnce(d.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", schedule, err)
	}
	return d, nil
}

// Start launches the cron goroutine. Runs derive their context from ctx.
func (d *DigestScheduler) Start(ctx context.Context) {
	d.ctx = ctx
	d.cron.Start()
	slog.Info("Digest scheduler started", "next_run", d.cron.Entries()[0].Next)
}

// Stop stops scheduling and waits for a running digest until ctx expires.
func (d *DigestScheduler) Stop(ctx context.Context) {
	done := d.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("Digest run still in progress at shutdown")
	}
}

// RunOnce sends the digests for the current slot if this instance wins the lock.
// Lock errors are logged and the run proceeds.
func (d *DigestScheduler) RunOnce(ctx context.Context) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if d.lock != nil {
		acquired, err := d.lock.TryAcquire(ctx, digestJob, d.clock.Now())
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Digest lock unavailable, running anyway", "error", err)
		case !acquired:
			slog.DebugContext(ctx, "Digest slot already taken by another instance")
			return
		}
	}

	if _, err := d.sender.SendDigests(ctx); err != nil {
		slog.ErrorContext(ctx, "Digest run failed", "error", err)
	}
}
