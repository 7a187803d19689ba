package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// JobLock lets exactly one instance claim a scheduled run.
type JobLock struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewJobLock(rdb goredis.Cmdable, ttl time.Duration) *JobLock {
	return &JobLock{rdb: rdb, ttl: ttl}
}

// TryAcquire claims job for the run scheduled at slot. It returns false when
// another instance already claimed the same run.
func (l *JobLock) TryAcquire(ctx context.Context, job string, slot time.Time) (bool, error) {
	args := goredis.SetArgs{TTL: l.ttl, Mode: "NX"}
	_, err := l.rdb.SetArgs(ctx, jobLockKey(job, slot), "1", args).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	return true, nil
}

func jobLockKey(job string, slot time.Time) string {
	return fmt.Sprintf("job_lock:%s:%d", job, slot.Truncate(time.Minute).Unix())
}
