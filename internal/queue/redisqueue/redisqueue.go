// Package redisqueue implements queue.Queue on top of Redis, suited to the
// "local" transport the spec mentions in passing: fast, single-process
// friendly status tracking without the durability guarantees pgqueue
// offers across restarts.
package redisqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resflow/forward-runner/internal/queue"
)

const keyPrefix = "forward-runner:queue:"

// Queue is a Redis-backed queue.Queue. Each iens gets its own hash key so
// concurrent calls for disjoint realizations never contend on the same
// Redis key.
type Queue struct {
	client *redis.Client
	ttl    time.Duration
}

var _ queue.Queue = (*Queue)(nil)

// New wraps an already-connected redis.Client. ttl bounds how long a
// realization's status entry survives after its last status write before
// Redis expires it, whether or not the job has completed; pass 0 to keep
// entries indefinitely.
func New(client *redis.Client, ttl time.Duration) *Queue {
	return &Queue{client: client, ttl: ttl}
}

func key(iens int) string {
	return fmt.Sprintf("%s%d", keyPrefix, iens)
}

func (q *Queue) touch(ctx context.Context, iens int) {
	if q.ttl > 0 {
		q.client.Expire(ctx, key(iens), q.ttl)
	}
}

func (q *Queue) setStatus(ctx context.Context, iens int, status queue.Status, extra map[string]interface{}) error {
	fields := map[string]interface{}{"status": int(status)}
	for k, v := range extra {
		fields[k] = v
	}
	if err := q.client.HSet(ctx, key(iens), fields).Err(); err != nil {
		return err
	}
	q.touch(ctx, iens)
	return nil
}

func (q *Queue) InsertJob(ctx context.Context, iens int, runPath, eclBase string) error {
	return q.setStatus(ctx, iens, queue.Submitted, map[string]interface{}{
		"run_path":     runPath,
		"ecl_base":     eclBase,
		"submitted_at": time.Now().Unix(),
	})
}

func (q *Queue) GetJobStatus(ctx context.Context, iens int) (queue.Status, error) {
	v, err := q.client.HGet(ctx, key(iens), "status").Result()
	if err == redis.Nil {
		return queue.NotActive, nil
	}
	if err != nil {
		return queue.NotActive, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return queue.NotActive, err
	}
	return queue.Status(n), nil
}

func (q *Queue) SetExternalLoad(ctx context.Context, iens int) error {
	return q.setStatus(ctx, iens, queue.Loading, nil)
}

func (q *Queue) SetLoadOK(ctx context.Context, iens int) error {
	return q.setStatus(ctx, iens, queue.AllOK, nil)
}

func (q *Queue) SetExternalFail(ctx context.Context, iens int) error {
	return q.setStatus(ctx, iens, queue.RunFail, nil)
}

func (q *Queue) SetExternalRestart(ctx context.Context, iens int) error {
	return q.setStatus(ctx, iens, queue.CanRestart, nil)
}

func (q *Queue) SetAllFail(ctx context.Context, iens int) error {
	return q.setStatus(ctx, iens, queue.AllFail, nil)
}

func (q *Queue) KillJob(ctx context.Context, iens int) (bool, error) {
	status, err := q.GetJobStatus(ctx, iens)
	if err != nil {
		return false, err
	}
	if status != queue.Running && status != queue.Submitted {
		return false, nil
	}
	if err := q.setStatus(ctx, iens, queue.CanKill, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (q *Queue) SimStart(ctx context.Context, iens int) (time.Time, bool, error) {
	return q.readUnixField(ctx, iens, "sim_start_at")
}

func (q *Queue) SubmitTime(ctx context.Context, iens int) (time.Time, bool, error) {
	return q.readUnixField(ctx, iens, "submitted_at")
}

func (q *Queue) readUnixField(ctx context.Context, iens int, field string) (time.Time, bool, error) {
	v, err := q.client.HGet(ctx, key(iens), field).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(n, 0).UTC(), true, nil
}
