package memqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resflow/forward-runner/internal/queue"
)

func TestInsertJobMovesToSubmitted(t *testing.T) {
	ctx := context.Background()
	q := New()

	status, err := q.GetJobStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, queue.NotActive, status)

	require.NoError(t, q.InsertJob(ctx, 1, "/run/1", "CASE1"))
	status, err = q.GetJobStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, queue.Submitted, status)

	submitted, ok, err := q.SubmitTime(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, submitted.IsZero())
}

func TestResolveSetsTerminalStatus(t *testing.T) {
	ctx := context.Background()
	q := New()
	require.NoError(t, q.InsertJob(ctx, 1, "/run/1", "CASE1"))

	q.Resolve(1, true)
	status, err := q.GetJobStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, queue.RunOK, status)

	q.Resolve(2, false)
	status, err = q.GetJobStatus(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, queue.RunFail, status)
}

func TestResolveAllSubmittedOnlyTouchesSubmittedEntries(t *testing.T) {
	ctx := context.Background()
	q := New()
	require.NoError(t, q.InsertJob(ctx, 1, "/run/1", "CASE1"))
	require.NoError(t, q.InsertJob(ctx, 2, "/run/2", "CASE2"))
	q.Resolve(2, true) // 2 is already terminal before the sweep

	q.ResolveAllSubmitted(map[int]bool{1: true})

	status1, err := q.GetJobStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, queue.RunFail, status1)

	status2, err := q.GetJobStatus(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, queue.RunOK, status2, "already-resolved entry must not be revisited")
}

func TestKillJobOnlyAcceptsActiveJobs(t *testing.T) {
	ctx := context.Background()
	q := New()

	killed, err := q.KillJob(ctx, 1)
	require.NoError(t, err)
	assert.False(t, killed)

	require.NoError(t, q.InsertJob(ctx, 1, "/run/1", "CASE1"))
	killed, err = q.KillJob(ctx, 1)
	require.NoError(t, err)
	assert.True(t, killed)

	status, err := q.GetJobStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, queue.CanKill, status)
}
