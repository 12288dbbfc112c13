// Package memqueue provides a process-local, in-memory implementation of
// queue.Queue, the counterpart to store/memstore for the queue collaborator.
// It backs forwardctl's default configuration, where no external scheduler
// is wired up yet and a single process both submits and observes status.
package memqueue

import (
	"context"
	"sync"
	"time"

	"github.com/resflow/forward-runner/internal/queue"
)

type entry struct {
	status      queue.Status
	runPath     string
	eclBase     string
	submittedAt *time.Time
	simStartAt  *time.Time
}

// Queue is safe for concurrent use across disjoint iens values, matching
// the concurrency contract queue.Queue documents.
type Queue struct {
	mu      sync.RWMutex
	entries map[int]*entry
}

var _ queue.Queue = (*Queue)(nil)

func New() *Queue {
	return &Queue{entries: make(map[int]*entry)}
}

func (q *Queue) get(iens int) *entry {
	e, ok := q.entries[iens]
	if !ok {
		e = &entry{status: queue.NotActive}
		q.entries[iens] = e
	}
	return e
}

func (q *Queue) InsertJob(ctx context.Context, iens int, runPath, eclBase string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	e := q.get(iens)
	e.status = queue.Submitted
	e.runPath = runPath
	e.eclBase = eclBase
	e.submittedAt = &now
	return nil
}

func (q *Queue) GetJobStatus(ctx context.Context, iens int) (queue.Status, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[iens]
	if !ok {
		return queue.NotActive, nil
	}
	return e.status, nil
}

func (q *Queue) setStatus(iens int, status queue.Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.get(iens).status = status
}

func (q *Queue) SetExternalLoad(ctx context.Context, iens int) error {
	q.setStatus(iens, queue.Loading)
	return nil
}

func (q *Queue) SetLoadOK(ctx context.Context, iens int) error {
	q.setStatus(iens, queue.AllOK)
	return nil
}

func (q *Queue) SetExternalFail(ctx context.Context, iens int) error {
	q.setStatus(iens, queue.RunFail)
	return nil
}

func (q *Queue) SetExternalRestart(ctx context.Context, iens int) error {
	q.setStatus(iens, queue.CanRestart)
	return nil
}

func (q *Queue) SetAllFail(ctx context.Context, iens int) error {
	q.setStatus(iens, queue.AllFail)
	return nil
}

func (q *Queue) KillJob(ctx context.Context, iens int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[iens]
	if !ok || (e.status != queue.Running && e.status != queue.Submitted) {
		return false, nil
	}
	e.status = queue.CanKill
	return true, nil
}

// SimStart reports the time ResolveAllSubmitted resolved the job, or
// not-found if it has not; Resolve records no start time.
func (q *Queue) SimStart(ctx context.Context, iens int) (time.Time, bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[iens]
	if !ok || e.simStartAt == nil {
		return time.Time{}, false, nil
	}
	return *e.simStartAt, true, nil
}

func (q *Queue) SubmitTime(ctx context.Context, iens int) (time.Time, bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[iens]
	if !ok || e.submittedAt == nil {
		return time.Time{}, false, nil
	}
	return *e.submittedAt, true, nil
}

// Resolve lets a standalone process act as its own external scheduler: it
// immediately marks a submitted iens RunOK (ok=true) or RunFail (ok=false),
// the transition AwaitRun polls for. forwardctl's default in-process
// "local" mode does not call it; its ticker calls ResolveAllSubmitted
// instead. A real LSF/SSH transport remains genuinely external per the
// queue package's documented scope cut.
func (q *Queue) Resolve(iens int, ok bool) {
	if ok {
		q.setStatus(iens, queue.RunOK)
	} else {
		q.setStatus(iens, queue.RunFail)
	}
}

// ResolveAllSubmitted resolves every entry still sitting in Submitted to
// RunOK, or to RunFail when its iens is in failIens. It is the local
// scheduler's one polling action: a realization moves from Submitted to a
// terminal run status exactly once, on whichever tick first observes it.
func (q *Queue) ResolveAllSubmitted(failIens map[int]bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for iens, e := range q.entries {
		if e.status != queue.Submitted {
			continue
		}
		now := time.Now()
		e.simStartAt = &now
		if failIens[iens] {
			e.status = queue.RunFail
		} else {
			e.status = queue.RunOK
		}
	}
}
