// Package worker runs the two concurrency-bounded stages the per-
// realization state machine is split across: PREPARING (template
// instantiation, substitution, restart-block writing — CPU-heavy) and
// LOADING (restart/summary reads against the run directory and the store —
// I/O-heavy). Submitting the two stages through separate pools lets an
// operator throttle each independently instead of sharing one worker count
// across workloads with very different resource profiles.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/resflow/forward-runner/internal/orchestrator"
)

var tracer = otel.Tracer("github.com/resflow/forward-runner/internal/worker")

// Pool is a bounded-concurrency task group: at most `concurrency` submitted
// functions run at once. Wait reports the first error any task returned,
// same contract as errgroup.Group on its own; the semaphore is what adds
// the concurrency ceiling errgroup has no native concept of.
type Pool struct {
	name  string
	sem   *semaphore.Weighted
	group *errgroup.Group
	ctx   context.Context
}

// NewPool builds a Pool named name, allowing at most concurrency tasks to
// run at once. Every submitted task shares a context derived from ctx: the
// first task to return a non-nil error cancels it for every task still
// in flight, mirroring errgroup.WithContext's standard fail-fast behavior.
func NewPool(ctx context.Context, name string, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	return &Pool{
		name:  name,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		group: g,
		ctx:   gctx,
	}
}

// Submit schedules fn to run once a concurrency slot is free. fn receives
// the pool's group context, not the context Submit was called with.
func (p *Pool) Submit(fn func(ctx context.Context) error) {
	p.group.Go(func() error {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return err
		}
		defer p.sem.Release(1)
		return fn(p.ctx)
	})
}

// Wait blocks until every task submitted so far has returned, propagating
// the first non-nil error.
func (p *Pool) Wait() error { return p.group.Wait() }

// Runner wires the PREPARING and LOADING pools together and drives one
// realization's orchestrator through both stages.
type Runner struct {
	Preparing    *Pool
	Loading      *Pool
	PollInterval time.Duration
}

// NewRunner builds a Runner with independently sized PREPARING/LOADING
// pools, both derived from ctx.
func NewRunner(ctx context.Context, preparingConcurrency, loadingConcurrency int, pollInterval time.Duration) *Runner {
	return &Runner{
		Preparing:    NewPool(ctx, "preparing", preparingConcurrency),
		Loading:      NewPool(ctx, "loading", loadingConcurrency),
		PollInterval: pollInterval,
	}
}

// Submit drives one realization's orchestrator end to end. The initial
// PREPARING run happens inside the Preparing pool; once a step lands in
// RUNNING, the realization moves to the Loading pool to await the queue's
// terminal status via AwaitRun. A step that resolves immediately to
// DONE_SKIP never touches Loading at all.
//
// A RETRY? decision's re-entrant PREPARING re-run is a partial exception:
// AwaitRun resolves it synchronously (orchestrator.retryOrFail calls back
// into the same prepareAndSubmit Start used), so that CPU-bound work runs
// inside the Loading goroutine that discovered the failure, under the
// Loading pool's concurrency ceiling rather than the Preparing pool's. A
// realization that keeps retrying never occupies more than the one Loading
// slot it already held, so this does not starve Preparing; it only means
// Loading's ceiling, not Preparing's, bounds how much resubmission CPU work
// can run at once.
func (r *Runner) Submit(o *orchestrator.Orchestrator, params orchestrator.Params) {
	r.Preparing.Submit(func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "orchestrator.prepare", trace.WithAttributes(
			attribute.Int("iens", o.Iens),
			attribute.Int("step1", params.Step1),
			attribute.Int("step2", params.Step2),
		))
		err := o.Start(ctx, params)
		span.End()
		if err != nil {
			return fmt.Errorf("worker: iens=%d preparing: %w", o.Iens, err)
		}
		if o.State != orchestrator.Running {
			return nil
		}

		r.Loading.Submit(func(ctx context.Context) error {
			ctx, span := tracer.Start(ctx, "orchestrator.load", trace.WithAttributes(
				attribute.Int("iens", o.Iens),
			))
			defer span.End()
			if err := o.AwaitRun(ctx, r.PollInterval); err != nil {
				return fmt.Errorf("worker: iens=%d loading: %w", o.Iens, err)
			}
			return nil
		})
		return nil
	})
}

// Wait blocks until every submitted realization has finished both stages,
// returning the first error observed in either pool. Preparing is drained
// first: every Loading submission happens synchronously inside a Preparing
// task before that task returns, so by the time Preparing.Wait unblocks,
// every realization's Loading task (if any) has already been submitted.
func (r *Runner) Wait() error {
	pErr := r.Preparing.Wait()
	lErr := r.Loading.Wait()
	if pErr != nil {
		return pErr
	}
	return lErr
}
