package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/nodetest"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/orchestrator"
	"github.com/resflow/forward-runner/internal/queue"
	"github.com/resflow/forward-runner/internal/restart"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/sharedctx"
	"github.com/resflow/forward-runner/internal/store/memstore"
	"github.com/resflow/forward-runner/internal/subst"
	"github.com/resflow/forward-runner/internal/summary"
)

type fakeQueue struct {
	insertCalls int32
	statusFunc  func(iens int) queue.Status
}

var _ queue.Queue = (*fakeQueue)(nil)

func (q *fakeQueue) InsertJob(ctx context.Context, iens int, runPath, eclBase string) error {
	atomic.AddInt32(&q.insertCalls, 1)
	return nil
}
func (q *fakeQueue) GetJobStatus(ctx context.Context, iens int) (queue.Status, error) {
	if q.statusFunc != nil {
		return q.statusFunc(iens), nil
	}
	return queue.RunOK, nil
}
func (q *fakeQueue) SetExternalLoad(ctx context.Context, iens int) error    { return nil }
func (q *fakeQueue) SetLoadOK(ctx context.Context, iens int) error         { return nil }
func (q *fakeQueue) SetExternalFail(ctx context.Context, iens int) error   { return nil }
func (q *fakeQueue) SetExternalRestart(ctx context.Context, iens int) error { return nil }
func (q *fakeQueue) SetAllFail(ctx context.Context, iens int) error        { return nil }
func (q *fakeQueue) KillJob(ctx context.Context, iens int) (bool, error)   { return false, nil }
func (q *fakeQueue) SimStart(ctx context.Context, iens int) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (q *fakeQueue) SubmitTime(ctx context.Context, iens int) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type fakeTemplates struct{}

func (fakeTemplates) Instantiate(spec sharedctx.TemplateSpec, tbl *subst.Table) error { return nil }

type fakeCatalog struct{ eclBase string }

func (c fakeCatalog) TemplatesFor(rundesc.RunMode) []sharedctx.TemplateSpec { return nil }
func (c fakeCatalog) EclBase(int) string                                   { return c.eclBase }

type fakeEnsembleConfig struct{}

func (fakeEnsembleConfig) HasKey(string) bool                   { return false }
func (fakeEnsembleConfig) GetConfig(string) (node.Config, bool) { return nil, false }
func (fakeEnsembleConfig) RegisterStatic(string)                {}
func (fakeEnsembleConfig) NewNode(string) (node.Node, error)    { return nil, nil }

var _ restart.EnsembleConfig = fakeEnsembleConfig{}

type fakeRestartOpener struct{}

func (fakeRestartOpener) OpenBlock(runPath string, reportStep int) (restart.Block, error) {
	return restart.Block{}, orchestrator.ErrRestartNotFound
}

type fakeSummaryOpener struct{ src node.SummarySource }

func (o fakeSummaryOpener) Open(summary.Located) (node.SummarySource, error) { return o.src, nil }

type fakeRng struct{}

func (fakeRng) RandInt() int64     { return 7 }
func (fakeRng) RandFloat() float64 { return 0.25 }

// newOrchestrator builds a fresh orchestrator.Orchestrator for iens against
// its own isolated run-path base, the same shape as the orchestrator
// package's own test harness.
func newOrchestrator(t *testing.T, iens int, q *fakeQueue) *orchestrator.Orchestrator {
	t.Helper()

	reg := noderegistry.New()
	resultNode := nodetest.New("FOPR", node.DynamicResult, node.Summary)
	reg.Add(resultNode.KeyValue, resultNode, nil)

	tbl := subst.NewTable("<", ">")
	summarySrc := nodetest.NewSummary()
	summarySrc.Set("FOPR", 1, 50.0)
	summarySrc.SetTime(1, 5)

	shared := &sharedctx.Context{
		Store:      memstore.New(),
		Queue:      q,
		Templates:  fakeTemplates{},
		JobCatalog: fakeCatalog{eclBase: "CASE"},
		Log:        nil,
	}

	deps := orchestrator.Deps{
		Shared:         shared,
		Registry:       reg,
		EnsembleConfig: fakeEnsembleConfig{},
		SubstTable:     tbl,
		Rng:            fakeRng{},
		RestartOpener:  fakeRestartOpener{},
		SummaryOpener:  fakeSummaryOpener{src: summarySrc},
		PathFmt:        filepath.Join(t.TempDir(), "real-%d-step-%d"),
		KeepRunpath:    rundesc.DefaultKeep,
		EquilInitFile:  "equil.inc",
	}

	return orchestrator.New(iens, deps)
}

func TestPoolRespectsConcurrencyLimit(t *testing.T) {
	ctx := context.Background()
	pool := NewPool(ctx, "test", 2)

	var inFlight, maxSeen int32
	for i := 0; i < 8; i++ {
		pool.Submit(func(ctx context.Context) error {
			n := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return nil
		})
	}
	require.NoError(t, pool.Wait())
	assert.LessOrEqual(t, int(maxSeen), 2)
}

func TestPoolPropagatesFirstError(t *testing.T) {
	ctx := context.Background()
	pool := NewPool(ctx, "test", 4)
	boom := errors.New("boom")

	pool.Submit(func(ctx context.Context) error { return boom })
	pool.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := pool.Wait()
	require.Error(t, err)
}

func TestRunnerDrivesSkippedRealizationWithoutLoadingPool(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{}
	o := newOrchestrator(t, 1, q)

	r := NewRunner(ctx, 2, 2, time.Millisecond)
	r.Submit(o, orchestrator.Params{
		RunMode: rundesc.Assimilation, Active: false, MaxInternalSubmit: 1,
		Step1: 0, Step2: 1, LoadStart: 1,
	})

	require.NoError(t, r.Wait())
	assert.Equal(t, orchestrator.DoneSkip, o.State)
	assert.Equal(t, int32(0), q.insertCalls)
}

func TestRunnerDrivesActiveRealizationToDoneOK(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{statusFunc: func(int) queue.Status { return queue.RunOK }}
	o := newOrchestrator(t, 2, q)

	r := NewRunner(ctx, 2, 2, time.Millisecond)
	r.Submit(o, orchestrator.Params{
		RunMode: rundesc.Assimilation, Active: true, MaxInternalSubmit: 1,
		Step1: 0, Step2: 1, LoadStart: 1, InternalizeState: true,
	})

	require.NoError(t, r.Wait())
	assert.Equal(t, orchestrator.DoneOK, o.State)
	assert.True(t, o.Desc.RunOK)
}

func TestRunnerPropagatesRunFailure(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{statusFunc: func(int) queue.Status { return queue.RunFail }}
	o := newOrchestrator(t, 3, q)

	r := NewRunner(ctx, 2, 2, time.Millisecond)
	r.Submit(o, orchestrator.Params{
		RunMode: rundesc.Assimilation, Active: true, MaxInternalSubmit: 0,
		Step1: 0, Step2: 1, LoadStart: 1, InternalizeState: true,
	})

	require.NoError(t, r.Wait())
	assert.Equal(t, orchestrator.DoneFail, o.State)
	assert.False(t, o.Desc.RunOK)
}
