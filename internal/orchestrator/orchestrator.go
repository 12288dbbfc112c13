// Package orchestrator implements the per-realization forward-model state
// machine (§4.7): it initializes the run directory, submits to the queue,
// observes queue status, internalizes on success, retries on load failure,
// reports terminal failure, and cleans up.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/resflow/forward-runner/internal/logline"
	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/queue"
	"github.com/resflow/forward-runner/internal/restart"
	"github.com/resflow/forward-runner/internal/retrypolicy"
	"github.com/resflow/forward-runner/internal/rng"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/sharedctx"
	"github.com/resflow/forward-runner/internal/subst"
	"github.com/resflow/forward-runner/internal/summary"
)

// Kind enumerates this package's error kinds. Only STATE_NOT_READY is
// returned as an error; an exhausted retry budget ends the step in
// DONE_FAIL with a nil error, so RETRY_BUDGET_EXHAUSTED is never returned.
// LOAD_FAILED and RUN_FAILED never surface as Go errors here — they are
// caught internally and translated into retry decisions, per §4.9.
type Kind string

const (
	KindStateNotReady        Kind = "STATE_NOT_READY"
	KindRetryBudgetExhausted Kind = "RETRY_BUDGET_EXHAUSTED"
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ErrRestartNotFound is returned by a RestartOpener when no restart file
// exists at the requested report step. It is not a load failure — most
// report steps in a run never produce a restart checkpoint at all.
var ErrRestartNotFound = errors.New("orchestrator: no restart file at this report step")

// State is the orchestrator's current position in the §4.7 state machine.
type State int

const (
	Idle State = iota
	Ready
	Preparing
	Running
	Loading
	RetryPending
	DoneOK
	DoneSkip
	DoneFail
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Ready:
		return "READY"
	case Preparing:
		return "PREPARING"
	case Running:
		return "RUNNING"
	case Loading:
		return "LOADING"
	case RetryPending:
		return "RETRY?"
	case DoneOK:
		return "DONE_OK"
	case DoneSkip:
		return "DONE_SKIP"
	case DoneFail:
		return "DONE_FAIL"
	default:
		return "UNKNOWN"
	}
}

// RestartOpener opens the restart block at a given report step for this
// realization's run directory. Parsing the underlying binary format is out
// of scope; this is the consumption interface the LOADING stage depends on.
// Implementations return ErrRestartNotFound when no checkpoint exists at
// that step, and restart.ErrUnifiedUnsupported() when only a unified
// restart file is present, preserving the source limitation carried
// forward by this spec.
type RestartOpener interface {
	OpenBlock(runPath string, reportStep int) (restart.Block, error)
}

// RestartSinkFactory opens the write-side restart stream for a re-run at
// step1 > 0. It is never consulted at step1 == 0, where the restart-block
// writer is skipped entirely.
type RestartSinkFactory interface {
	NewSink(runPath string, step1 int) (node.RestartSink, error)
}

// Params describes one step's execution request, corresponding to the
// arguments of the original set() operation in §4.2.
type Params struct {
	RunMode            rundesc.RunMode
	Active             bool
	MaxInternalSubmit  int
	InitStepParameters int
	InitStateParameter rundesc.State
	InitStateDynamic   rundesc.State
	LoadStart          int
	Step1              int
	Step2              int

	IncludeStatic    func(name string) bool
	InternalizeState bool
}

// Deps bundles every collaborator the orchestrator needs but does not own,
// beyond the shared-context aggregate itself.
type Deps struct {
	Shared         *sharedctx.Context
	Registry       *noderegistry.Registry
	EnsembleConfig restart.EnsembleConfig
	SubstTable     *subst.Table
	Rng            rng.Rng

	RestartOpener RestartOpener
	RestartSink   RestartSinkFactory
	SummaryOpener summary.Opener

	PathFmt         string
	PreClearRunpath bool
	KeepRunpath     rundesc.KeepRunpath
	EquilInitFile   string
	CaseName        string
}

// Orchestrator is created once per (realization, ensemble-run); its run
// descriptor is re-initialized before each step via Start.
type Orchestrator struct {
	Iens  int
	State State
	Desc  rundesc.Descriptor

	deps Deps

	includeStatic    func(name string) bool
	internalizeState bool

	simTimes  map[int]time.Time
	attemptID uuid.UUID
}

// New constructs an orchestrator for one realization. It starts in IDLE.
func New(iens int, deps Deps) *Orchestrator {
	return &Orchestrator{
		Iens:     iens,
		State:    Idle,
		deps:     deps,
		simTimes: map[int]time.Time{},
	}
}

// InitRun transitions IDLE -> READY. It only sets State; the run
// descriptor is left as it is, and Start's call to Descriptor.Set is what
// makes the descriptor ready for the next step.
func (o *Orchestrator) InitRun() {
	o.State = Ready
}

func (o *Orchestrator) eclBase() string {
	return o.deps.Shared.JobCatalog.EclBase(o.Iens)
}

func (o *Orchestrator) log(level logline.Level, format string, args ...any) {
	logline.Logf(o.deps.Shared.Log, level, o.Iens, o.Desc.Step1, o.Desc.Step2, format, args...)
}

// SimTime returns the simulated wall-clock time recorded for reportStep, or
// (zero, false) if that step has not been loaded yet. Go has no implicit
// sentinel time.Time the way the source's iget_sim_time returns -1; the
// boolean is the sentinel.
func (o *Orchestrator) SimTime(reportStep int) (time.Time, bool) {
	t, ok := o.simTimes[reportStep]
	return t, ok
}

// KillSimulation is a thin pass-through to the queue's kill_job, per §5.
func (o *Orchestrator) KillSimulation(ctx context.Context) (bool, error) {
	return o.deps.Shared.Queue.KillJob(ctx, o.Iens)
}

// Start implements the READY row of §4.7: it fills the run descriptor and,
// if active, proceeds through PREPARING and submits to the queue; if
// inactive it terminates immediately as DONE_SKIP.
func (o *Orchestrator) Start(ctx context.Context, p Params) error {
	includeStatic := p.IncludeStatic
	if includeStatic == nil {
		includeStatic = func(string) bool { return true }
	}
	o.includeStatic = includeStatic
	o.internalizeState = p.InternalizeState

	if err := o.Desc.Set(
		p.RunMode, p.Active, p.MaxInternalSubmit,
		p.InitStepParameters, p.InitStateParameter, p.InitStateDynamic,
		p.LoadStart, p.Step1, p.Step2, o.Iens, o.deps.PathFmt, o.deps.SubstTable,
	); err != nil {
		return err
	}
	o.State = Ready

	if !o.Desc.Active {
		o.State = DoneSkip
		return nil
	}

	return o.prepareAndSubmit(ctx)
}

// requireReady is the programmer-error guard §3 calls for: every
// step-execution operation asserts ready first.
func (o *Orchestrator) requireReady() error {
	if !o.Desc.Ready() {
		return &Error{Kind: KindStateNotReady, Msg: fmt.Sprintf("iens=%d", o.Iens)}
	}
	return nil
}

// prepareAndSubmit implements the PREPARING row: directory setup, reading
// prior parameter/state values, substitution, template instantiation,
// writing every simulator input file, then submitting to the queue.
func (o *Orchestrator) prepareAndSubmit(ctx context.Context) error {
	if err := o.requireReady(); err != nil {
		return err
	}
	o.State = Preparing
	o.attemptID = uuid.New()
	d := &o.Desc

	if o.deps.PreClearRunpath {
		if err := os.RemoveAll(d.RunPath); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(d.RunPath, 0o755); err != nil {
		return err
	}

	if err := o.loadInitialState(ctx); err != nil {
		return err
	}

	o.setDynamicSubstitutions()

	for _, spec := range o.deps.Shared.JobCatalog.TemplatesFor(d.RunMode) {
		if err := o.deps.Shared.Templates.Instantiate(spec, o.deps.SubstTable); err != nil {
			return fmt.Errorf("orchestrator: instantiating %s: %w", spec.SrcPath, err)
		}
	}

	if err := o.writeSimulatorInputs(ctx); err != nil {
		return err
	}

	o.log(logline.LevelProgress, "submitting attempt %s (submit %d/%d)", o.attemptID, d.NumInternalSubmit, d.MaxInternalSubmit)
	if err := o.deps.Shared.Queue.InsertJob(ctx, o.Iens, d.RunPath, o.eclBase()); err != nil {
		return err
	}

	o.State = Running
	return nil
}

// loadInitialState fills every PARAMETER node from (init_step_parameters,
// init_state_parameter) and every DYNAMIC_STATE node from (step1,
// init_state_dynamic) — drawn fresh via Initialize when step1 == 0, read
// back from the store otherwise.
func (o *Orchestrator) loadInitialState(ctx context.Context) error {
	d := &o.Desc
	reg := o.deps.Registry
	store := o.deps.Shared.Store
	var firstErr error

	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	reg.Iter(func(key string, n node.Node) {
		if n.VarClass() != node.Parameter {
			return
		}
		if d.Step1 == 0 {
			note(n.Initialize(o.Iens))
			return
		}
		data, err := store.GetNode(ctx, key, d.InitStepParameters, o.Iens, d.InitStateParameter)
		if err != nil {
			note(err)
			return
		}
		note(n.Unmarshal(data))
	})
	if firstErr != nil {
		return firstErr
	}

	reg.Iter(func(key string, n node.Node) {
		if n.VarClass() != node.DynamicState {
			return
		}
		if d.Step1 == 0 {
			note(n.Initialize(o.Iens))
			return
		}
		data, err := store.GetNode(ctx, key, d.Step1, o.Iens, d.InitStateDynamic)
		if err != nil {
			note(err)
			return
		}
		note(n.Unmarshal(data))
	})
	return firstErr
}

// setDynamicSubstitutions (re-)sets every built-in substitution key listed
// in §6, redrawing RANDINT/RANDFLOAT fresh each time PREPARING runs so a
// retry's re-expanded templates differ from the prior attempt's.
func (o *Orchestrator) setDynamicSubstitutions() {
	d := &o.Desc
	tbl := o.deps.SubstTable
	eclBase := o.eclBase()

	tbl.Set("RUNPATH", d.RunPath, "resolved run directory for this step")
	tbl.Set("IENS", strconv.Itoa(o.Iens), "realization index")
	tbl.Set("IENS4", fmt.Sprintf("%04d", o.Iens), "realization index, 4-digit zero padded")
	tbl.Set("ECLBASE", eclBase, "simulator base name")
	tbl.Set("ECL_BASE", eclBase, "simulator base name (alias)")
	tbl.Set("SMSPEC", eclBase+".SMSPEC", "summary header file name")
	tbl.Set("TSTEP1", strconv.Itoa(d.Step1), "first report step of this run")
	tbl.Set("TSTEP2", strconv.Itoa(d.Step2), "last report step of this run")
	tbl.Set("TSTEP1_04", fmt.Sprintf("%04d", d.Step1), "first report step, 4-digit zero padded")
	tbl.Set("TSTEP2_04", fmt.Sprintf("%04d", d.Step2), "last report step, 4-digit zero padded")
	tbl.Set("RESTART_FILE1", fmt.Sprintf("%s.X%04d", eclBase, d.Step1), "restart file name at step1")
	tbl.Set("RESTART_FILE2", fmt.Sprintf("%s.X%04d", eclBase, d.Step2), "restart file name at step2")
	tbl.Set("RANDINT", strconv.FormatInt(o.deps.Rng.RandInt(), 10), "fresh random integer")
	tbl.Set("RANDFLOAT", strconv.FormatFloat(o.deps.Rng.RandFloat(), 'g', -1, 64), "fresh random float in [0,1)")

	if d.Step1 == 0 {
		tbl.Set("INIT", fmt.Sprintf("INCLUDE '%s' /", o.deps.EquilInitFile), "equilibration include statement")
	} else {
		tbl.Set("INIT", fmt.Sprintf("RESTART '%s' %d /", eclBase, d.Step1), "restart include statement")
	}

	caseName := o.deps.CaseName
	if caseName == "" {
		caseName = eclBase
	}
	tbl.Set("CASE", caseName, "case name, falls back to ECLBASE when unset")
}

// writeSimulatorInputs is the PREPARING row's "write all simulator inputs":
// the restart-block writer (§4.6), which also performs the generic write
// pass over every node not re-emitted by it.
func (o *Orchestrator) writeSimulatorInputs(ctx context.Context) error {
	d := &o.Desc

	var sink node.RestartSink
	if d.Step1 > 0 {
		s, err := o.deps.RestartSink.NewSink(d.RunPath, d.Step1)
		if err != nil {
			return err
		}
		sink = s
	}

	_, err := restart.WriteBlock(
		ctx, o.deps.Shared.Store, o.deps.EnsembleConfig, o.deps.Registry, sink,
		d.RunPath, d.Step1, o.Iens, d.InitStateDynamic, nil,
	)
	return err
}

// AwaitRun implements the RUNNING state: it polls the queue until a
// terminal status is observed, then dispatches into LOADING or RETRY?.
// Polling is owned by the caller per §5 ("the driver loop is owned by the
// caller") — this method is the convenience form for a caller happy to
// block its own goroutine on one realization's queue wait.
func (o *Orchestrator) AwaitRun(ctx context.Context, pollInterval time.Duration) error {
	for {
		status, err := o.deps.Shared.Queue.GetJobStatus(ctx, o.Iens)
		if err != nil {
			return err
		}
		switch status {
		case queue.RunOK:
			return o.handleRunOK(ctx)
		case queue.RunFail:
			return o.handleRunFail(ctx)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// OnRunOK advances RUNNING -> LOADING directly, for callers that observe
// queue completion through their own mechanism rather than AwaitRun's
// polling loop (e.g. a worker pool with a shared poller).
func (o *Orchestrator) OnRunOK(ctx context.Context) error { return o.handleRunOK(ctx) }

// OnRunFail advances RUNNING -> RETRY?, mirroring OnRunOK.
func (o *Orchestrator) OnRunFail(ctx context.Context) error { return o.handleRunFail(ctx) }

func (o *Orchestrator) handleRunOK(ctx context.Context) error {
	o.State = Loading
	if err := o.deps.Shared.Queue.SetExternalLoad(ctx, o.Iens); err != nil {
		return err
	}

	loadOK, err := o.runLoaders(ctx)
	if err != nil {
		return err
	}

	if loadOK {
		return o.finishOK(ctx)
	}

	if err := o.deps.Shared.Queue.SetExternalFail(ctx, o.Iens); err != nil {
		return err
	}
	return o.retryOrFail(ctx)
}

func (o *Orchestrator) handleRunFail(ctx context.Context) error {
	o.State = RetryPending
	return o.retryOrFail(ctx)
}

// runLoaders implements the LOADING row's "run §4.4 + §4.5": walk every
// restart checkpoint produced in [load_start, step2] and the summary
// series, persisting simulated times at the end.
func (o *Orchestrator) runLoaders(ctx context.Context) (bool, error) {
	d := &o.Desc
	loadOK := true

	for r := d.LoadStart; r <= d.Step2; r++ {
		block, err := o.deps.RestartOpener.OpenBlock(d.RunPath, r)
		if errors.Is(err, ErrRestartNotFound) {
			continue
		}
		if rerr, ok := err.(*restart.Error); ok && rerr.Kind == restart.KindUnsupportedUnified {
			return false, err
		}
		if err != nil {
			loadOK = false
			o.log(logline.LevelNodeDetail, "opening restart block at step %d: %v", r, err)
			continue
		}

		res, err := restart.LoadBlock(
			ctx, o.deps.Shared.Store, o.deps.Shared.Log, o.deps.EnsembleConfig, o.deps.Registry,
			block, d.RunPath, r, o.Iens, d.Step1, d.Step2, o.includeStatic, o.internalizeState,
		)
		if err != nil {
			return false, err
		}
		if !res.LoadOK {
			loadOK = false
		}
	}

	located := summary.Locate(
		summary.Locator{RunPath: d.RunPath, EclBase: o.eclBase()}, d.RunMode, d.Step2,
	)
	if located.Found() {
		summarySrc, err := o.deps.SummaryOpener.Open(located)
		if err != nil {
			return false, err
		}
		res, err := summary.LoadSeries(
			ctx, o.deps.Shared.Store, o.deps.Shared.Log, o.deps.Registry, summarySrc,
			d.RunPath, o.Iens, d.LoadStart, d.Step1, d.Step2,
		)
		if err != nil {
			return false, err
		}
		if !res.LoadOK {
			loadOK = false
		}
		for step, t := range res.SimTimes {
			o.simTimes[step] = t
		}
	}

	if err := o.deps.Shared.Store.PutSimTimes(ctx, o.Iens, o.simTimes); err != nil {
		return false, err
	}

	return loadOK, nil
}

// finishOK implements DONE_OK: sets run_ok, tells the queue LOAD_OK,
// removes the runpath per policy, and finalizes the descriptor.
func (o *Orchestrator) finishOK(ctx context.Context) error {
	d := &o.Desc
	if err := o.deps.Shared.Queue.SetLoadOK(ctx, o.Iens); err != nil {
		return err
	}

	d.RunOK = true
	runPath := d.RunPath
	if o.deps.KeepRunpath.ShouldDelete(d.RunMode) {
		if err := os.RemoveAll(runPath); err != nil {
			return err
		}
	}
	d.Complete()
	o.State = DoneOK
	o.log(logline.LevelProgress, "done: run_ok=true")
	return nil
}

// retryOrFail implements RETRY?: resample and resubmit if budget allows,
// otherwise terminate as DONE_FAIL.
func (o *Orchestrator) retryOrFail(ctx context.Context) error {
	d := &o.Desc

	if retrypolicy.CanRetry(d.NumInternalSubmit, d.MaxInternalSubmit) {
		if err := retrypolicy.Resample(o.deps.Registry, o.Iens); err != nil {
			return err
		}
		d.NumInternalSubmit++
		o.log(logline.LevelRetryFail, "retrying (submit %d/%d)", d.NumInternalSubmit, d.MaxInternalSubmit)
		if err := o.deps.Shared.Queue.SetExternalRestart(ctx, o.Iens); err != nil {
			return err
		}
		return o.prepareAndSubmit(ctx)
	}

	d.RunOK = false
	o.log(logline.LevelRetryFail, "retry budget exhausted (%d/%d)", d.NumInternalSubmit, d.MaxInternalSubmit)
	if err := o.deps.Shared.Queue.SetAllFail(ctx, o.Iens); err != nil {
		return err
	}
	d.Complete()
	o.State = DoneFail
	return nil
}
