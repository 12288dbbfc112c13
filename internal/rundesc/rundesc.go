// Package rundesc implements the per-step mutable run descriptor: which
// step range to run, which step to seed parameters from, whether state is
// forecast or analyzed, the resolved run directory, and completion flags.
package rundesc

import (
	"fmt"

	"github.com/resflow/forward-runner/internal/subst"
)

// RunMode selects the simulation mode for a step, which in turn affects
// runpath-retention policy and summary-reader gap handling.
type RunMode int

const (
	Assimilation RunMode = iota
	Prediction
	Experiment
)

func (m RunMode) String() string {
	switch m {
	case Assimilation:
		return "ASSIMILATION"
	case Prediction:
		return "PREDICTION"
	case Experiment:
		return "EXPERIMENT"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}

// State distinguishes a persisted node's post-update (analyzed) value from
// its pre-update (forecast) value. Both is query-only and never used to tag
// a write.
type State int

const (
	Forecast State = iota
	Analyzed
	Both
)

func (s State) String() string {
	switch s {
	case Forecast:
		return "FORECAST"
	case Analyzed:
		return "ANALYZED"
	case Both:
		return "BOTH"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// KeepRunpath is the three-way policy governing whether a successfully
// completed step's run directory is removed from disk. DefaultKeep removes
// the directory only under assimilation mode (the common, high-volume
// case); ExplicitKeep and ExplicitDelete override that default either way
// regardless of run mode.
type KeepRunpath int

const (
	DefaultKeep KeepRunpath = iota
	ExplicitKeep
	ExplicitDelete
)

// ShouldDelete reports whether, for a step that completed with run_ok, the
// runpath should be removed given this policy and the step's run mode.
func (k KeepRunpath) ShouldDelete(mode RunMode) bool {
	switch k {
	case ExplicitDelete:
		return true
	case ExplicitKeep:
		return false
	default: // DefaultKeep
		return mode == Assimilation
	}
}

// Descriptor is the per-step mutable record the orchestrator owns
// exclusively. It is re-initialized before each step via Set or
// ResetForLoad; ready must be true before any step-execution operation, and
// checking that is the caller's responsibility (a false ready is a
// programmer error, not a runtime error).
type Descriptor struct {
	Active bool
	ready  bool

	Step1 int
	Step2 int

	InitStepParameters int
	InitStateParameter State
	InitStateDynamic   State
	LoadStart          int

	RunMode RunMode
	RunPath string

	MaxInternalSubmit int
	NumInternalSubmit int

	RunOK bool

	Iens int
}

// Ready reports whether Set (or ResetForLoad) has prepared this descriptor
// for the current step.
func (d *Descriptor) Ready() bool { return d.ready }

func resolveRunPath(pathFmt string, iens, step1 int, tbl *subst.Table) (string, error) {
	raw := fmt.Sprintf(pathFmt, iens, step1)
	if tbl == nil {
		return raw, nil
	}
	return tbl.ExpandString(raw)
}

// Set transitions the descriptor into a fully-populated, ready state for a
// fresh step execution. Any prior run_path is discarded; callers that need
// to inspect a failed step's run_path must do so before calling Set again.
func (d *Descriptor) Set(
	runMode RunMode,
	active bool,
	maxSubmit int,
	initStepParameters int,
	initStateParameter State,
	initStateDynamic State,
	loadStart, step1, step2, iens int,
	pathFmt string,
	tbl *subst.Table,
) error {
	if step1 > step2 {
		return fmt.Errorf("rundesc: step1 (%d) > step2 (%d)", step1, step2)
	}
	if loadStart > step2 {
		return fmt.Errorf("rundesc: load_start (%d) > step2 (%d)", loadStart, step2)
	}
	if initStepParameters != step1 && step1 != 0 {
		return fmt.Errorf("rundesc: init_step_parameters (%d) != step1 (%d) requires step1 == 0", initStepParameters, step1)
	}

	runPath, err := resolveRunPath(pathFmt, iens, step1, tbl)
	if err != nil {
		return fmt.Errorf("rundesc: resolving run_path: %w", err)
	}

	d.RunMode = runMode
	d.Active = active
	d.MaxInternalSubmit = maxSubmit
	d.NumInternalSubmit = 0
	d.InitStepParameters = initStepParameters
	d.InitStateParameter = initStateParameter
	d.InitStateDynamic = initStateDynamic
	d.LoadStart = loadStart
	d.Step1 = step1
	d.Step2 = step2
	d.Iens = iens
	d.RunPath = runPath
	d.RunOK = false
	d.ready = true
	return nil
}

// ResetForLoad prepares a descriptor for a load-only pass (no simulation
// run involved), e.g. internalizing outputs that already exist on disk
// from a prior submission. It shares Set's run_path resolution and
// invariant checks but leaves run-mode/active/retry-budget fields
// untouched from whatever the descriptor already carries.
func (d *Descriptor) ResetForLoad(loadStart, step1, step2, iens int, pathFmt string, tbl *subst.Table) error {
	if step1 > step2 {
		return fmt.Errorf("rundesc: step1 (%d) > step2 (%d)", step1, step2)
	}
	if loadStart > step2 {
		return fmt.Errorf("rundesc: load_start (%d) > step2 (%d)", loadStart, step2)
	}
	runPath, err := resolveRunPath(pathFmt, iens, step1, tbl)
	if err != nil {
		return fmt.Errorf("rundesc: resolving run_path: %w", err)
	}
	d.LoadStart = loadStart
	d.Step1 = step1
	d.Step2 = step2
	d.Iens = iens
	d.RunPath = runPath
	d.ready = true
	return nil
}

// Complete finalizes the descriptor after a step reaches a terminal state.
// run_path is released (cleared) iff run_ok; a failed step keeps run_path
// populated so the caller can still decide whether to remove it from disk
// for debugging, per policy.
func (d *Descriptor) Complete() {
	d.ready = false
	if d.RunOK {
		d.RunPath = ""
	}
}

// Summarize renders a one-line, human-readable description of the
// descriptor's current state for progress logs. It carries no behavior.
func (d *Descriptor) Summarize() string {
	return fmt.Sprintf(
		"iens=%d mode=%s step1=%d step2=%d submit=%d/%d run_ok=%t run_path=%q",
		d.Iens, d.RunMode, d.Step1, d.Step2, d.NumInternalSubmit, d.MaxInternalSubmit, d.RunOK, d.RunPath,
	)
}
