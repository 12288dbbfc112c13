// Package sharedctx defines the shared-context handle: read-only handles to
// external collaborators the orchestrator needs but does not own. It is a
// borrowed aggregate of references; the orchestrator must never mutate any
// of the collaborators it points to, only call their documented methods.
package sharedctx

import (
	"github.com/resflow/forward-runner/internal/logline"
	"github.com/resflow/forward-runner/internal/queue"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store"
	"github.com/resflow/forward-runner/internal/subst"
)

// TemplateSpec names one template file to instantiate into a run
// directory.
type TemplateSpec struct {
	SrcPath string
	DstPath string
}

// Templates instantiates simulator-input templates using a substitution
// table. The template tagging scheme and file layout are owned by this
// collaborator, not by the orchestrator.
type Templates interface {
	Instantiate(spec TemplateSpec, tbl *subst.Table) error
}

// JobCatalog supplies the ensemble-wide, run-mode-specific set of template
// files to instantiate for a step, plus the simulator base name used to
// resolve restart/summary file paths. Both are ensemble-configuration
// concerns kept out of the orchestrator's scope.
type JobCatalog interface {
	TemplatesFor(runMode rundesc.RunMode) []TemplateSpec
	EclBase(iens int) string
}

// Context is the borrowed aggregate of references the orchestrator holds
// non-owning pointers to. None of these fields may be nil at construction;
// the orchestrator treats every method call as possibly failing but never
// checks for a nil collaborator itself — that is a wiring-time invariant,
// not a runtime one.
type Context struct {
	Store      store.Store
	Queue      queue.Queue
	Templates  Templates
	JobCatalog JobCatalog
	Log        logline.Sink
}
