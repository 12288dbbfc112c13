// Package node defines the capability surface the orchestrator uses to talk
// to individual ensemble variables (fields, summary curves, parameterized
// keyword groups, static passthrough keywords). Concrete node implementations
// — the actual pressure-field decoder, the GEN_KW template-driven parameter,
// and so on — are external collaborators; this package only states the
// contract the orchestrator is allowed to depend on.
package node

import "fmt"

// VarClass drives reading, writing, and persistence policy for a node.
type VarClass int

const (
	// Parameter is sampled from a prior and written into simulator input; it
	// is never loaded back from simulator output.
	Parameter VarClass = iota
	// DynamicState is solver state (pressure, saturations, ...) read from and
	// written into restart files.
	DynamicState
	// DynamicResult is a derived scalar curve (rates, totals) read from
	// summary files only.
	DynamicResult
	// StaticState is an opaque passthrough keyword round-tripped without
	// semantic interpretation.
	StaticState
)

func (c VarClass) String() string {
	switch c {
	case Parameter:
		return "PARAMETER"
	case DynamicState:
		return "DYNAMIC_STATE"
	case DynamicResult:
		return "DYNAMIC_RESULT"
	case StaticState:
		return "STATIC_STATE"
	default:
		return fmt.Sprintf("VarClass(%d)", int(c))
	}
}

// ImplType selects specialized read/write behavior. It is visible within
// this package and the restart reader/writer, never at the orchestrator's
// public boundary.
type ImplType int

const (
	Field ImplType = iota
	Summary
	GenKW
	Static
)

func (t ImplType) String() string {
	switch t {
	case Field:
		return "FIELD"
	case Summary:
		return "SUMMARY"
	case GenKW:
		return "GEN_KW"
	case Static:
		return "STATIC"
	default:
		return fmt.Sprintf("ImplType(%d)", int(t))
	}
}

// Capability is a bit flag a node may or may not advertise, queried via
// HasCap before the orchestrator attempts an operation a node might not
// support (e.g. not every node can ecl_write).
type Capability int

const (
	CapRead Capability = 1 << iota
	CapWrite
	CapInitialize
)

// SummarySource is the subset of the summary-file collaborator a node needs
// to pull its own curve out of an already-located summary object. The binary
// format itself is out of scope; this is the consumption interface.
type SummarySource interface {
	Value(key string, reportStep int) (float64, bool)
	ReportTime(reportStep int) (timeValue int64, ok bool)
	LastReportStep() int
}

// RestartSource is the subset of an opened restart block a node needs to
// pull its own keyword's payload out. The binary record format itself is
// out of scope; this is the consumption interface.
type RestartSource interface {
	// KeywordData returns the raw payload for the named keyword's first
	// occurrence in this block, or ok=false if absent.
	KeywordData(name string) (data []byte, ok bool)
}

// RestartSink is the subset of the write-side restart stream a node needs
// to emit its own keyword in place.
type RestartSink interface {
	WriteKeyword(name string, data []byte) error
}

// Config is the ensemble-configure-time description of a node: its key,
// variable class, implementation tag, and whatever private state the
// implementation needs to construct a fresh Node. The orchestrator never
// inspects a Config beyond these three accessors.
type Config interface {
	Key() string
	VarClass() VarClass
	ImplType() ImplType
}

// Node is the capability interface the orchestrator is allowed to depend on.
// Each method corresponds to a verb the state machine or the restart/summary
// readers invoke; implementations are free to no-op methods their impl type
// never needs (e.g. a STATIC node's Initialize is a no-op).
type Node interface {
	Key() string
	VarClass() VarClass
	Impl() ImplType
	HasCap(c Capability) bool

	// EclLoad loads this node's value at reportStep for realization iens from
	// whichever source is non-nil: summary for DYNAMIC_RESULT nodes, block for
	// DYNAMIC_STATE/FIELD nodes read out of a restart block. runPath is passed
	// through for node implementations that load side files (e.g. seismic)
	// that never appear in the restart stream at all.
	EclLoad(runPath string, summary SummarySource, block RestartSource, reportStep, iens int) error

	// EclLoadStatic internalizes a static keyword's raw payload. Payloads are
	// large and single-use; callers free them immediately after the call
	// returns via FreeData.
	EclLoadStatic(payload []byte, reportStep, iens int) error

	// EclWrite emits this node's current value into the write-side restart
	// stream (for DYNAMIC_STATE/STATIC_STATE) at step1, or into plain
	// simulator input files when sink is nil (PARAMETER/GEN_KW templates).
	EclWrite(runPath string, sink RestartSink, step1 int) error

	// Initialize draws a fresh value for this node (PARAMETER, DYNAMIC_STATE)
	// — called once at step1==0 bootstrap and again by the retry policy
	// before every internal resubmission.
	Initialize(iens int) error

	// Internalize is the node's private should-internalize policy, consulted
	// only when the orchestrator's own internalize_state flag is false.
	Internalize(reportStep int) bool

	// InvalidateCache drops any memoized derived state; called when the
	// orchestrator can no longer vouch for consistency between disk and
	// whatever a node may have cached in memory.
	InvalidateCache()

	// FreeData releases large in-memory payloads (static keywords, loaded
	// restart blocks) without destroying the node itself.
	FreeData()

	// Marshal serializes this node's current value for the content-addressed
	// store. The wire format is private to each implementation; the store
	// never interprets it.
	Marshal() ([]byte, error)

	// Unmarshal restores a value previously produced by Marshal, used by the
	// restart-block writer to repopulate a STATIC_STATE node from the store
	// before emitting it.
	Unmarshal(data []byte) error
}
