// Package restart implements the restart-block reader (§4.4) and writer
// (§4.6): walking an already-framed keyword stream, dispatching each
// keyword to a registered dynamic node or to the static-keyword sidecar
// with per-keyword occurrence disambiguation, and replaying a previously
// recorded keyword order back out on re-runs.
//
// The binary record format itself (Fortran-style headers, type tags,
// endianness) is an external collaborator's concern; this package consumes
// an already-parsed stream of (name, payload) records.
package restart

import (
	"context"
	"fmt"
	"strings"

	"github.com/resflow/forward-runner/internal/logline"
	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store"
)

// Kind enumerates the fatal error kinds this package can raise.
type Kind string

const (
	KindUnsupportedImpl        Kind = "UNSUPPORTED_RESTART_IMPL"
	KindUnsupportedUnified     Kind = "UNSUPPORTED_UNIFIED_RESTART"
	KindWriteUnexpectedClass   Kind = "WRITE_UNEXPECTED_CLASS"
	KindInvalidRestartFilename Kind = "INVALID_RESTART_FILENAME"
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

// Record is one keyword occurrence from an already-framed restart block.
type Record struct {
	Name    string
	Payload []byte
}

// Block is one opened restart block: a header's worth of keyword records
// in file order. A unified restart file contains many Blocks delimited by
// SEQNUM; this package is handed one Block at a time and never reads
// SEQNUM itself — preserving UNSUPPORTED_UNIFIED_RESTART means the
// unified-file case is rejected by the caller before a Block ever reaches
// this package; see ErrUnifiedUnsupported below.
type Block struct {
	Records []Record
}

// ErrUnifiedUnsupported reports the single preserved source limitation:
// unified restart files are rejected rather than generalized. Callers
// invoke this when the collaborator supplying Blocks reports a unified
// file was located, before constructing any Block.
func ErrUnifiedUnsupported() error {
	return &Error{Kind: KindUnsupportedUnified, Msg: "unified restart files are not supported"}
}

// EnsembleConfig is the oracle the reader and writer consult to resolve a
// keyword's configured implementation type, and to register newly
// discovered static keys.
type EnsembleConfig interface {
	HasKey(name string) bool
	GetConfig(name string) (node.Config, bool)
	// RegisterStatic adds name as a static key if not already present.
	RegisterStatic(name string)
	// NewNode constructs a fresh node.Node instance for an already
	// registered key, using its configured var class and impl type.
	NewNode(name string) (node.Node, error)
}

// sanitize strips characters the simulator forbids in filenames from a
// mangled keyword name. The restart format's 8-character keyword headers
// are alphanumeric plus a small set of punctuation; anything else is
// collapsed to '_'.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// mangle renders the occurrence-disambiguated name for the occ-th
// appearance (0-indexed) of a keyword header within one block. The first
// occurrence is never renamed.
func mangle(name string, occ int) string {
	if occ == 0 {
		return name
	}
	return sanitize(fmt.Sprintf("%s_%d", name, occ))
}

// LoadBlockResult summarizes the outcome of reading one block.
type LoadBlockResult struct {
	RestartKeywords []string
	LoadOK          bool
}

// LoadBlock implements §4.4: it walks block in stream order, dispatches
// each keyword, persists the resulting restart-keyword list, and then
// performs the second node-centric pass over every registered
// DYNAMIC_STATE node.
func LoadBlock(
	ctx context.Context,
	st store.Store,
	log logline.Sink,
	cfg EnsembleConfig,
	reg *noderegistry.Registry,
	block Block,
	runPath string,
	reportStep, iens, step1, step2 int,
	includeStatic func(name string) bool,
	internalizeState bool,
) (LoadBlockResult, error) {
	result := LoadBlockResult{LoadOK: true}
	occ := map[string]int{}

	for _, rec := range block.Records {
		n := occ[rec.Name]
		occ[rec.Name] = n + 1

		var implType node.ImplType
		configured := false
		if n == 0 && cfg.HasKey(rec.Name) {
			c, ok := cfg.GetConfig(rec.Name)
			if ok {
				implType = c.ImplType()
				configured = true
			}
		}
		if !configured {
			implType = node.Static
		}

		switch implType {
		case node.Field:
			result.RestartKeywords = append(result.RestartKeywords, rec.Name)
			nd, err := reg.Get(rec.Name)
			if err != nil {
				return result, err
			}
			src := blockSource{records: block.Records}
			if loadErr := nd.EclLoad(runPath, nil, src, reportStep, iens); loadErr != nil {
				result.LoadOK = false
				logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "load failed for %s at step %d: %v", rec.Name, reportStep, loadErr)
				continue
			}
			data, err := nd.Marshal()
			if err != nil {
				return result, err
			}
			if err := st.PutNode(ctx, rec.Name, reportStep, iens, rundesc.Forecast, data); err != nil {
				return result, err
			}

		case node.Static:
			if !includeStatic(rec.Name) || !internalizeState {
				continue
			}
			mangled := mangle(rec.Name, n)
			result.RestartKeywords = append(result.RestartKeywords, mangled)

			cfg.RegisterStatic(mangled)
			if !reg.Has(mangled) {
				nd, err := cfg.NewNode(mangled)
				if err != nil {
					return result, err
				}
				reg.Add(mangled, nd, nil)
			}
			nd, err := reg.Get(mangled)
			if err != nil {
				return result, err
			}
			if loadErr := nd.EclLoadStatic(rec.Payload, reportStep, iens); loadErr != nil {
				result.LoadOK = false
				logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "static load failed for %s at step %d: %v", mangled, reportStep, loadErr)
				nd.FreeData()
				continue
			}
			data, err := nd.Marshal()
			if err != nil {
				nd.FreeData()
				return result, err
			}
			if err := st.PutNode(ctx, mangled, reportStep, iens, rundesc.Forecast, data); err != nil {
				nd.FreeData()
				return result, err
			}
			nd.FreeData()

		default:
			return result, &Error{Kind: KindUnsupportedImpl, Msg: fmt.Sprintf("%s has impl %s", rec.Name, implType)}
		}
	}

	if err := st.PutRestartKeywords(ctx, reportStep, iens, result.RestartKeywords); err != nil {
		return result, err
	}

	// Second pass: every registered DYNAMIC_STATE node, whether or not its
	// key appeared syntactically in this block (e.g. seismic nodes never
	// do).
	src := blockSource{records: block.Records}
	reg.Iter(func(key string, nd node.Node) {
		if nd.VarClass() != node.DynamicState {
			return
		}
		if !internalizeState && !nd.Internalize(reportStep) {
			return
		}
		if err := nd.EclLoad(runPath, nil, src, reportStep, iens); err != nil {
			result.LoadOK = false
			logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "dynamic-state load failed for %s at step %d: %v", key, reportStep, err)
			return
		}
		data, err := nd.Marshal()
		if err != nil {
			result.LoadOK = false
			logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "marshal failed for %s at step %d: %v", key, reportStep, err)
			return
		}
		if err := st.PutNode(ctx, key, reportStep, iens, rundesc.Forecast, data); err != nil {
			result.LoadOK = false
			logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "store put failed for %s at step %d: %v", key, reportStep, err)
		}
	})

	return result, nil
}

// blockSource adapts a Block's records to node.RestartSource, returning
// only the first occurrence of a given name (later occurrences are static
// and addressed by their mangled name instead).
type blockSource struct {
	records []Record
}

func (b blockSource) KeywordData(name string) ([]byte, bool) {
	for _, r := range b.records {
		if r.Name == name {
			return r.Payload, true
		}
	}
	return nil, false
}
