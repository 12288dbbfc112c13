package restart

import (
	"context"
	"fmt"

	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store"
)

// fixedDynamicKeys is the set prepended to the restart-keyword list when
// step1 == 0, so the generic write pass does not re-emit them; the
// restart-block writer itself is skipped entirely at step1 == 0.
var fixedDynamicKeys = []string{"SWAT", "SGAS", "PRESSURE", "RV", "RS"}

// WriteBlock implements §4.6. It is used only for re-runs from step1 > 0;
// at step1 == 0 the restart-block writer is skipped and the returned list
// is exactly fixedDynamicKeys. keywordList is the keyword order recorded
// for this realization's prior pass at step1; when empty, it is read back
// from the store.
//
// The returned keyword list is the final, possibly-prepended list the
// caller should pass into the generic write pass (which this function also
// performs before returning).
func WriteBlock(
	ctx context.Context,
	st store.Store,
	cfg EnsembleConfig,
	reg *noderegistry.Registry,
	sink node.RestartSink,
	runPath string,
	step1, iens int,
	initStateDynamic rundesc.State,
	keywordList []string,
) ([]string, error) {
	var finalKeys []string

	if step1 == 0 {
		finalKeys = append(finalKeys, fixedDynamicKeys...)
	} else {
		keys := keywordList
		if len(keys) == 0 {
			stored, err := st.GetRestartKeywords(ctx, step1, iens)
			if err != nil {
				return nil, err
			}
			keys = stored
		}

		for _, key := range keys {
			if !cfg.HasKey(key) {
				cfg.RegisterStatic(key)
			}
			if !reg.Has(key) {
				nd, err := cfg.NewNode(key)
				if err != nil {
					return nil, err
				}
				reg.Add(key, nd, nil)
			}
			nd, err := reg.Get(key)
			if err != nil {
				return nil, err
			}

			switch {
			case nd.VarClass() == node.StaticState:
				data, err := st.GetNode(ctx, key, step1, iens, initStateDynamic)
				if err != nil {
					return nil, err
				}
				if err := nd.Unmarshal(data); err != nil {
					return nil, err
				}
				if err := nd.EclWrite(runPath, sink, step1); err != nil {
					return nil, err
				}
				nd.FreeData()

			case nd.VarClass() == node.DynamicState && nd.Impl() == node.Field:
				if err := nd.EclWrite(runPath, sink, step1); err != nil {
					return nil, err
				}

			default:
				return nil, &Error{Kind: KindWriteUnexpectedClass, Msg: fmt.Sprintf("%s is %s/%s", key, nd.VarClass(), nd.Impl())}
			}
		}
		finalKeys = keys
	}

	inList := make(map[string]bool, len(finalKeys))
	for _, k := range finalKeys {
		inList[k] = true
	}
	for _, key := range reg.Snapshot() {
		if inList[key] {
			continue
		}
		nd, err := reg.Get(key)
		if err != nil {
			continue
		}
		if nd.VarClass() == node.StaticState {
			continue
		}
		if err := nd.EclWrite(runPath, nil, step1); err != nil {
			return nil, err
		}
	}

	return finalKeys, nil
}
