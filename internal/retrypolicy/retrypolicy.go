// Package retrypolicy implements the bounded-attempts retry predicate and
// the resampling step (§4.8) performed before every internal resubmission.
package retrypolicy

import (
	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/noderegistry"
)

// CanRetry reports whether another internal resubmission is still within
// budget.
func CanRetry(numInternalSubmit, maxInternalSubmit int) bool {
	return numInternalSubmit < maxInternalSubmit
}

// Resample calls Initialize(iens) on every registered node whose variable
// class is PARAMETER or DYNAMIC_STATE, producing fresh stochastic draws for
// the next internal submission. Templated RANDINT/RANDFLOAT sentinels are
// re-expanded separately when PREPARING runs again; this function only
// covers node-level resampling.
func Resample(reg *noderegistry.Registry, iens int) error {
	var firstErr error
	reg.Iter(func(_ string, n node.Node) {
		switch n.VarClass() {
		case node.Parameter, node.DynamicState:
		default:
			return
		}
		if err := n.Initialize(iens); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}
