// Package store declares the content-addressed persistence interface the
// orchestrator depends on. The concrete backend (Postgres, or anything
// else) lives in a subpackage; this package only states the contract and
// the handful of cross-backend helpers (sentinel errors) shared by callers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/resflow/forward-runner/internal/rundesc"
)

// ErrNotFound is returned by every Get* method when the requested key has
// no entry. Callers distinguish "not found" from "for real it errored" with
// errors.Is(err, store.ErrNotFound).
var ErrNotFound = errors.New("store: not found")

// Store is addressed by (node_key, report_step, iens, state) for node
// values, by (report_step, iens) for the ordered restart-keyword list, and
// by iens alone for the per-member simulated-time vector. It must be safe
// for concurrent Put calls keyed by disjoint tuples; this package makes no
// promise about concurrent access to the *same* tuple, since the
// orchestrator never produces that.
type Store interface {
	PutNode(ctx context.Context, key string, reportStep, iens int, state rundesc.State, data []byte) error
	GetNode(ctx context.Context, key string, reportStep, iens int, state rundesc.State) ([]byte, error)

	PutRestartKeywords(ctx context.Context, reportStep, iens int, keys []string) error
	GetRestartKeywords(ctx context.Context, reportStep, iens int) ([]string, error)

	PutSimTimes(ctx context.Context, iens int, times map[int]time.Time) error
	GetSimTimes(ctx context.Context, iens int) (map[int]time.Time, error)
}
