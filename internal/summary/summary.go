// Package summary implements the summary-series reader (§4.5): locating
// unified or per-step summary files, then feeding each dynamic-result node
// one report step at a time and recording simulated wall-clock times per
// step.
//
// The binary summary format itself is an external collaborator's concern;
// this package consumes an already-opened node.SummarySource.
package summary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/resflow/forward-runner/internal/logline"
	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store"
)

// Locator resolves the candidate summary file paths for one realization's
// run directory, following the simulator's conventional naming.
type Locator struct {
	RunPath string
	EclBase string
}

func (l Locator) HeaderPath() string {
	return filepath.Join(l.RunPath, l.EclBase+".SMSPEC")
}

func (l Locator) UnifiedPath() string {
	return filepath.Join(l.RunPath, l.EclBase+".UNSMRY")
}

func (l Locator) PerStepPath(step int) string {
	return filepath.Join(l.RunPath, fmt.Sprintf("%s.S%04d", l.EclBase, step))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Located describes which files back this realization's summary series.
type Located struct {
	HeaderPath string
	DataPaths  []string
	Unified    bool
}

// Found reports whether a usable summary input set was located: the header
// file and at least one data file must be present.
func (l Located) Found() bool {
	return l.HeaderPath != "" && len(l.DataPaths) > 0
}

// Locate implements the location rule: prefer a single unified file if
// present; otherwise collect per-step files for increasing report steps up
// to step2, stopping at the first gap in PREDICTION mode and otherwise
// collecting every present step through step2.
func Locate(l Locator, runMode rundesc.RunMode, step2 int) Located {
	if !exists(l.HeaderPath()) {
		return Located{}
	}
	if exists(l.UnifiedPath()) {
		return Located{HeaderPath: l.HeaderPath(), DataPaths: []string{l.UnifiedPath()}, Unified: true}
	}

	var dataPaths []string
	for step := 0; step <= step2; step++ {
		p := l.PerStepPath(step)
		if !exists(p) {
			if runMode == rundesc.Prediction {
				break
			}
			continue
		}
		dataPaths = append(dataPaths, p)
	}
	return Located{HeaderPath: l.HeaderPath(), DataPaths: dataPaths}
}

// Opener constructs a node.SummarySource from a located file set. It is an
// external collaborator: parsing the binary summary format is out of
// scope for this package.
type Opener interface {
	Open(located Located) (node.SummarySource, error)
}

// LoadResult summarizes the outcome of feeding a series into the registry.
type LoadResult struct {
	LoadOK   bool
	SimTimes map[int]time.Time
}

// LoadSeries implements the node-feeding half of §4.5 given an
// already-opened summary source: for each report step in
// [max(loadStart,1), summary.LastReportStep()], every DYNAMIC_RESULT node
// is loaded and stored as FORECAST, and the simulated time for that step is
// recorded. Report step 0 is never loaded from a summary. The caller is
// responsible for persisting the returned SimTimes via store.PutSimTimes
// once all passes for this realization are complete.
func LoadSeries(
	ctx context.Context,
	st store.Store,
	log logline.Sink,
	reg *noderegistry.Registry,
	summarySrc node.SummarySource,
	runPath string,
	iens, loadStart, step1, step2 int,
) (LoadResult, error) {
	result := LoadResult{LoadOK: true, SimTimes: map[int]time.Time{}}

	start := loadStart
	if start < 1 {
		start = 1
	}
	last := summarySrc.LastReportStep()

	for r := start; r <= last; r++ {
		if t, ok := summarySrc.ReportTime(r); ok {
			result.SimTimes[r] = time.Unix(t, 0).UTC()
		}

		reg.Iter(func(key string, nd node.Node) {
			if nd.VarClass() != node.DynamicResult {
				return
			}
			if err := nd.EclLoad(runPath, summarySrc, nil, r, iens); err != nil {
				result.LoadOK = false
				logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "summary load failed for %s at step %d: %v", key, r, err)
				return
			}
			data, err := nd.Marshal()
			if err != nil {
				result.LoadOK = false
				logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "marshal failed for %s at step %d: %v", key, r, err)
				return
			}
			if err := st.PutNode(ctx, key, r, iens, rundesc.Forecast, data); err != nil {
				result.LoadOK = false
				logline.Logf(log, logline.LevelNodeDetail, iens, step1, step2, "store put failed for %s at step %d: %v", key, r, err)
			}
		})
	}

	return result, nil
}
