package summary

import (
	"context"
	"os"
	"testing"

	"github.com/resflow/forward-runner/internal/logline"
	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/nodetest"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Log(level logline.Level, iens, step1, step2 int, msg string) {}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestLocatePrefersUnified(t *testing.T) {
	dir := t.TempDir()
	l := Locator{RunPath: dir, EclBase: "CASE"}
	touch(t, l.HeaderPath())
	touch(t, l.UnifiedPath())
	touch(t, l.PerStepPath(0))

	loc := Locate(l, rundesc.Assimilation, 2)
	assert.True(t, loc.Unified)
	assert.Equal(t, []string{l.UnifiedPath()}, loc.DataPaths)
}

func TestLocatePerStepStopsAtFirstGapInPrediction(t *testing.T) {
	dir := t.TempDir()
	l := Locator{RunPath: dir, EclBase: "CASE"}
	touch(t, l.HeaderPath())
	touch(t, l.PerStepPath(0))
	touch(t, l.PerStepPath(1))
	// gap at step 2
	touch(t, l.PerStepPath(3))

	loc := Locate(l, rundesc.Prediction, 3)
	assert.False(t, loc.Unified)
	assert.Equal(t, []string{l.PerStepPath(0), l.PerStepPath(1)}, loc.DataPaths)
}

func TestLocatePerStepCollectsThroughGapsOutsidePrediction(t *testing.T) {
	dir := t.TempDir()
	l := Locator{RunPath: dir, EclBase: "CASE"}
	touch(t, l.HeaderPath())
	touch(t, l.PerStepPath(0))
	touch(t, l.PerStepPath(2))

	loc := Locate(l, rundesc.Assimilation, 2)
	assert.Equal(t, []string{l.PerStepPath(0), l.PerStepPath(2)}, loc.DataPaths)
}

func TestLocateNotFoundWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	l := Locator{RunPath: dir, EclBase: "CASE"}
	loc := Locate(l, rundesc.Assimilation, 2)
	assert.False(t, loc.Found())
}

func TestLoadSeriesSkipsStepZeroAndPersistsTimes(t *testing.T) {
	reg := noderegistry.New()
	n := nodetest.New("FOPT", node.DynamicResult, node.Summary)
	reg.Add("FOPT", n, nil)

	src := nodetest.NewSummary()
	src.Set("FOPT", 1, 100)
	src.Set("FOPT", 2, 200)
	src.SetTime(0, 0)
	src.SetTime(1, 1000)
	src.SetTime(2, 2000)
	src.Last = 2

	st := memstore.New()
	res, err := LoadSeries(context.Background(), st, nopSink{}, reg, src, "/run/3", 3, 0, 0, 2)
	require.NoError(t, err)
	assert.True(t, res.LoadOK)
	assert.Equal(t, 2, n.LoadCalls)
	assert.NotContains(t, res.SimTimes, 0)
	assert.Contains(t, res.SimTimes, 1)
	assert.Contains(t, res.SimTimes, 2)

	stored, err := st.GetNode(context.Background(), "FOPT", 1, 3, rundesc.Forecast)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestLoadSeriesRespectsLoadStart(t *testing.T) {
	reg := noderegistry.New()
	n := nodetest.New("FOPT", node.DynamicResult, node.Summary)
	reg.Add("FOPT", n, nil)

	src := nodetest.NewSummary()
	src.Last = 4

	st := memstore.New()
	_, err := LoadSeries(context.Background(), st, nopSink{}, reg, src, "/run/3", 3, 3, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, n.LoadCalls) // steps 3 and 4
}

func TestLoadSeriesMarksLoadFailure(t *testing.T) {
	reg := noderegistry.New()
	n := nodetest.New("FOPT", node.DynamicResult, node.Summary)
	n.LoadErr = assertError{}
	reg.Add("FOPT", n, nil)

	src := nodetest.NewSummary()
	src.Last = 1

	st := memstore.New()
	res, err := LoadSeries(context.Background(), st, nopSink{}, reg, src, "/run/3", 3, 0, 0, 1)
	require.NoError(t, err)
	assert.False(t, res.LoadOK)
}

type assertError struct{}

func (assertError) Error() string { return "load failed" }
