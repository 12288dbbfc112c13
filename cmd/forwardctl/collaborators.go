package main

import (
	"fmt"
	"strings"

	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/orchestrator"
	"github.com/resflow/forward-runner/internal/restart"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/sharedctx"
	"github.com/resflow/forward-runner/internal/subst"
	"github.com/resflow/forward-runner/internal/summary"
)

// staticCatalog is the ambient binary's minimal sharedctx.JobCatalog:
// ensemble-wide configuration parsing (which templates belong to which run
// mode, per-mode ECLBASE conventions) is explicitly out of this module's
// scope, so every run mode gets the same flag-supplied template set, and
// ECLBASE is one format string shared across realizations, with "%d"
// substituted for iens when present.
type staticCatalog struct {
	eclBaseFmt string
	templates  []sharedctx.TemplateSpec
}

func (c staticCatalog) TemplatesFor(rundesc.RunMode) []sharedctx.TemplateSpec { return c.templates }

func (c staticCatalog) EclBase(iens int) string {
	if strings.Contains(c.eclBaseFmt, "%d") {
		return fmt.Sprintf(c.eclBaseFmt, iens)
	}
	return c.eclBaseFmt
}

// fileTemplates is the ambient binary's sharedctx.Templates: a direct pass
// through to subst.Table.ExpandFile, the same cascade-substitution engine
// internal/subst already implements.
type fileTemplates struct{}

func (fileTemplates) Instantiate(spec sharedctx.TemplateSpec, tbl *subst.Table) error {
	return tbl.ExpandFile(spec.SrcPath, spec.DstPath)
}

// emptyEnsembleConfig is the ambient binary's restart.EnsembleConfig: no
// keyword is pre-registered, mirroring the "ensemble-wide configuration
// parsing" non-goal. It is consulted by restart.LoadBlock, which this
// binary's default null restartOpener never feeds a real block to, and by
// restart.WriteBlock on a re-run (step1 > 0), where NewNode's error fails
// any recorded keyword not already in the registry; a deployment that
// plugs in a real simulator-facing RestartOpener must also supply a real
// EnsembleConfig alongside it.
type emptyEnsembleConfig struct{}

func (emptyEnsembleConfig) HasKey(string) bool                   { return false }
func (emptyEnsembleConfig) GetConfig(string) (node.Config, bool) { return nil, false }
func (emptyEnsembleConfig) RegisterStatic(string)                {}
func (emptyEnsembleConfig) NewNode(string) (node.Node, error) {
	return nil, fmt.Errorf("forwardctl: no ensemble configuration wired; cannot construct node for a static keyword")
}

var _ restart.EnsembleConfig = emptyEnsembleConfig{}

// nullRestartOpener reports that no restart checkpoint is ever available.
// Parsing the simulator's binary restart format is an external
// collaborator's concern per internal/restart's own package doc; a real
// deployment plugs a real decoder in behind this same interface.
type nullRestartOpener struct{}

func (nullRestartOpener) OpenBlock(runPath string, reportStep int) (restart.Block, error) {
	return restart.Block{}, orchestrator.ErrRestartNotFound
}

// nullRestartSinkFactory hands back a sink that accepts every write and
// discards it, so a re-run step (step1 > 0) does not fail for lack of a
// real simulator-facing restart writer.
type nullRestartSinkFactory struct{}

func (nullRestartSinkFactory) NewSink(runPath string, step1 int) (node.RestartSink, error) {
	return discardSink{}, nil
}

type discardSink struct{}

func (discardSink) WriteKeyword(name string, data []byte) error { return nil }

// nullSummaryOpener is only ever consulted when summary.Locate reports a
// usable file set on disk — never the case for this binary's own local
// scheduler, which produces no simulator output at all. A deployment
// pointed at a real run directory plugs a real binary-summary decoder in
// behind this same interface.
type nullSummaryOpener struct{}

func (nullSummaryOpener) Open(summary.Located) (node.SummarySource, error) {
	return nil, fmt.Errorf("forwardctl: no summary decoder wired for %s", "this run directory")
}
