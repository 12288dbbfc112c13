// Command forwardctl is the ambient CLI entrypoint: it wires the core
// orchestrator (internal/orchestrator) and its worker pools
// (internal/worker) to concrete store/queue backends and drives a batch of
// realizations through one step range to completion, following the
// teacher's flag-parsing, single-pass batch-CLI idiom
// (cmd/backfill_file_signatures).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/resflow/forward-runner/internal/config"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/orchestrator"
	"github.com/resflow/forward-runner/internal/queue/memqueue"
	"github.com/resflow/forward-runner/internal/rng"
	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/sharedctx"
	"github.com/resflow/forward-runner/internal/subst"
	"github.com/resflow/forward-runner/internal/telemetry"
	"github.com/resflow/forward-runner/internal/worker"
)

// templateFlags collects repeated -template src=dst flags into
// sharedctx.TemplateSpec values, the same repeatable-flag idiom as the
// teacher's idList.
type templateFlags []sharedctx.TemplateSpec

func (f *templateFlags) String() string {
	parts := make([]string, len(*f))
	for i, t := range *f {
		parts[i] = t.SrcPath + "=" + t.DstPath
	}
	return strings.Join(parts, ",")
}

func (f *templateFlags) Set(v string) error {
	src, dst, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("-template expects src=dst, got %q", v)
	}
	*f = append(*f, sharedctx.TemplateSpec{SrcPath: src, DstPath: dst})
	return nil
}

func parseRunMode(s string) (rundesc.RunMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assimilation", "":
		return rundesc.Assimilation, nil
	case "prediction":
		return rundesc.Prediction, nil
	case "experiment":
		return rundesc.Experiment, nil
	default:
		return 0, fmt.Errorf("unknown run mode %q", s)
	}
}

func parseIntSet(s string) (map[int]bool, error) {
	out := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid iens %q in list: %w", part, err)
		}
		out[n] = true
	}
	return out, nil
}

func main() {
	var (
		configPath        = flag.String("config", "", "path to forwardctl.yaml")
		caseName          = flag.String("case", "CASE", "ensemble case name")
		eclBaseFmt        = flag.String("ecl-base", "CASE%d", "ECLBASE format string; %d is replaced with iens")
		numRealizations   = flag.Int("n", 4, "number of realizations to run")
		startIens         = flag.Int("start-iens", 0, "first realization index")
		runModeFlag       = flag.String("run-mode", "assimilation", "assimilation | prediction | experiment")
		step1             = flag.Int("step1", 0, "first report step")
		step2             = flag.Int("step2", 10, "last report step")
		loadStart         = flag.Int("load-start", 1, "first report step to load from the summary series")
		maxInternalSubmit = flag.Int("max-internal-submit", 2, "retry budget per realization")
		internalizeState  = flag.Bool("internalize-state", true, "internalize dynamic state regardless of per-node policy")
		runpathBase       = flag.String("runpath", "./runpath", "base directory for realization run paths")
		failIensFlag      = flag.String("fail-iens", "", "comma-separated iens list the local scheduler reports RUN_FAIL for")
		seed              = flag.Uint64("seed", 1, "base PRNG seed")
		equilInitFile     = flag.String("equil-init-file", "equil.inc", "equilibration include file substituted into INIT at step1==0")
	)
	var templates templateFlags
	flag.Var(&templates, "template", "template src=dst pair to instantiate per step (repeatable)")
	flag.Parse()

	if err := run(runOptions{
		configPath:        *configPath,
		caseName:          *caseName,
		eclBaseFmt:        *eclBaseFmt,
		numRealizations:   *numRealizations,
		startIens:         *startIens,
		runModeFlag:       *runModeFlag,
		step1:             *step1,
		step2:             *step2,
		loadStart:         *loadStart,
		maxInternalSubmit: *maxInternalSubmit,
		internalizeState:  *internalizeState,
		runpathBase:       *runpathBase,
		failIensFlag:      *failIensFlag,
		seed:              *seed,
		equilInitFile:     *equilInitFile,
		templates:         templates,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "forwardctl: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	configPath        string
	caseName          string
	eclBaseFmt        string
	numRealizations   int
	startIens         int
	runModeFlag       string
	step1             int
	step2             int
	loadStart         int
	maxInternalSubmit int
	internalizeState  bool
	runpathBase       string
	failIensFlag      string
	seed              uint64
	equilInitFile     string
	templates         templateFlags
}

func run(opts runOptions) error {
	runMode, err := parseRunMode(opts.runModeFlag)
	if err != nil {
		return err
	}
	failIens, err := parseIntSet(opts.failIensFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	log, err := telemetry.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer log.Sync()

	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	q, mq, err := buildQueue(cfg)
	if err != nil {
		return fmt.Errorf("init queue: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if mq != nil {
		go runLocalScheduler(ctx, mq, failIens, cfg.PollInterval)
	}

	catalog := staticCatalog{eclBaseFmt: opts.eclBaseFmt, templates: opts.templates}
	shared := &sharedctx.Context{
		Store:      st,
		Queue:      q,
		Templates:  fileTemplates{},
		JobCatalog: catalog,
		Log:        telemetry.ZapLog{Logger: log},
	}

	r := worker.NewRunner(ctx, cfg.Preparing.Concurrency, cfg.Loading.Concurrency, cfg.PollInterval)

	orchestrators := make([]*orchestrator.Orchestrator, 0, opts.numRealizations)
	for i := 0; i < opts.numRealizations; i++ {
		iens := opts.startIens + i

		deps := orchestrator.Deps{
			Shared:         shared,
			Registry:       noderegistry.New(),
			EnsembleConfig: emptyEnsembleConfig{},
			SubstTable:     subst.NewTable("<", ">"),
			Rng:            rng.New(rng.SeedForAttempt(opts.seed, iens, 0)),
			RestartOpener:  nullRestartOpener{},
			RestartSink:    nullRestartSinkFactory{},
			SummaryOpener:  nullSummaryOpener{},
			PathFmt:        opts.runpathBase + "/real-%d/step-%d",
			KeepRunpath:    rundesc.DefaultKeep,
			EquilInitFile:  opts.equilInitFile,
			CaseName:       opts.caseName,
		}
		o := orchestrator.New(iens, deps)
		orchestrators = append(orchestrators, o)

		r.Submit(o, orchestrator.Params{
			RunMode:            runMode,
			Active:             true,
			MaxInternalSubmit:  opts.maxInternalSubmit,
			InitStepParameters: opts.step1,
			InitStateParameter: rundesc.Forecast,
			InitStateDynamic:   rundesc.Forecast,
			LoadStart:          opts.loadStart,
			Step1:              opts.step1,
			Step2:              opts.step2,
			InternalizeState:   opts.internalizeState,
		})
	}

	waitErr := r.Wait()

	var ok, skip, fail int
	for _, o := range orchestrators {
		switch o.State {
		case orchestrator.DoneOK:
			ok++
		case orchestrator.DoneSkip:
			skip++
		case orchestrator.DoneFail:
			fail++
		}
	}
	fmt.Printf("done; realizations=%d done_ok=%d done_skip=%d done_fail=%d\n", len(orchestrators), ok, skip, fail)

	if waitErr != nil {
		return waitErr
	}
	if fail > 0 {
		return fmt.Errorf("%d realization(s) exhausted their retry budget", fail)
	}
	return nil
}

// runLocalScheduler stands in for the real external queue transport
// (LSF/SSH/local, out of scope per the queue package's own docs): it
// notices every SUBMITTED realization and resolves it to RUN_OK or
// RUN_FAIL, following the same poll-on-a-ticker shape as the teacher's
// worker runLoop.
func runLocalScheduler(ctx context.Context, mq *memqueue.Queue, failIens map[int]bool, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mq.ResolveAllSubmitted(failIens)
		}
	}
}
