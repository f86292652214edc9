package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/colcluster"
	"github.com/hupe1980/colcluster/blobstore"
	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/engine"
	"github.com/hupe1980/colcluster/metrics/prom"
	"github.com/hupe1980/colcluster/resource"
	"github.com/hupe1980/colcluster/sampling"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/trainer"
)

var errSizeAndCount = errors.New("--max-total-size-mb cannot be combined with a sample count")

func trainCommand() *cli.Command {
	flags := append(storeFlags(),
		&cli.StringFlag{
			Name:  "params",
			Usage: "YAML file with training parameters; flags win over the file",
		},
		&cli.StringFlag{
			Name:  "trainer",
			Usage: "full-split, greedy or bottom-up (default greedy)",
		},
		&cli.IntFlag{
			Name:  "threads",
			Usage: "worker goroutines running trial compressions, at least 1 (default: number of CPUs)",
		},
		&cli.IntFlag{
			Name:  "num-samples",
			Usage: "train on exactly `N` randomly picked samples",
		},
		&cli.BoolFlag{
			Name:  "use-all-samples",
			Usage: "train on every sample; overrides --num-samples and the size limits",
		},
		&cli.IntFlag{
			Name:  "max-time-secs",
			Usage: "stop the search after this many seconds and keep the best config so far",
		},
		&cli.Uint64Flag{
			Name:  "max-file-size-mb",
			Value: sampling.DefaultMaxFileSize >> 20,
			Usage: "ignore samples larger than this",
		},
		&cli.Uint64Flag{
			Name:  "max-total-size-mb",
			Value: sampling.DefaultMaxTotalSize >> 20,
			Usage: "approximate size of the training set",
		},
		&cli.Uint64Flag{
			Name:  "seed",
			Value: sampling.DefaultSeed,
			Usage: "seed of the sample picker",
		},
		&cli.BoolFlag{
			Name:  "no-clustering",
			Usage: "skip training and report the current clustering graph",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write the trained config to `FILE` instead of stdout",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite --output if it exists",
		},
		&cli.BoolFlag{
			Name:  "publish",
			Usage: "store the trained config next to the samples and point CURRENT at it",
		},
		&cli.StringFlag{
			Name:  "memory-limit",
			Usage: "bytes of samples held in memory while loading, e.g. 1GiB",
		},
		&cli.StringFlag{
			Name:  "read-rate",
			Usage: "sample read throughput per second, e.g. 64MiB",
		},
		&cli.IntFlag{
			Name:  "parallel-reads",
			Value: 4,
			Usage: "samples read concurrently",
		},
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "write Prometheus metrics of the run to `FILE`",
		},
	)

	return &cli.Command{
		Name:   "train",
		Usage:  "train a clustering config on a set of samples",
		Flags:  flags,
		Action: runTrain,
	}
}

// trainSettings is the merged view of the params file and the flags.
type trainSettings struct {
	params     *params
	kind       trainer.Kind
	kindSet    bool
	threads    int
	threadsSet bool
	maxTime    time.Duration
	limiter    *sampling.Limiter
}

func resolveSettings(c *cli.Context, log *colcluster.Logger) (*trainSettings, error) {
	p, err := loadParams(c.String("params"))
	if err != nil {
		return nil, err
	}
	s := &trainSettings{params: p, threads: p.Threads, maxTime: p.MaxTime}

	name := p.Trainer
	if c.IsSet("trainer") {
		name = c.String("trainer")
	}
	if name != "" {
		if s.kind, err = trainer.ParseKind(name); err != nil {
			return nil, err
		}
		s.kindSet = true
	}

	if c.IsSet("threads") {
		s.threads = c.Int("threads")
	}
	s.threadsSet = s.threads != 0 || c.IsSet("threads")
	if s.threads > runtime.NumCPU() {
		log.Warn("more threads than CPUs, trial compressions will compete for cores",
			"threads", s.threads, "cpus", runtime.NumCPU())
	}
	if c.IsSet("max-time-secs") {
		s.maxTime = time.Duration(c.Int("max-time-secs")) * time.Second
	}

	maxFile, err := parseSize("max_file_size", p.MaxFileSize)
	if err != nil {
		return nil, err
	}
	if c.IsSet("max-file-size-mb") || maxFile == 0 {
		maxFile = c.Uint64("max-file-size-mb") << 20
	}
	maxTotal, err := parseSize("max_total_size", p.MaxTotalSize)
	if err != nil {
		return nil, err
	}
	totalSet := c.IsSet("max-total-size-mb") || maxTotal != 0
	if c.IsSet("max-total-size-mb") || maxTotal == 0 {
		maxTotal = c.Uint64("max-total-size-mb") << 20
	}

	numSamples := p.NumSamples
	if c.IsSet("num-samples") {
		numSamples = c.Int("num-samples")
	}

	seed := c.Uint64("seed")
	if p.Seed != nil && !c.IsSet("seed") {
		seed = *p.Seed
	}

	opts := []sampling.LimiterOption{sampling.WithSeed(seed)}
	switch {
	case c.Bool("use-all-samples"):
		if numSamples > 0 {
			log.Warn("--use-all-samples overrides the requested sample count", "num_samples", numSamples)
		}
		opts = append(opts, sampling.WithAllSamples())
	case numSamples > 0:
		if totalSet {
			return nil, errSizeAndCount
		}
		opts = append(opts, sampling.WithNumSamples(numSamples))
	}
	s.limiter = sampling.NewLimiter(maxTotal, maxFile, opts...)
	return s, nil
}

func (s *trainSettings) options(log *colcluster.Logger, mc colcluster.MetricsCollector) []colcluster.Option {
	opts := []colcluster.Option{
		colcluster.WithLogger(log),
		colcluster.WithMaxTime(s.maxTime),
		colcluster.WithMetricsCollector(mc),
	}
	if s.threadsSet {
		opts = append(opts, colcluster.WithThreads(s.threads))
	}
	if s.kindSet {
		opts = append(opts, colcluster.WithTrainer(s.kind))
	}
	g := s.params.Greedy
	pairs := -1
	if g.MaxPairPartners != nil {
		pairs = *g.MaxPairPartners
	}
	return append(opts, colcluster.WithGreedyParams(g.MaxCandidates, pairs, g.Iterations))
}

func runTrain(c *cli.Context) error {
	ctx := c.Context
	log := loggerFrom(c)

	out := c.String("output")
	if out != "" && !c.Bool("force") {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s exists, use --force to overwrite it", out)
		}
	}

	settings, err := resolveSettings(c, log)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}

	comp := engine.NewCompressor()
	if err := comp.SelectStartingGraph(engine.GraphClustering); err != nil {
		return err
	}
	successors, codecs, defaults, err := settings.params.graphParams(comp)
	if err != nil {
		return err
	}

	var (
		mc  colcluster.MetricsCollector = colcluster.NoopMetricsCollector{}
		reg *prometheus.Registry
	)
	if c.String("metrics-textfile") != "" {
		reg = prometheus.NewRegistry()
		if mc, err = prom.NewCollector(reg); err != nil {
			return err
		}
	}

	opts := settings.options(log, mc)
	var loaded *sampling.Loaded
	if c.Bool("no-clustering") {
		opts = append(opts, colcluster.WithNoClustering())
	} else {
		rc, err := newController(c)
		if err != nil {
			return err
		}
		loader := sampling.NewLoader(store, settings.limiter,
			sampling.WithController(rc),
			sampling.WithLogger(log.Logger))
		if loaded, err = loader.Load(ctx, c.String("prefix")); err != nil {
			return err
		}
	}

	var samples []stream.MultiInput
	if loaded != nil {
		samples = loaded.Samples
	}
	res, err := colcluster.TrainCluster(ctx, comp, samples, successors, codecs, defaults, opts...)
	if err != nil {
		return err
	}

	rep := newReport(comp, res, loaded, !c.Bool("no-clustering"))
	data, err := yaml.Marshal(rep)
	if err != nil {
		return err
	}
	if err := writeOutput(c.App.Writer, out, data); err != nil {
		return err
	}

	if c.Bool("publish") {
		name := "configs/" + res.RunID.String() + ".yaml"
		if err := blobstore.Publish(ctx, store, name, data); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
		log.InfoContext(ctx, "published trained config", "name", name)
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(c.String("metrics-textfile"), reg); err != nil {
			return err
		}
	}

	if rep.ImprovementPct != 0 {
		log.InfoContext(ctx, fmt.Sprintf("compression ratio improved by %.2f%%", rep.ImprovementPct))
	}
	return nil
}

func newController(c *cli.Context) (*resource.Controller, error) {
	mem, err := parseSize("--memory-limit", c.String("memory-limit"))
	if err != nil {
		return nil, err
	}
	rate, err := parseSize("--read-rate", c.String("read-rate"))
	if err != nil {
		return nil, err
	}
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   int64(mem),
		MaxConcurrentReads: int64(c.Int("parallel-reads")),
		ReadBytesPerSec:    int64(rate),
	}), nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// report is the YAML document written by train.
type report struct {
	RunID          string              `yaml:"run_id"`
	Trainer        string              `yaml:"trainer,omitempty"`
	Graph          string              `yaml:"graph"`
	Successors     []string            `yaml:"successors"`
	Codecs         []string            `yaml:"codecs"`
	Config         clustering.Document `yaml:"config"`
	Samples        []string            `yaml:"samples,omitempty"`
	SampleBytes    uint64              `yaml:"sample_bytes,omitempty"`
	CompressedSize uint64              `yaml:"compressed_size,omitempty"`
	BaselineSize   uint64              `yaml:"baseline_size,omitempty"`
	ImprovementPct float64             `yaml:"improvement_pct,omitempty"`
	Candidates     int64               `yaml:"candidates,omitempty"`
	EarlyStopped   bool                `yaml:"early_stopped,omitempty"`
	Duration       time.Duration       `yaml:"duration,omitempty"`
}

func newReport(c *engine.Compressor, res *colcluster.Result, loaded *sampling.Loaded, trained bool) *report {
	rep := &report{
		RunID:      res.RunID.String(),
		Graph:      c.GraphName(res.GraphID),
		Successors: make([]string, len(res.Successors)),
		Codecs:     make([]string, len(res.Codecs)),
		Config:     res.Config.Document(),
	}
	for i, id := range res.Successors {
		rep.Successors[i] = c.GraphName(id)
	}
	for i, id := range res.Codecs {
		rep.Codecs[i] = c.NodeName(id)
	}
	if !trained {
		return rep
	}

	rep.Trainer = res.Trainer.String()
	rep.Candidates = res.Candidates
	rep.EarlyStopped = res.EarlyStopped
	rep.Duration = res.Duration.Round(time.Millisecond)
	if loaded != nil {
		rep.Samples = loaded.Names
		rep.SampleBytes = loaded.Bytes
	}
	if !res.Cost.IsFailed() {
		rep.CompressedSize = res.Cost.CompressedSize
	}
	if !res.Baseline.IsFailed() {
		rep.BaselineSize = res.Baseline.CompressedSize
	}
	rep.ImprovementPct = res.Improvement()
	return rep
}
