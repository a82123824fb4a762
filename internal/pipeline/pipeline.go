// Package pipeline wires the whole annotation run together: single-threaded
// index building, the parallel annotation phase, the optional population
// reconciliation pass, and cleanup that always runs. Store handles live in
// an explicit Stores object passed to whoever needs them; there is no global
// store manager.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/varannot/internal/annotate"
	"github.com/Aman-CERP/varannot/internal/config"
	"github.com/Aman-CERP/varannot/internal/fasta"
	"github.com/Aman-CERP/varannot/internal/indexer"
	"github.com/Aman-CERP/varannot/internal/jsonl"
	"github.com/Aman-CERP/varannot/internal/kvstore"
	"github.com/Aman-CERP/varannot/internal/reconcile"
	"github.com/Aman-CERP/varannot/internal/runner"
	"github.com/Aman-CERP/varannot/internal/variant"
	"github.com/Aman-CERP/varannot/internal/vcf"
)

// Stores owns every store handle opened for a run. Custom indices are
// durable and merely closed; the population index is transient and deleted
// whether the run succeeded or not.
type Stores struct {
	Custom     []*kvstore.Store
	Population *kvstore.Store
}

// Close releases all handles and removes the transient population index.
func (s *Stores) Close(logger *slog.Logger) {
	for _, st := range s.Custom {
		if err := st.Close(); err != nil {
			logger.Error("closing custom index", "location", st.Path(), "error", err)
		}
	}
	if s.Population != nil {
		if err := s.Population.Destroy(); err != nil {
			logger.Error("removing population index", "location", s.Population.Path(), "error", err)
		}
	}
}

// Pipeline is one configured annotation run.
type Pipeline struct {
	cfg    *config.Config
	calc   annotate.Calculator
	logger *slog.Logger
}

// New assembles a pipeline. calc may be nil, in which case the configured
// calculator endpoint (or the in-process baseline) is used.
func New(cfg *config.Config, calc annotate.Calculator, logger *slog.Logger) *Pipeline {
	if calc == nil {
		if cfg.Calculator.URL != "" {
			calc = annotate.NewRemoteCalculator(cfg.Calculator.URL)
		} else {
			calc = annotate.BaselineCalculator{}
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, calc: calc, logger: logger}
}

// Run executes INDEXING, ANNOTATING, optional RECONCILING and CLEANUP.
// Cleanup runs even when an earlier stage failed.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	norm, seqClose, err := p.newNormalizer()
	if err != nil {
		return err
	}
	defer seqClose()

	p.logger.Info("stage", "state", "INDEXING")
	stores, err := p.buildIndexes(ctx, norm)
	if err != nil {
		return err
	}
	defer func() {
		p.logger.Info("stage", "state", "CLEANUP")
		stores.Close(p.logger)
	}()

	p.logger.Info("stage", "state", "ANNOTATING",
		"workers", p.cfg.Pipeline.Workers, "batch_size", p.cfg.Pipeline.BatchSize, "ordered", p.cfg.Pipeline.Ordered)
	if err := p.annotate(ctx, stores, norm); err != nil {
		return err
	}

	if stores.Population != nil {
		if p.cfg.Population.CompleteInputPopulation {
			p.logger.Info("stage", "state", "RECONCILING")
			if _, err := reconcile.Run(ctx, stores.Population, p.cfg.Output, p.logger); err != nil {
				// Output already written stays; reconciliation failures are
				// surfaced but nothing is rolled back.
				p.logger.Error("reconciliation failed", "error", err)
				return err
			}
		} else {
			p.logger.Warn("complete-input-population disabled, unmatched population entries will not be appended",
				"population_file", p.cfg.Population.File)
		}
	}

	p.logger.Info("variant annotation finished")
	return nil
}

// newNormalizer builds the shared normalizer, opening the reference genome
// when left-alignment is on. The returned closer is a no-op otherwise.
func (p *Pipeline) newNormalizer() (*variant.Normalizer, func(), error) {
	var provider variant.SequenceProvider
	closeFn := func() {}
	if p.cfg.Normalize.LeftAlign {
		ref, err := fasta.Open(p.cfg.Normalize.ReferenceFasta)
		if err != nil {
			return nil, nil, fmt.Errorf("opening reference genome: %w", err)
		}
		provider = ref
		closeFn = func() { _ = ref.Close() }
	}
	norm, err := variant.NewNormalizer(variant.NormalizerConfig{
		DecomposeMNVs: p.cfg.Normalize.DecomposeMNVs,
		LeftAlign:     p.cfg.Normalize.LeftAlign,
	}, provider)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return norm, closeFn, nil
}

// buildIndexes runs the strictly single-threaded index phase: every custom
// index is opened or built, then the population index is force-rebuilt. All
// writes complete here, before any worker starts reading.
func (p *Pipeline) buildIndexes(ctx context.Context, norm *variant.Normalizer) (*Stores, error) {
	stores := &Stores{}
	for _, cf := range p.cfg.CustomFiles {
		st, err := indexer.BuildCustom(ctx, cf, norm, p.cfg.Pipeline.MaxOpenFiles, p.logger)
		if err != nil {
			stores.Close(p.logger)
			return nil, err
		}
		stores.Custom = append(stores.Custom, st)
	}
	if p.cfg.Population.File != "" {
		st, err := indexer.BuildPopulation(ctx, p.cfg.Population.File, p.cfg.Pipeline.MaxOpenFiles, p.logger)
		if err != nil {
			stores.Close(p.logger)
			return nil, err
		}
		stores.Population = st
	}
	return stores, nil
}

// chain assembles the fixed-order annotator chain: calculator, custom files
// in declaration order, population frequencies last.
func (p *Pipeline) chain(stores *Stores, norm *variant.Normalizer) annotate.Chain {
	chain := annotate.Chain{annotate.NewCalculatorAnnotator(p.calc)}
	for i, st := range stores.Custom {
		chain = append(chain, annotate.NewCustomFileAnnotator(p.cfg.CustomFiles[i].ID, st, norm))
	}
	if stores.Population != nil {
		chain = append(chain, annotate.NewPopulationAnnotator(stores.Population))
	}
	return chain
}

// annotate runs the parallel phase over the input stream.
func (p *Pipeline) annotate(ctx context.Context, stores *Stores, norm *variant.Normalizer) error {
	reader, closeReader, err := p.openInput()
	if err != nil {
		return err
	}
	defer closeReader()

	writer, err := jsonl.NewWriter[variant.Variant](p.cfg.Output, false)
	if err != nil {
		return err
	}

	var taskNorm *variant.Normalizer
	if p.cfg.Normalize.Enabled {
		taskNorm = norm
	}
	factory := func() (runner.Task[variant.Variant, variant.Variant], error) {
		return annotate.NewTask(p.chain(stores, norm), taskNorm, p.logger), nil
	}

	run, err := runner.New(reader, factory, writer, runner.Config{
		Workers:       p.cfg.Pipeline.Workers,
		BatchSize:     p.cfg.Pipeline.BatchSize,
		QueueCapacity: config.QueueCapacity,
		Ordered:       p.cfg.Pipeline.Ordered,
	}, p.logger)
	if err != nil {
		writer.Close()
		return err
	}
	if err := run.Run(ctx); err != nil {
		writer.Close()
		return err
	}
	// The writer must be fully flushed and closed before reconciliation
	// appends to the same file.
	return writer.Close()
}

// openInput picks the reader matching the input format.
func (p *Pipeline) openInput() (runner.Reader[variant.Variant], func(), error) {
	if p.cfg.InputIsJSON() {
		r, err := jsonl.NewReader[variant.Variant](p.cfg.Input)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	}
	r, err := vcf.NewReader(p.cfg.Input)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}
