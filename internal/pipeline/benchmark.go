package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/varannot/internal/benchmark"
	"github.com/Aman-CERP/varannot/internal/config"
	"github.com/Aman-CERP/varannot/internal/jsonl"
	"github.com/Aman-CERP/varannot/internal/runner"
	"github.com/Aman-CERP/varannot/internal/variant"
)

// RunBenchmark executes the comparison mode: every annotation file in the
// input directory is re-annotated through the calculator and diffed against
// the annotations it carries. Diffs stream to the output as JSON lines.
func (p *Pipeline) RunBenchmark(ctx context.Context) error {
	entries, err := os.ReadDir(p.cfg.Input)
	if err != nil {
		return fmt.Errorf("reading benchmark directory %s: %w", p.cfg.Input, err)
	}

	writer, err := jsonl.NewWriter[benchmark.Comparison](p.cfg.Output, false)
	if err != nil {
		return err
	}
	defer writer.Close()
	counted := &countingWriter{inner: writer}

	factory := func() (runner.Task[variant.Variant, benchmark.Comparison], error) {
		return benchmark.NewTask(p.calc), nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz")) {
			continue
		}
		path := filepath.Join(p.cfg.Input, name)
		p.logger.Info("processing file", "file", path)
		reader, err := jsonl.NewReader[variant.Variant](path)
		if err != nil {
			return err
		}
		run, err := runner.New(reader, factory, counted, runner.Config{
			Workers:       p.cfg.Pipeline.Workers,
			BatchSize:     p.cfg.Pipeline.BatchSize,
			QueueCapacity: config.QueueCapacity,
		}, p.logger)
		if err != nil {
			reader.Close()
			return err
		}
		err = run.Run(ctx)
		reader.Close()
		if err != nil {
			return err
		}
	}

	p.logger.Info("benchmark finished",
		"variants", counted.total, "identical", counted.identical, "different", counted.total-counted.identical)
	return nil
}

// countingWriter tallies comparison outcomes on their way to the output.
type countingWriter struct {
	inner     runner.Writer[benchmark.Comparison]
	total     int
	identical int
}

func (w *countingWriter) Write(items []benchmark.Comparison) error {
	for _, c := range items {
		w.total++
		if c.Identical() {
			w.identical++
		}
	}
	return w.inner.Write(items)
}
