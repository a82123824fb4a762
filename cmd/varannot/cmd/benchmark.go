package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/varannot/internal/config"
	"github.com/Aman-CERP/varannot/internal/pipeline"
)

func newBenchmarkCmd() *cobra.Command {
	var (
		input         string
		output        string
		workers       int
		batchSize     int
		calculatorURL string
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare pre-computed annotations against the local calculator",
		Long: `Benchmark reads directories of annotation JSON-lines files, re-annotates
every variant through the configured calculator and writes a structural diff
(fields only on one side, fields with differing values) per variant.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			cfg.Input = input
			cfg.Output = output
			cfg.Pipeline.Workers = workers
			cfg.Pipeline.BatchSize = batchSize
			cfg.Calculator.URL = calculatorURL
			cfg.Normalize.Enabled = false

			if cfg.Pipeline.Workers < 1 {
				logger.Warn("invalid worker count, must be >= 1; reset", "given", cfg.Pipeline.Workers, "workers", 1)
				cfg.Pipeline.Workers = 1
			}
			if cfg.Pipeline.BatchSize < config.MinBatchSize || cfg.Pipeline.BatchSize > config.MaxBatchSize {
				logger.Warn("invalid batch size; reset", "given", cfg.Pipeline.BatchSize, "batch_size", 1)
				cfg.Pipeline.BatchSize = 1
			}

			return pipeline.New(cfg, nil, logger).RunBenchmark(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Directory of annotation JSON-lines files")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file for comparison diffs (JSON lines)")
	cmd.Flags().IntVarP(&workers, "num-threads", "t", 1, "Number of comparison workers")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "Variants per worker batch (1-2000)")
	cmd.Flags().StringVar(&calculatorURL, "annotator-url", "", "Annotation calculator service endpoint")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
