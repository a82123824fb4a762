package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/varannot/internal/config"
	"github.com/Aman-CERP/varannot/internal/pipeline"
	"github.com/Aman-CERP/varannot/internal/preflight"
	"github.com/Aman-CERP/varannot/internal/profiling"
)

// annotateFlags collects the flag values the annotate command layers over
// the config file.
type annotateFlags struct {
	configFile       string
	input            string
	output           string
	workers          int
	batchSize        int
	ordered          bool
	maxOpenFiles     int
	calculatorURL    string
	customFiles      []string
	customFileIDs    []string
	customFileFields []string
	populationFile   string
	completeInputPop bool
	skipNormalize    bool
	skipDecompose    bool
	leftAlign        bool
	referenceFasta   string
	skipPreflight    bool
	cpuProfile       string
	memProfile       string
}

func newAnnotateCmd() *cobra.Command {
	var flags annotateFlags

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate a variant file",
		Long: `Annotate streams variants from a VCF or JSON-lines file through the
annotator chain and writes annotated variants as JSON lines.

Custom side files are indexed into durable <file>.idx stores, reused across
runs when present. A population frequencies file is indexed into a transient
store that is rebuilt every run and removed afterwards; entries it contains
that never match an input variant are appended to the output at the end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, &flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(logger); err != nil {
				return err
			}
			if !flags.skipPreflight {
				if err := preflight.Run(cfg, logger); err != nil {
					return err
				}
			}
			if flags.cpuProfile != "" {
				stop, err := profiling.NewProfiler().StartCPU(flags.cpuProfile)
				if err != nil {
					return err
				}
				defer stop()
			}
			if err := pipeline.New(cfg, nil, logger).Run(cmd.Context()); err != nil {
				return err
			}
			if flags.memProfile != "" {
				return profiling.NewProfiler().WriteHeap(flags.memProfile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Input variant file (.vcf, .vcf.gz, .json, .json.gz)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file for annotated variants (JSON lines)")
	cmd.Flags().IntVarP(&flags.workers, "num-threads", "t", 1, "Number of annotation workers")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 1, "Variants per worker batch (1-2000)")
	cmd.Flags().BoolVar(&flags.ordered, "ordered", false, "Preserve input order in the output")
	cmd.Flags().IntVar(&flags.maxOpenFiles, "max-open-files", 0, "Max open files for index stores (0 = store default)")
	cmd.Flags().StringVar(&flags.calculatorURL, "annotator-url", "", "Annotation calculator service endpoint")
	cmd.Flags().StringSliceVar(&flags.customFiles, "custom-file", nil, "Custom annotation VCF file (repeatable)")
	cmd.Flags().StringSliceVar(&flags.customFileIDs, "custom-file-ids", nil, "One short id per custom file")
	cmd.Flags().StringSliceVar(&flags.customFileFields, "custom-file-fields", nil, "Colon-separated INFO field whitelist per custom file")
	cmd.Flags().StringVar(&flags.populationFile, "population-frequencies", "", "Population frequencies JSON-lines file")
	cmd.Flags().BoolVar(&flags.completeInputPop, "complete-input-population", true, "Append unmatched population entries to the output")
	cmd.Flags().BoolVar(&flags.skipNormalize, "skip-normalize", false, "Skip input variant normalization")
	cmd.Flags().BoolVar(&flags.skipDecompose, "skip-decompose", false, "Skip MNV decomposition")
	cmd.Flags().BoolVar(&flags.leftAlign, "left-align", false, "Left-align indels against the reference genome")
	cmd.Flags().StringVar(&flags.referenceFasta, "reference-fasta", "", "Reference genome FASTA (required for --left-align)")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip disk space and file limit checks")
	cmd.Flags().StringVar(&flags.cpuProfile, "cpu-profile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&flags.memProfile, "mem-profile", "", "Write a heap profile to this file after the run")
	_ = cmd.Flags().MarkHidden("cpu-profile")
	_ = cmd.Flags().MarkHidden("mem-profile")

	return cmd
}

// buildConfig merges the config file (when given) with flag overrides.
// Flags changed on the command line always win.
func buildConfig(cmd *cobra.Command, flags *annotateFlags) (*config.Config, error) {
	cfg := config.NewConfig()
	if flags.configFile != "" {
		var err error
		cfg, err = config.Load(flags.configFile)
		if err != nil {
			return nil, err
		}
	}

	if flags.input != "" {
		cfg.Input = flags.input
	}
	if flags.output != "" {
		cfg.Output = flags.output
	}
	if cmd.Flags().Changed("num-threads") {
		cfg.Pipeline.Workers = flags.workers
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Pipeline.BatchSize = flags.batchSize
	}
	if cmd.Flags().Changed("ordered") {
		cfg.Pipeline.Ordered = flags.ordered
	}
	if cmd.Flags().Changed("max-open-files") {
		cfg.Pipeline.MaxOpenFiles = flags.maxOpenFiles
	}
	if flags.calculatorURL != "" {
		cfg.Calculator.URL = flags.calculatorURL
	}
	if flags.populationFile != "" {
		cfg.Population.File = flags.populationFile
	}
	if cmd.Flags().Changed("complete-input-population") {
		cfg.Population.CompleteInputPopulation = flags.completeInputPop
	}
	if flags.skipNormalize {
		cfg.Normalize.Enabled = false
	}
	if flags.skipDecompose {
		cfg.Normalize.DecomposeMNVs = false
	}
	if flags.leftAlign {
		cfg.Normalize.LeftAlign = true
	}
	if flags.referenceFasta != "" {
		cfg.Normalize.ReferenceFasta = flags.referenceFasta
	}

	if len(flags.customFiles) > 0 {
		files, err := parseCustomFiles(flags.customFiles, flags.customFileIDs, flags.customFileFields)
		if err != nil {
			return nil, err
		}
		cfg.CustomFiles = files
	}
	return cfg, nil
}

// parseCustomFiles zips the three parallel custom-file flag lists into
// config entries. Field whitelists use colons between fields so that commas
// can separate files.
func parseCustomFiles(paths, ids, fields []string) ([]config.CustomFile, error) {
	if len(ids) != len(paths) {
		return nil, fmt.Errorf("got %d custom files but %d ids; provide one short id per custom file", len(paths), len(ids))
	}
	if len(fields) != len(paths) {
		return nil, fmt.Errorf("got %d custom files but %d field lists; provide one colon-separated field list per custom file", len(paths), len(fields))
	}
	out := make([]config.CustomFile, len(paths))
	for i := range paths {
		out[i] = config.CustomFile{
			Path:   paths[i],
			ID:     ids[i],
			Fields: strings.Split(fields[i], ":"),
		}
	}
	return out, nil
}
