// Package config defines the pipeline configuration surface: worker and
// batch sizing, input/output locations, side-data files and normalization
// toggles. Values load from an optional YAML file and are overridden by CLI
// flags; validation clamps out-of-range values with a warning rather than
// failing the run.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// QueueCapacity is the fixed bound on batches queued between the reader and
// the worker pool. The producer blocks when this many batches are in flight.
const QueueCapacity = 10

// Batch size bounds accepted by the runner.
const (
	MinBatchSize = 1
	MaxBatchSize = 2000
)

// CustomFile describes one user-supplied side-data file: the VCF to index,
// the short source ID annotations are attached under, and the whitelist of
// INFO fields worth keeping.
type CustomFile struct {
	Path   string   `yaml:"path"`
	ID     string   `yaml:"id"`
	Fields []string `yaml:"fields"`
}

// PipelineConfig sizes the parallel annotation phase.
type PipelineConfig struct {
	// Workers is the number of parallel annotation workers (>= 1).
	Workers int `yaml:"workers"`
	// BatchSize is the number of variants handed to a worker at once
	// (1-2000).
	BatchSize int `yaml:"batch_size"`
	// Ordered makes output order match input order despite concurrency.
	Ordered bool `yaml:"ordered"`
	// MaxOpenFiles bounds the store's file handle cache; <= 0 leaves the
	// store default.
	MaxOpenFiles int `yaml:"max_open_files"`
}

// NormalizeConfig controls variant normalization before indexing and
// annotation.
type NormalizeConfig struct {
	// Enabled switches input normalization on. Custom file indexing always
	// normalizes so that index keys match query keys.
	Enabled bool `yaml:"enabled"`
	// DecomposeMNVs splits multi-nucleotide variants for key lookups.
	DecomposeMNVs bool `yaml:"decompose_mnvs"`
	// LeftAlign shifts indels to their leftmost position. Needs
	// ReferenceFasta.
	LeftAlign bool `yaml:"left_align"`
	// ReferenceFasta is the reference genome used for left-alignment.
	ReferenceFasta string `yaml:"reference_fasta"`
}

// PopulationConfig configures population-frequency annotation and the
// reconciliation pass.
type PopulationConfig struct {
	// File is the JSON-lines population frequencies file. Empty disables
	// population annotation.
	File string `yaml:"file"`
	// CompleteInputPopulation appends population entries never matched
	// during annotation to the output.
	CompleteInputPopulation bool `yaml:"complete_input_population"`
}

// CalculatorConfig locates the external annotation calculator service.
type CalculatorConfig struct {
	// URL of the calculator endpoint. Empty selects the no-op baseline.
	URL string `yaml:"url"`
}

// Config is the complete varannot configuration.
type Config struct {
	Input       string           `yaml:"input"`
	Output      string           `yaml:"output"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Normalize   NormalizeConfig  `yaml:"normalize"`
	CustomFiles []CustomFile     `yaml:"custom_files"`
	Population  PopulationConfig `yaml:"population"`
	Calculator  CalculatorConfig `yaml:"calculator"`
	LogLevel    string           `yaml:"log_level"`
}

// NewConfig returns the defaults: single worker, batch of one, unordered
// output, normalization with MNV decomposition on.
func NewConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:   1,
			BatchSize: 1,
		},
		Normalize: NormalizeConfig{
			Enabled:       true,
			DecomposeMNVs: true,
		},
		Population: PopulationConfig{
			CompleteInputPopulation: true,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate clamps out-of-range pipeline values, logging a warning for each,
// and rejects combinations that cannot run at all.
func (c *Config) Validate(logger *slog.Logger) error {
	if c.Pipeline.Workers < 1 {
		logger.Warn("invalid worker count, must be >= 1; reset",
			"given", c.Pipeline.Workers, "workers", 1)
		c.Pipeline.Workers = 1
	}
	if c.Pipeline.BatchSize < MinBatchSize || c.Pipeline.BatchSize > MaxBatchSize {
		logger.Warn("invalid batch size, must be within bounds; reset",
			"given", c.Pipeline.BatchSize, "min", MinBatchSize, "max", MaxBatchSize, "batch_size", 1)
		c.Pipeline.BatchSize = 1
	}
	if c.Input == "" {
		return fmt.Errorf("no input file given")
	}
	if c.Output == "" {
		return fmt.Errorf("no output file given")
	}
	if !isVariantFile(c.Input) {
		return fmt.Errorf("input %s: only .vcf(.gz) and .json(.gz) files are accepted", c.Input)
	}
	for i, cf := range c.CustomFiles {
		if !strings.HasSuffix(cf.Path, ".vcf") && !strings.HasSuffix(cf.Path, ".vcf.gz") {
			return fmt.Errorf("custom file %s: only VCF files are accepted", cf.Path)
		}
		if cf.ID == "" {
			return fmt.Errorf("custom file %s: missing source id", cf.Path)
		}
		if len(cf.Fields) == 0 {
			return fmt.Errorf("custom file %s: missing field whitelist", cf.Path)
		}
		if _, err := os.Stat(cf.Path); err != nil {
			return fmt.Errorf("custom file %d: %w", i, err)
		}
	}
	if c.Population.File != "" {
		if !strings.HasSuffix(c.Population.File, ".json") && !strings.HasSuffix(c.Population.File, ".json.gz") {
			return fmt.Errorf("population file %s: must be a JSON-lines variant file", c.Population.File)
		}
	}
	if c.Normalize.LeftAlign && c.Normalize.ReferenceFasta == "" {
		return fmt.Errorf("left-alignment enabled but no reference fasta given")
	}
	return nil
}

// InputIsJSON reports whether the input stream is JSON-lines rather than VCF.
func (c *Config) InputIsJSON() bool {
	return strings.HasSuffix(c.Input, ".json") || strings.HasSuffix(c.Input, ".json.gz")
}

func isVariantFile(path string) bool {
	for _, suffix := range []string{".vcf", ".vcf.gz", ".json", ".json.gz"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
