package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func validConfig() *Config {
	cfg := NewConfig()
	cfg.Input = "in.vcf"
	cfg.Output = "out.json"
	return cfg
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, 1, cfg.Pipeline.BatchSize)
	assert.False(t, cfg.Pipeline.Ordered)
	assert.True(t, cfg.Normalize.Enabled)
	assert.True(t, cfg.Normalize.DecomposeMNVs)
	assert.False(t, cfg.Normalize.LeftAlign)
	assert.True(t, cfg.Population.CompleteInputPopulation)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
input: variants.vcf.gz
output: annotated.json.gz
pipeline:
  workers: 4
  batch_size: 200
  ordered: true
custom_files:
  - path: clinvar.vcf.gz
    id: clinvar
    fields: [CLNSIG, CLNDN]
population:
  file: pops.json.gz
  complete_input_population: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "variants.vcf.gz", cfg.Input)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 200, cfg.Pipeline.BatchSize)
	assert.True(t, cfg.Pipeline.Ordered)
	require.Len(t, cfg.CustomFiles, 1)
	assert.Equal(t, "clinvar", cfg.CustomFiles[0].ID)
	assert.Equal(t, []string{"CLNSIG", "CLNDN"}, cfg.CustomFiles[0].Fields)
	assert.False(t, cfg.Population.CompleteInputPopulation)
	// Defaults survive for sections the file omits.
	assert.True(t, cfg.Normalize.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("input: [unclosed"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate_ClampsWorkers(t *testing.T) {
	tests := []struct {
		name  string
		given int
		want  int
	}{
		{"zero reset to one", 0, 1},
		{"negative reset to one", -5, 1},
		{"valid untouched", 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Pipeline.Workers = tt.given

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			require.NoError(t, cfg.Validate(logger))
			assert.Equal(t, tt.want, cfg.Pipeline.Workers)
			if tt.given != tt.want {
				assert.Contains(t, buf.String(), "invalid worker count")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestValidate_ClampsBatchSize(t *testing.T) {
	tests := []struct {
		name  string
		given int
		want  int
	}{
		{"below minimum", 0, 1},
		{"above maximum", MaxBatchSize + 1, 1},
		{"at minimum", MinBatchSize, MinBatchSize},
		{"at maximum", MaxBatchSize, MaxBatchSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Pipeline.BatchSize = tt.given

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			require.NoError(t, cfg.Validate(logger))
			assert.Equal(t, tt.want, cfg.Pipeline.BatchSize)
			if tt.given != tt.want {
				assert.Contains(t, buf.String(), "invalid batch size")
			}
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "side.vcf")
	require.NoError(t, os.WriteFile(existing, []byte("##fileformat=VCFv4.2\n"), 0o644))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no input", func(c *Config) { c.Input = "" }},
		{"no output", func(c *Config) { c.Output = "" }},
		{"unsupported input", func(c *Config) { c.Input = "in.bcf" }},
		{"custom file not vcf", func(c *Config) {
			c.CustomFiles = []CustomFile{{Path: "side.tsv", ID: "x", Fields: []string{"F"}}}
		}},
		{"custom file no id", func(c *Config) {
			c.CustomFiles = []CustomFile{{Path: existing, Fields: []string{"F"}}}
		}},
		{"custom file no fields", func(c *Config) {
			c.CustomFiles = []CustomFile{{Path: existing, ID: "x"}}
		}},
		{"custom file missing on disk", func(c *Config) {
			c.CustomFiles = []CustomFile{{Path: "absent.vcf", ID: "x", Fields: []string{"F"}}}
		}},
		{"population not jsonl", func(c *Config) { c.Population.File = "pops.vcf" }},
		{"left align without fasta", func(c *Config) { c.Normalize.LeftAlign = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate(discard()))
		})
	}
}

func TestValidate_AcceptsCustomFiles(t *testing.T) {
	dir := t.TempDir()
	side := filepath.Join(dir, "side.vcf.gz")
	require.NoError(t, os.WriteFile(side, []byte{0x1f, 0x8b}, 0o644))

	cfg := validConfig()
	cfg.CustomFiles = []CustomFile{{Path: side, ID: "cosmic", Fields: []string{"CNT"}}}
	assert.NoError(t, cfg.Validate(discard()))
}

func TestInputIsJSON(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"in.vcf", false},
		{"in.vcf.gz", false},
		{"in.json", true},
		{"in.json.gz", true},
	}
	for _, tt := range tests {
		cfg := &Config{Input: tt.input}
		assert.Equal(t, tt.want, cfg.InputIsJSON(), tt.input)
	}
}
