//go:build ignore

// Generates a synthetic variant corpus for load testing: a VCF input file,
// a custom side VCF and a population frequencies JSON-lines file sharing a
// configurable fraction of variants with the input.
//
// Usage: go run scripts/generate-test-data.go -variants 100000 -output testdata/load
package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numVariants = flag.Int("variants", 100000, "Number of input variants")
	overlap     = flag.Float64("overlap", 0.5, "Fraction of input variants present in the side files")
	outputDir   = flag.String("output", "testdata/load", "Output directory")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var bases = []string{"A", "C", "G", "T"}

type site struct {
	chrom    string
	pos      int
	ref, alt string
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fatal(err)
	}

	sites := make([]site, *numVariants)
	for i := range sites {
		ref := bases[rng.Intn(4)]
		alt := bases[rng.Intn(4)]
		for alt == ref {
			alt = bases[rng.Intn(4)]
		}
		sites[i] = site{
			chrom: fmt.Sprintf("%d", 1+rng.Intn(22)),
			pos:   1 + rng.Intn(200_000_000),
			ref:   ref,
			alt:   alt,
		}
	}

	if err := writeInputVCF(filepath.Join(*outputDir, "input.vcf.gz"), sites); err != nil {
		fatal(err)
	}
	if err := writeSideVCF(filepath.Join(*outputDir, "side.vcf"), sites, rng); err != nil {
		fatal(err)
	}
	if err := writePopulation(filepath.Join(*outputDir, "population.json.gz"), sites, rng); err != nil {
		fatal(err)
	}
	fmt.Printf("wrote %d variants under %s\n", *numVariants, *outputDir)
}

func writeInputVCF(path string, sites []site) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()

	fmt.Fprintln(gz, "##fileformat=VCFv4.2")
	fmt.Fprintln(gz, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")
	for i, s := range sites {
		fmt.Fprintf(gz, "%s\t%d\trs%d\t%s\t%s\t.\t.\t.\n", s.chrom, s.pos, i, s.ref, s.alt)
	}
	return nil
}

func writeSideVCF(path string, sites []site, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(f, "##fileformat=VCFv4.2")
	fmt.Fprintln(f, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")
	for _, s := range sites {
		if rng.Float64() > *overlap {
			continue
		}
		fmt.Fprintf(f, "%s\t%d\t.\t%s\t%s\t.\t.\tDP=%d;AF=%.4f\n",
			s.chrom, s.pos, s.ref, s.alt, 1+rng.Intn(500), rng.Float64())
	}
	return nil
}

func writePopulation(path string, sites []site, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()

	type popFreq struct {
		Study         string  `json:"study"`
		Population    string  `json:"population"`
		RefAlleleFreq float64 `json:"refAlleleFreq"`
		AltAlleleFreq float64 `json:"altAlleleFreq"`
	}
	type record struct {
		Chromosome string `json:"chromosome"`
		Start      int    `json:"start"`
		Reference  string `json:"reference"`
		Alternate  string `json:"alternate"`
		Annotation struct {
			PopulationFrequencies []popFreq `json:"populationFrequencies"`
		} `json:"annotation"`
	}

	enc := json.NewEncoder(gz)
	for _, s := range sites {
		if rng.Float64() > *overlap {
			continue
		}
		rec := record{Chromosome: s.chrom, Start: s.pos, Reference: s.ref, Alternate: s.alt}
		af := rng.Float64() / 2
		rec.Annotation.PopulationFrequencies = []popFreq{
			{Study: "1kG_phase3", Population: "ALL", RefAlleleFreq: 1 - af, AltAlleleFreq: af},
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
