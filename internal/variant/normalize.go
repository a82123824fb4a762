package variant

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SequenceProvider supplies reference genome sequence for left-alignment.
// Start and end are 1-based inclusive positions.
type SequenceProvider interface {
	Sequence(ctx context.Context, chromosome string, start, end int) (string, error)
}

// Window size fetched from the sequence provider per left-alignment probe.
// Cached windows keep repeated shifts over the same region cheap.
const seqWindowSize = 100

// DefaultSequenceCacheSize is the number of reference windows kept in the
// normalizer's LRU cache.
const DefaultSequenceCacheSize = 1024

// NormalizerConfig controls which normalization steps run.
type NormalizerConfig struct {
	// DecomposeMNVs splits multi-nucleotide variants into per-base SNVs.
	DecomposeMNVs bool
	// LeftAlign shifts indels to their leftmost equivalent position.
	// Requires a SequenceProvider.
	LeftAlign bool
}

// Normalizer rewrites variants into the canonical representation used for
// index keys: alleles trimmed of shared context, indels left-aligned, MNVs
// optionally decomposed. Indexers and annotators must share one
// configuration so that index keys agree with later query keys.
type Normalizer struct {
	cfg   NormalizerConfig
	seq   SequenceProvider
	cache *lru.Cache[string, string]
}

// NewNormalizer creates a normalizer. provider may be nil when cfg.LeftAlign
// is false.
func NewNormalizer(cfg NormalizerConfig, provider SequenceProvider) (*Normalizer, error) {
	if cfg.LeftAlign && provider == nil {
		return nil, fmt.Errorf("left-alignment enabled but no sequence provider given")
	}
	cache, err := lru.New[string, string](DefaultSequenceCacheSize)
	if err != nil {
		return nil, err
	}
	return &Normalizer{cfg: cfg, seq: provider, cache: cache}, nil
}

// Canonical normalizes a single-allele variant to its canonical form:
// shared allele context trimmed and, when enabled, indels left-aligned.
// MNVs are left intact; use Decompose where component keys are needed.
func (n *Normalizer) Canonical(ctx context.Context, v Variant) (Variant, error) {
	if strings.Contains(v.Alternate, ",") {
		return Variant{}, fmt.Errorf("multi-allelic variant %s must be split before normalization", v.String())
	}
	out := trimAlleles(v)
	if n.cfg.LeftAlign && (out.Reference == "" || out.Alternate == "") && out.Reference != out.Alternate {
		aligned, err := n.leftAlign(ctx, out)
		if err != nil {
			return Variant{}, err
		}
		out = aligned
	}
	out.Type = out.InferType()
	return out, nil
}

// Decompose normalizes a variant and splits MNVs into their component SNVs
// when decomposition is enabled. The result is the set of simple variants
// whose keys are written by the indexers and probed by the annotators.
func (n *Normalizer) Decompose(ctx context.Context, v Variant) ([]Variant, error) {
	canonical, err := n.Canonical(ctx, v)
	if err != nil {
		return nil, err
	}
	if !n.cfg.DecomposeMNVs || canonical.InferType() != TypeMNV {
		return []Variant{canonical}, nil
	}
	var out []Variant
	for i := 0; i < len(canonical.Reference); i++ {
		if canonical.Reference[i] == canonical.Alternate[i] {
			continue
		}
		s := Variant{
			Chromosome: canonical.Chromosome,
			Start:      canonical.Start + i,
			Reference:  string(canonical.Reference[i]),
			Alternate:  string(canonical.Alternate[i]),
			ID:         canonical.ID,
			Info:       canonical.Info,
		}
		s.Type = TypeSNV
		out = append(out, s)
	}
	if len(out) == 0 {
		// Reference-equal MNV, keep the canonical form.
		out = append(out, canonical)
	}
	return out, nil
}

// trimAlleles removes allele context shared between reference and alternate:
// common suffix first, then common prefix, advancing the start position for
// every leading base removed.
func trimAlleles(v Variant) Variant {
	ref, alt := v.Reference, v.Alternate
	for len(ref) > 0 && len(alt) > 0 && ref[len(ref)-1] == alt[len(alt)-1] {
		ref = ref[:len(ref)-1]
		alt = alt[:len(alt)-1]
	}
	start := v.Start
	for len(ref) > 0 && len(alt) > 0 && ref[0] == alt[0] {
		ref = ref[1:]
		alt = alt[1:]
		start++
	}
	v.Reference, v.Alternate, v.Start = ref, alt, start
	return v
}

// leftAlign shifts a trimmed insertion or deletion to its leftmost
// equivalent position: while the base immediately before the variant equals
// the last base of the inserted/deleted sequence, the allele rotates right
// and the variant moves one base left.
func (n *Normalizer) leftAlign(ctx context.Context, v Variant) (Variant, error) {
	allele := v.Reference
	if allele == "" {
		allele = v.Alternate
	}
	if allele == "" {
		return v, nil
	}
	for v.Start > 1 {
		prev, err := n.baseAt(ctx, v.Chromosome, v.Start-1)
		if err != nil {
			return Variant{}, err
		}
		if prev == 0 || prev != allele[len(allele)-1] {
			break
		}
		allele = string(prev) + allele[:len(allele)-1]
		v.Start--
	}
	if v.Reference != "" {
		v.Reference = allele
	} else {
		v.Alternate = allele
	}
	return v, nil
}

// baseAt returns the reference base at a 1-based position, fetching and
// caching fixed windows from the provider. A zero byte means the position is
// outside the available sequence.
func (n *Normalizer) baseAt(ctx context.Context, chromosome string, pos int) (byte, error) {
	winStart := ((pos - 1) / seqWindowSize) * seqWindowSize
	key := fmt.Sprintf("%s:%d", chromosome, winStart)
	win, ok := n.cache.Get(key)
	if !ok {
		var err error
		win, err = n.seq.Sequence(ctx, chromosome, winStart+1, winStart+seqWindowSize)
		if err != nil {
			return 0, fmt.Errorf("fetching reference %s:%d-%d: %w", chromosome, winStart+1, winStart+seqWindowSize, err)
		}
		n.cache.Add(key, win)
	}
	off := pos - 1 - winStart
	if off < 0 || off >= len(win) {
		return 0, nil
	}
	return win[off], nil
}
