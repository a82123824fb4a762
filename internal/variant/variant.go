// Package variant defines the genomic variant data model shared across the
// pipeline: variant identity, annotation payloads and the normalization
// machinery that keeps index keys consistent with query keys.
package variant

import (
	"fmt"
	"strings"
)

// Type classifies a variant by the shape of its alleles.
type Type string

const (
	TypeSNV       Type = "SNV"
	TypeMNV       Type = "MNV"
	TypeInsertion Type = "INSERTION"
	TypeDeletion  Type = "DELETION"
	TypeIndel     Type = "INDEL"
)

// Variant is one genomic variant. Chromosome, Start, Reference and Alternate
// form its identity; everything else is payload.
type Variant struct {
	Chromosome string      `json:"chromosome"`
	Start      int         `json:"start"`
	Reference  string      `json:"reference"`
	Alternate  string      `json:"alternate"`
	ID         string      `json:"id,omitempty"`
	Type       Type        `json:"type,omitempty"`
	Info       InfoMap     `json:"info,omitempty"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// InfoMap carries the attribute fields parsed from a source record
// (e.g. the INFO column of a VCF line).
type InfoMap map[string]string

// Key returns the canonical string identity used as the index lookup key.
// It must be stable across runs: index entries written by the indexers and
// lookups performed by the annotators both go through this function.
func (v Variant) Key() string {
	return fmt.Sprintf("%s_%d_%s_%s", v.Chromosome, v.Start, v.Reference, v.Alternate)
}

// InferType derives the variant type from its alleles.
func (v Variant) InferType() Type {
	switch {
	case len(v.Reference) == 1 && len(v.Alternate) == 1:
		return TypeSNV
	case len(v.Reference) == len(v.Alternate):
		return TypeMNV
	case len(v.Reference) == 0:
		return TypeInsertion
	case len(v.Alternate) == 0:
		return TypeDeletion
	default:
		return TypeIndel
	}
}

// String renders the variant in the usual chr:start:ref:alt notation.
func (v Variant) String() string {
	return fmt.Sprintf("%s:%d:%s:%s", v.Chromosome, v.Start, v.Reference, v.Alternate)
}

// AdditionalAttribute is one named group of extra attributes attached to an
// annotation by a side-data source.
type AdditionalAttribute struct {
	Attribute map[string]string `json:"attribute,omitempty"`
}

// AttributeSet maps a source ID to the attributes it contributed.
type AttributeSet map[string]AdditionalAttribute

// PopulationFrequency is one allele frequency observation from a population
// study.
type PopulationFrequency struct {
	Study           string  `json:"study,omitempty"`
	Population      string  `json:"population,omitempty"`
	RefAllele       string  `json:"refAllele,omitempty"`
	AltAllele       string  `json:"altAllele,omitempty"`
	RefAlleleFreq   float64 `json:"refAlleleFreq,omitempty"`
	AltAlleleFreq   float64 `json:"altAlleleFreq,omitempty"`
	HetGenotypeFreq float64 `json:"hetGenotypeFreq,omitempty"`
	HomGenotypeFreq float64 `json:"homGenotypeFreq,omitempty"`
}

// FailureNote records a recovered per-annotator failure so the variant can
// still be emitted instead of silently dropped.
type FailureNote struct {
	Annotator string `json:"annotator"`
	Message   string `json:"message"`
}

// Annotation is the result accumulated additively across the annotator
// chain. The AdditionalAttributes pointer doubles as the visitation marker
// for population reconciliation: nil means "never matched", non-nil (even
// pointing at an empty set) means "matched". Callers must not test the
// pointer directly; use Visited, MarkVisited and PutAdditional.
type Annotation struct {
	ID                     string                `json:"id,omitempty"`
	DisplayConsequenceType string                `json:"displayConsequenceType,omitempty"`
	ConsequenceTypes       []string              `json:"consequenceTypes,omitempty"`
	PopulationFrequencies  []PopulationFrequency `json:"populationFrequencies,omitempty"`
	AdditionalAttributes   *AttributeSet         `json:"additionalAttributes,omitempty"`
	Failures               []FailureNote         `json:"annotatorFailures,omitempty"`
}

// Visited reports whether this annotation was matched by a side-data
// annotator. The nil receiver and the zero value are both unvisited.
func (a *Annotation) Visited() bool {
	return a != nil && a.AdditionalAttributes != nil
}

// MarkVisited flips the annotation to the visited state. The attribute set
// becomes present even if no attributes are ever added; reconciliation
// depends on exactly this contract.
func (a *Annotation) MarkVisited() {
	if a.AdditionalAttributes == nil {
		set := AttributeSet{}
		a.AdditionalAttributes = &set
	}
}

// PutAdditional attaches attributes contributed by the named source,
// marking the annotation visited as a side effect.
func (a *Annotation) PutAdditional(source string, attrs map[string]string) {
	a.MarkVisited()
	(*a.AdditionalAttributes)[source] = AdditionalAttribute{Attribute: attrs}
}

// AddFailure appends a recovered per-annotator failure note.
func (a *Annotation) AddFailure(annotator string, err error) {
	a.Failures = append(a.Failures, FailureNote{Annotator: annotator, Message: err.Error()})
}

// EnsureAnnotation returns the variant's annotation, allocating it first if
// the variant has none yet.
func (v *Variant) EnsureAnnotation() *Annotation {
	if v.Annotation == nil {
		v.Annotation = &Annotation{}
	}
	return v.Annotation
}

// ParseID parses a chr:start:ref:alt string into a Variant. Empty ref/alt
// segments are accepted (normalized insertion/deletion notation).
func ParseID(s string) (Variant, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Variant{}, fmt.Errorf("malformed variant %q: want chr:start:ref:alt", s)
	}
	var start int
	if _, err := fmt.Sscanf(parts[1], "%d", &start); err != nil {
		return Variant{}, fmt.Errorf("malformed variant %q: bad start position: %w", s, err)
	}
	v := Variant{Chromosome: parts[0], Start: start, Reference: parts[2], Alternate: parts[3]}
	v.Type = v.InferType()
	return v, nil
}
