// Package benchmark implements the annotation comparison mode: variants
// carrying an externally pre-computed annotation are re-annotated by the
// local calculator and the two annotations are diffed structurally, field
// by field.
package benchmark

import (
	"context"
	"fmt"
	"sort"

	"github.com/Aman-CERP/varannot/internal/annotate"
	"github.com/Aman-CERP/varannot/internal/variant"
)

// FieldChange records one field present on both sides with different values.
type FieldChange struct {
	Field string `json:"field"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Comparison is the structural diff between the reference (left) and locally
// calculated (right) annotation of one variant.
type Comparison struct {
	Variant   string        `json:"variant"`
	LeftOnly  []string      `json:"leftOnly,omitempty"`
	RightOnly []string      `json:"rightOnly,omitempty"`
	Changed   []FieldChange `json:"changed,omitempty"`
}

// Identical reports whether both sides agreed on every field.
func (c Comparison) Identical() bool {
	return len(c.LeftOnly) == 0 && len(c.RightOnly) == 0 && len(c.Changed) == 0
}

// Task compares one batch of pre-annotated variants against the local
// calculator. Instances are stateless and interchangeable; the runner
// creates one per worker.
type Task struct {
	calc annotate.Calculator
}

// NewTask builds a per-worker comparison task.
func NewTask(calc annotate.Calculator) *Task {
	return &Task{calc: calc}
}

// Apply implements the runner task contract: one comparison per input
// variant, in batch order.
func (t *Task) Apply(ctx context.Context, batch []variant.Variant) ([]Comparison, error) {
	out := make([]Comparison, 0, len(batch))
	for _, v := range batch {
		reference := v.Annotation
		local, err := t.calc.Calculate(ctx, variant.Variant{
			Chromosome: v.Chromosome,
			Start:      v.Start,
			Reference:  v.Reference,
			Alternate:  v.Alternate,
			ID:         v.ID,
			Type:       v.Type,
		})
		if err != nil {
			return nil, fmt.Errorf("calculating %s: %w", v.String(), err)
		}
		out = append(out, Compare(v.Key(), reference, &local))
	}
	return out, nil
}

// Compare diffs two annotations field-wise, reporting fields present only on
// one side and fields whose values differ.
func Compare(key string, left, right *variant.Annotation) Comparison {
	lf := flatten(left)
	rf := flatten(right)
	c := Comparison{Variant: key}
	for field, lv := range lf {
		rv, ok := rf[field]
		switch {
		case !ok:
			c.LeftOnly = append(c.LeftOnly, field)
		case lv != rv:
			c.Changed = append(c.Changed, FieldChange{Field: field, Left: lv, Right: rv})
		}
	}
	for field := range rf {
		if _, ok := lf[field]; !ok {
			c.RightOnly = append(c.RightOnly, field)
		}
	}
	sort.Strings(c.LeftOnly)
	sort.Strings(c.RightOnly)
	sort.Slice(c.Changed, func(i, j int) bool { return c.Changed[i].Field < c.Changed[j].Field })
	return c
}

// flatten renders an annotation as a flat field→value map for diffing.
func flatten(a *variant.Annotation) map[string]string {
	out := map[string]string{}
	if a == nil {
		return out
	}
	if a.ID != "" {
		out["id"] = a.ID
	}
	if a.DisplayConsequenceType != "" {
		out["displayConsequenceType"] = a.DisplayConsequenceType
	}
	for i, ct := range a.ConsequenceTypes {
		out[fmt.Sprintf("consequenceTypes[%d]", i)] = ct
	}
	for _, pf := range a.PopulationFrequencies {
		prefix := fmt.Sprintf("populationFrequencies[%s:%s]", pf.Study, pf.Population)
		out[prefix+".ref"] = fmt.Sprintf("%g", pf.RefAlleleFreq)
		out[prefix+".alt"] = fmt.Sprintf("%g", pf.AltAlleleFreq)
	}
	return out
}
