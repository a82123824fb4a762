package annotate

import (
	"context"
	"encoding/json"

	"github.com/Aman-CERP/varannot/internal/errors"
	"github.com/Aman-CERP/varannot/internal/kvstore"
	"github.com/Aman-CERP/varannot/internal/variant"
)

// PopulationAnnotator merges population frequencies from the transient
// population index into matched variants. On a match it does two things that
// reconciliation depends on: the output annotation is marked visited with a
// non-nil (possibly empty) attribute set, and the stored record is written
// back carrying the same marker so the finisher can tell matched entries
// from never-matched ones. It is always the last annotator in the chain.
type PopulationAnnotator struct {
	store *kvstore.Store
}

// NewPopulationAnnotator wraps the transient population index.
func NewPopulationAnnotator(store *kvstore.Store) *PopulationAnnotator {
	return &PopulationAnnotator{store: store}
}

// Name implements Annotator.
func (a *PopulationAnnotator) Name() string { return "population-frequencies" }

// Annotate implements Annotator. Store I/O failures are fatal.
func (a *PopulationAnnotator) Annotate(ctx context.Context, v *variant.Variant) error {
	key := v.Key()
	raw, ok, err := a.store.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var rec variant.Variant
	if err := json.Unmarshal(raw, &rec); err != nil {
		return errors.AnnotateError("decoding population entry "+key, err)
	}

	ann := v.EnsureAnnotation()
	if rec.Annotation != nil {
		ann.PopulationFrequencies = append(ann.PopulationFrequencies, rec.Annotation.PopulationFrequencies...)
	}
	ann.MarkVisited()

	// Persist the visitation marker. Index writes finished before the
	// parallel phase started, so the only writers here are population
	// annotators and the store serializes those puts itself.
	stored := rec.EnsureAnnotation()
	if !stored.Visited() {
		stored.MarkVisited()
		updated, err := json.Marshal(rec)
		if err != nil {
			return errors.AnnotateError("encoding population entry "+key, err)
		}
		if err := a.store.Put(key, updated); err != nil {
			return err
		}
	}
	return nil
}
