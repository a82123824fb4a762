package annotate

import (
	"context"
	"encoding/json"

	"github.com/Aman-CERP/varannot/internal/errors"
	"github.com/Aman-CERP/varannot/internal/kvstore"
	"github.com/Aman-CERP/varannot/internal/variant"
)

// CustomFileAnnotator looks a variant up in the durable index built from one
// user side file and attaches the stored field map under the file's source
// ID. Lookups decompose the query variant exactly the way the indexer
// decomposed records, so both sides probe the same key space.
type CustomFileAnnotator struct {
	id    string
	store *kvstore.Store
	norm  *variant.Normalizer
}

// NewCustomFileAnnotator wraps one custom index. norm must be configured
// identically to the normalizer the index was built with.
func NewCustomFileAnnotator(id string, store *kvstore.Store, norm *variant.Normalizer) *CustomFileAnnotator {
	return &CustomFileAnnotator{id: id, store: store, norm: norm}
}

// Name implements Annotator.
func (a *CustomFileAnnotator) Name() string { return "custom:" + a.id }

// Annotate implements Annotator. A store I/O failure is fatal; a missing key
// simply contributes nothing.
func (a *CustomFileAnnotator) Annotate(ctx context.Context, v *variant.Variant) error {
	components, err := a.norm.Decompose(ctx, *v)
	if err != nil {
		return errors.AnnotateError("decomposing "+v.String(), err)
	}
	var attrs map[string]string
	for _, comp := range components {
		raw, ok, err := a.store.Get(comp.Key())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		var fields map[string]string
		if err := json.Unmarshal(raw, &fields); err != nil {
			return errors.AnnotateError("decoding index entry "+comp.Key(), err)
		}
		if attrs == nil {
			attrs = make(map[string]string, len(fields))
		}
		for k, val := range fields {
			attrs[k] = val
		}
	}
	if attrs != nil {
		v.EnsureAnnotation().PutAdditional(a.id, attrs)
	}
	return nil
}
