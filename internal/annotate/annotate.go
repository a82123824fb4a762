// Package annotate composes pluggable per-variant annotators into one
// ordered chain: the core calculator establishes baseline fields, custom
// file annotators attach whitelisted side-data attributes, and the
// population frequency annotator runs last and marks visitation for the
// reconciliation pass.
package annotate

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/varannot/internal/errors"
	"github.com/Aman-CERP/varannot/internal/variant"
)

// Annotator contributes a partial annotation to one variant. Implementations
// merge into the variant's annotation rather than replacing it.
type Annotator interface {
	// Name identifies the annotator in logs and failure notes.
	Name() string
	// Annotate merges this source's contribution into v.Annotation. A fatal
	// error (store I/O) aborts the run; anything else is recovered by the
	// chain.
	Annotate(ctx context.Context, v *variant.Variant) error
}

// Chain is an ordered annotator list: calculator first, custom file
// annotators in declaration order, population frequencies last.
type Chain []Annotator

// Run applies every annotator to the variant in order. A per-annotator
// failure attaches a note to the variant and the chain continues; the item
// is never dropped. Fatal errors propagate immediately.
func (c Chain) Run(ctx context.Context, v *variant.Variant) error {
	ann := v.EnsureAnnotation()
	for _, a := range c {
		if err := a.Annotate(ctx, v); err != nil {
			if errors.IsFatal(err) {
				return err
			}
			ann.AddFailure(a.Name(), err)
		}
	}
	return nil
}

// Task adapts a chain (plus optional input normalization) to the runner's
// batch contract: exactly one output variant per input variant, in batch
// order. One Task instance exists per worker.
type Task struct {
	chain  Chain
	norm   *variant.Normalizer
	logger *slog.Logger
}

// NewTask builds a per-worker annotation task. norm may be nil when input
// normalization is disabled.
func NewTask(chain Chain, norm *variant.Normalizer, logger *slog.Logger) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{chain: chain, norm: norm, logger: logger}
}

// Apply normalizes (when configured) and annotates every variant in the
// batch.
func (t *Task) Apply(ctx context.Context, batch []variant.Variant) ([]variant.Variant, error) {
	out := make([]variant.Variant, 0, len(batch))
	for _, v := range batch {
		if t.norm != nil {
			canonical, err := t.norm.Canonical(ctx, v)
			if err != nil {
				return nil, errors.ParseError("normalizing "+v.String(), err)
			}
			canonical.Annotation = v.Annotation
			v = canonical
		}
		if err := t.chain.Run(ctx, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
