// Package reconcile implements the post-annotation completeness pass: every
// population index entry that was never matched during annotation is
// appended to the output, so the final output covers the whole population
// file.
package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Aman-CERP/varannot/internal/jsonl"
	"github.com/Aman-CERP/varannot/internal/kvstore"
	"github.com/Aman-CERP/varannot/internal/variant"
)

// progressEvery is how often progress is logged, in scanned records.
const progressEvery = 10000

// Result summarizes one reconciliation pass.
type Result struct {
	Scanned  int
	Appended int
}

// Run walks a fresh iterator over the transient population store and
// appends every still-unvisited record to the output file, never touching
// records written during the parallel phase. I/O failures are returned for
// logging but already-written output is never rolled back.
func Run(ctx context.Context, store *kvstore.Store, outputPath string, logger *slog.Logger) (Result, error) {
	var res Result

	writer, err := jsonl.NewWriter[variant.Variant](outputPath, true)
	if err != nil {
		return res, err
	}
	defer writer.Close()

	logger.Info("writing population entries not matched by the input", "output", outputPath)

	it := store.Iter()
	defer it.Release()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var rec variant.Variant
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return res, err
		}
		if !rec.Annotation.Visited() {
			if err := writer.Write([]variant.Variant{rec}); err != nil {
				return res, err
			}
			res.Appended++
		}
		res.Scanned++
		if res.Scanned%progressEvery == 0 {
			logger.Info("records written", "count", res.Scanned)
		}
	}
	if err := it.Err(); err != nil {
		return res, err
	}
	logger.Info("reconciliation done", "scanned", res.Scanned, "appended", res.Appended)
	return res, nil
}
