package indexer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/Aman-CERP/varannot/internal/jsonl"
	"github.com/Aman-CERP/varannot/internal/kvstore"
	"github.com/Aman-CERP/varannot/internal/variant"
)

// BuildPopulation builds the transient population frequency index. It always
// force-rebuilds: annotation mutates entries in place (visitation markers),
// so anything left over from an earlier run would corrupt reconciliation.
// Values carry the full original record because unmatched entries are
// re-emitted verbatim by the finisher.
func BuildPopulation(ctx context.Context, path string, maxOpenFiles int, logger *slog.Logger) (*kvstore.Store, error) {
	location := path + IndexSuffix
	if err := os.RemoveAll(location); err != nil {
		return nil, err
	}

	logger.Info("creating index", "location", location)
	store, err := kvstore.Open(location, false, maxOpenFiles)
	if err != nil {
		return nil, err
	}

	reader, err := jsonl.NewReader[variant.Variant](path)
	if err != nil {
		_ = store.Destroy()
		return nil, err
	}
	defer reader.Close()

	lines := 0
	for {
		if err := ctx.Err(); err != nil {
			_ = store.Destroy()
			return nil, err
		}
		batch, err := reader.Read(indexBatch)
		for _, v := range batch {
			value, merr := json.Marshal(v)
			if merr != nil {
				_ = store.Destroy()
				return nil, merr
			}
			if perr := store.Put(v.Key(), value); perr != nil {
				_ = store.Destroy()
				return nil, perr
			}
			lines++
			if lines%progressEvery == 0 {
				logger.Info("lines indexed", "count", lines, "file", path)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = store.Destroy()
			return nil, err
		}
	}
	logger.Info("index created", "file", path, "lines", lines)
	return store, nil
}
