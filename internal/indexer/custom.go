// Package indexer builds the on-disk variant indices consumed by the
// annotators: durable per-side-file indices that are reused across runs, and
// the transient population frequency index that is always rebuilt.
package indexer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/varannot/internal/config"
	"github.com/Aman-CERP/varannot/internal/kvstore"
	"github.com/Aman-CERP/varannot/internal/variant"
	"github.com/Aman-CERP/varannot/internal/vcf"
)

// IndexSuffix is appended to a side file's path to locate its index.
const IndexSuffix = ".idx"

// progressEvery is how often indexing progress is logged, in source lines.
const progressEvery = 100000

// indexBatch is the read size used while streaming records into a store.
const indexBatch = 500

// BuildCustom opens or builds the durable index for one custom side file.
// An existing <file>.idx is opened read-only and reused as-is; otherwise the
// file is stream-parsed, normalized and indexed under a cross-process build
// lock. The returned store is open and ready for concurrent lookups.
func BuildCustom(ctx context.Context, file config.CustomFile, norm *variant.Normalizer, maxOpenFiles int, logger *slog.Logger) (*kvstore.Store, error) {
	location := file.Path + IndexSuffix
	if _, err := os.Stat(location); err == nil {
		logger.Info("index found, skipping index creation", "location", location)
		return kvstore.Open(location, true, maxOpenFiles)
	}

	// Guard the build so two runs over the same side file cannot interleave
	// writes into a half-built index.
	lock := flock.New(location + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(location + ".lock")
	}()

	// Another process may have finished the build while we waited.
	if _, err := os.Stat(location); err == nil {
		logger.Info("index found, skipping index creation", "location", location)
		return kvstore.Open(location, true, maxOpenFiles)
	}

	logger.Info("creating index", "location", location)
	store, err := kvstore.Open(location, false, maxOpenFiles)
	if err != nil {
		return nil, err
	}
	if err := indexCustomFile(ctx, file, store, norm, logger); err != nil {
		_ = store.Destroy()
		return nil, err
	}
	return store, nil
}

// indexCustomFile streams the side file's records into the store: one entry
// per normalized simple variant, value holding only the whitelisted INFO
// fields. Records without alternate alleles are skipped by the reader.
func indexCustomFile(ctx context.Context, file config.CustomFile, store *kvstore.Store, norm *variant.Normalizer, logger *slog.Logger) error {
	reader, err := vcf.NewReader(file.Path)
	if err != nil {
		return err
	}
	defer reader.Close()

	whitelist := make(map[string]struct{}, len(file.Fields))
	for _, f := range file.Fields {
		whitelist[f] = struct{}{}
	}

	lines := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := reader.Read(indexBatch)
		for _, v := range batch {
			simple, err := norm.Decompose(ctx, v)
			if err != nil {
				return err
			}
			for _, s := range simple {
				value, err := json.Marshal(filterInfo(s.Info, whitelist))
				if err != nil {
					return err
				}
				if err := store.Put(s.Key(), value); err != nil {
					return err
				}
			}
			lines++
			if lines%progressEvery == 0 {
				logger.Info("lines indexed", "count", lines, "file", file.Path)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	logger.Info("index created", "file", file.Path, "lines", lines)
	return nil
}

// filterInfo keeps only whitelisted attributes.
func filterInfo(info variant.InfoMap, whitelist map[string]struct{}) map[string]string {
	out := make(map[string]string)
	for k, v := range info {
		if _, ok := whitelist[k]; ok {
			out[k] = v
		}
	}
	return out
}
