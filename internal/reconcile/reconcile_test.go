package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/varannot/internal/jsonl"
	"github.com/Aman-CERP/varannot/internal/kvstore"
	"github.com/Aman-CERP/varannot/internal/variant"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func popRecord(t *testing.T, id string, visited bool) variant.Variant {
	t.Helper()
	v, err := variant.ParseID(id)
	require.NoError(t, err)
	v.Annotation = &variant.Annotation{
		PopulationFrequencies: []variant.PopulationFrequency{
			{Study: "1kG", Population: "ALL", AltAlleleFreq: 0.1},
		},
	}
	if visited {
		v.Annotation.MarkVisited()
	}
	return v
}

func seedStore(t *testing.T, records []variant.Variant) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "pop.idx"), false, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	for _, rec := range records {
		b, err := json.Marshal(rec)
		require.NoError(t, err)
		require.NoError(t, store.Put(rec.Key(), b))
	}
	return store
}

func readOutput(t *testing.T, path string) []variant.Variant {
	t.Helper()
	r, err := jsonl.NewReader[variant.Variant](path)
	require.NoError(t, err)
	defer r.Close()
	var out []variant.Variant
	for {
		batch, err := r.Read(100)
		out = append(out, batch...)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
	}
}

func TestRun_AppendsUnvisitedOnly(t *testing.T) {
	store := seedStore(t, []variant.Variant{
		popRecord(t, "1:100:A:T", true),
		popRecord(t, "2:50:C:G", false),
		popRecord(t, "3:7:G:A", true),
	})
	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(out, nil, 0o644))

	res, err := Run(context.Background(), store, out, newLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 1, res.Appended)

	got := readOutput(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, "2_50_C_G", got[0].Key())
}

func TestRun_NeverTouchesEarlierOutput(t *testing.T) {
	store := seedStore(t, []variant.Variant{popRecord(t, "2:50:C:G", false)})

	// The output already holds the annotated input stream.
	out := filepath.Join(t.TempDir(), "out.json")
	inline := popRecord(t, "1:100:A:T", true)
	w, err := jsonl.NewWriter[variant.Variant](out, false)
	require.NoError(t, err)
	require.NoError(t, w.Write([]variant.Variant{inline}))
	require.NoError(t, w.Close())

	res, err := Run(context.Background(), store, out, newLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)

	got := readOutput(t, out)
	require.Len(t, got, 2)
	assert.Equal(t, "1_100_A_T", got[0].Key())
	assert.Equal(t, "2_50_C_G", got[1].Key())
}

func TestRun_CompletenessAcrossStates(t *testing.T) {
	// K entries, M matched during annotation: the pass appends exactly the
	// K-M others, with no duplicates.
	var records []variant.Variant
	ids := []string{"1:1:A:T", "1:2:C:G", "1:3:G:A", "1:4:T:C", "1:5:A:G"}
	for i, id := range ids {
		records = append(records, popRecord(t, id, i%2 == 0))
	}
	store := seedStore(t, records)
	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(out, nil, 0o644))

	res, err := Run(context.Background(), store, out, newLogger())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Scanned)
	assert.Equal(t, 2, res.Appended)

	got := readOutput(t, out)
	seen := map[string]int{}
	for _, v := range got {
		seen[v.Key()]++
	}
	assert.Equal(t, map[string]int{"1_2_C_G": 1, "1_4_T_C": 1}, seen)
}

func TestRun_EntryWithoutAnnotationIsUnvisited(t *testing.T) {
	v, err := variant.ParseID("1:100:A:T")
	require.NoError(t, err)
	store := seedStore(t, []variant.Variant{v})
	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(out, nil, 0o644))

	res, err := Run(context.Background(), store, out, newLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
}

func TestRun_EmptyStore(t *testing.T) {
	store := seedStore(t, nil)
	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(out, nil, 0o644))

	res, err := Run(context.Background(), store, out, newLogger())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, readOutput(t, out))
}

func TestRun_CancelledContext(t *testing.T) {
	store := seedStore(t, []variant.Variant{popRecord(t, "1:100:A:T", false)})
	out := filepath.Join(t.TempDir(), "out.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, store, out, newLogger())
	assert.ErrorIs(t, err, context.Canceled)
}
