package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Aman-CERP/varannot/internal/errors"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.idx"), false, 0)
	require.NoError(t, err)
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Put("1_100_A_T", []byte(`{"DP":"10"}`)))

	val, ok, err := s.Get("1_100_A_T")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"DP":"10"}`, string(val))

	_, ok, err = s.Get("1_200_G_C")
	require.NoError(t, err)
	assert.False(t, ok, "absent key must report not found, not an error")
}

func TestIter_FreshAndRestartable(t *testing.T) {
	s := openTemp(t)
	defer s.Close()

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		require.NoError(t, s.Put(k, []byte(v)))
	}

	// Two iterators over the same store are independent and both complete.
	for range 2 {
		it := s.Iter()
		got := map[string]string{}
		for it.Next() {
			got[it.Key()] = string(it.Value())
		}
		require.NoError(t, it.Err())
		it.Release()
		assert.Equal(t, want, got)
	}
}

func TestReopenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reuse.idx")
	s, err := Open(path, false, 0)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Close())

	ro, err := Open(path, true, 16)
	require.NoError(t, err)
	defer ro.Close()
	assert.True(t, ro.ReadOnly())

	val, ok, err := ro.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(val))
}

func TestOpen_MissingReadOnlyStoreFails(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.idx"), true, 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ErrCodeStoreOpen, pkgerrors.GetCode(err))
	assert.True(t, pkgerrors.IsFatal(err), "store-open failures are fatal")
}

func TestOpen_LockedStoreFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.idx")
	s, err := Open(path, false, 0)
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(path, false, 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ErrCodeStoreOpen, pkgerrors.GetCode(err))
}

func TestDestroy_RemovesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transient.idx")
	s, err := Open(path, false, 0)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Destroy())

	assert.NoDirExists(t, path)
}

func TestConcurrentReaders(t *testing.T) {
	s := openTemp(t)
	defer s.Close()
	require.NoError(t, s.Put("shared", []byte("x")))

	done := make(chan error, 8)
	for range 8 {
		go func() {
			for range 100 {
				if _, _, err := s.Get("shared"); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}
	for range 8 {
		require.NoError(t, <-done)
	}
}
