package fasta

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two sequences, 10 bases per line. chr1 is 25 bases, chr2 is 8.
const sampleFasta = ">chr1 test sequence\n" +
	"ACGTACGTAC\n" +
	"gtacgtacgt\n" +
	"ACGTA\n" +
	">chr2\n" +
	"TTGGCCAA\n"

func writeFasta(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ref.fa")
	require.NoError(t, os.WriteFile(path, []byte(sampleFasta), 0o644))
	return path
}

func TestSequence_BuiltIndex(t *testing.T) {
	r, err := Open(writeFasta(t))
	require.NoError(t, err)
	defer r.Close()

	tests := []struct {
		name       string
		chrom      string
		start, end int
		want       string
	}{
		{"single base", "chr1", 1, 1, "A"},
		{"within first line", "chr1", 3, 6, "GTAC"},
		{"spans line break", "chr1", 8, 13, "TACGTA"},
		{"lowercase uppercased", "chr1", 11, 14, "GTAC"},
		{"last base", "chr1", 25, 25, "A"},
		{"end truncated to length", "chr1", 24, 99, "TA"},
		{"start clamped to one", "chr1", -3, 2, "AC"},
		{"second sequence", "chr2", 1, 8, "TTGGCCAA"},
		{"empty region", "chr2", 9, 20, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Sequence(context.Background(), tt.chrom, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSequence_UnknownChromosome(t *testing.T) {
	r, err := Open(writeFasta(t))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Sequence(context.Background(), "chrMT", 1, 10)
	assert.Error(t, err)
}

func TestOpen_SidecarIndex(t *testing.T) {
	path := writeFasta(t)
	// samtools-style .fai: name, length, offset, bases per line, bytes per line.
	fai := fmt.Sprintf("chr1\t25\t%d\t10\t11\nchr2\t8\t%d\t8\t9\n",
		len(">chr1 test sequence\n"),
		len(sampleFasta)-len(">chr2\nTTGGCCAA\n")+len(">chr2\n"))
	require.NoError(t, os.WriteFile(path+".fai", []byte(fai), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Sequence(context.Background(), "chr1", 8, 13)
	require.NoError(t, err)
	assert.Equal(t, "TACGTA", got)

	got, err = r.Sequence(context.Background(), "chr2", 3, 6)
	require.NoError(t, err)
	assert.Equal(t, "GGCC", got)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.fa"))
	assert.Error(t, err)
}
