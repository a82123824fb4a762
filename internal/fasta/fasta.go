// Package fasta provides random access to reference genome sequence from an
// uncompressed FASTA file, using a samtools-style .fai offset index. The
// normalizer consumes it through the variant.SequenceProvider interface when
// left-alignment is enabled.
package fasta

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type faiRecord struct {
	length    int64 // sequence length in bases
	offset    int64 // file offset of the first base
	lineBases int64 // bases per line
	lineWidth int64 // bytes per line including the newline
}

// IndexedReader reads arbitrary regions of a FASTA file.
type IndexedReader struct {
	f     *os.File
	index map[string]faiRecord
}

// Open opens a FASTA file for region queries. A sidecar <path>.fai index is
// used when present; otherwise the file is scanned once to build the index
// in memory.
func Open(path string) (*IndexedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &IndexedReader{f: f, index: map[string]faiRecord{}}
	if fai, err := os.Open(path + ".fai"); err == nil {
		defer fai.Close()
		if err := r.loadIndex(fai); err != nil {
			f.Close()
			return nil, fmt.Errorf("reading %s.fai: %w", path, err)
		}
		return r, nil
	}
	if err := r.buildIndex(); err != nil {
		f.Close()
		return nil, fmt.Errorf("indexing %s: %w", path, err)
	}
	return r, nil
}

// Close releases the underlying file.
func (r *IndexedReader) Close() error { return r.f.Close() }

// Sequence returns the reference bases for a 1-based inclusive region,
// uppercased. Regions beyond the end of the sequence are truncated; an
// unknown chromosome is an error.
func (r *IndexedReader) Sequence(_ context.Context, chromosome string, start, end int) (string, error) {
	rec, ok := r.index[chromosome]
	if !ok {
		return "", fmt.Errorf("chromosome %q not present in reference", chromosome)
	}
	if start < 1 {
		start = 1
	}
	if int64(end) > rec.length {
		end = int(rec.length)
	}
	if end < start {
		return "", nil
	}
	from := rec.offset + baseOffset(rec, int64(start-1))
	to := rec.offset + baseOffset(rec, int64(end-1)) + 1
	buf := make([]byte, to-from)
	if _, err := r.f.ReadAt(buf, from); err != nil && err != io.EOF {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(end - start + 1)
	for _, b := range buf {
		if b == '\n' || b == '\r' {
			continue
		}
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}

// baseOffset converts a 0-based base index to a byte offset relative to the
// start of the sequence body.
func baseOffset(rec faiRecord, base int64) int64 {
	return base/rec.lineBases*rec.lineWidth + base%rec.lineBases
}

func (r *IndexedReader) loadIndex(fai io.Reader) error {
	sc := bufio.NewScanner(fai)
	for sc.Scan() {
		fields := strings.Split(strings.TrimSpace(sc.Text()), "\t")
		if len(fields) < 5 {
			continue
		}
		var rec faiRecord
		var err error
		if rec.length, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return err
		}
		if rec.offset, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
			return err
		}
		if rec.lineBases, err = strconv.ParseInt(fields[3], 10, 64); err != nil {
			return err
		}
		if rec.lineWidth, err = strconv.ParseInt(fields[4], 10, 64); err != nil {
			return err
		}
		r.index[fields[0]] = rec
	}
	return sc.Err()
}

// buildIndex scans the FASTA once, recording offsets and line geometry per
// sequence. Assumes uniform line lengths within each sequence body, as the
// .fai format does.
func (r *IndexedReader) buildIndex() error {
	br := bufio.NewReader(r.f)
	var offset int64
	var name string
	var rec faiRecord
	flush := func() {
		if name != "" {
			r.index[name] = rec
		}
	}
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			width := int64(len(line))
			trimmed := strings.TrimRight(line, "\r\n")
			if strings.HasPrefix(trimmed, ">") {
				flush()
				name = strings.Fields(trimmed[1:])[0]
				rec = faiRecord{offset: offset + width}
			} else if name != "" && trimmed != "" {
				if rec.lineBases == 0 {
					rec.lineBases = int64(len(trimmed))
					rec.lineWidth = width
				}
				rec.length += int64(len(trimmed))
			}
			offset += width
		}
		if err == io.EOF {
			flush()
			break
		}
		if err != nil {
			return err
		}
	}
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return nil
}
