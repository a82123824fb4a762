// Package jsonl reads and writes newline-delimited JSON records, the
// serialization used for population frequency files, annotated output and
// benchmark diffs. Gzip files are handled transparently.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/varannot/internal/errors"
	"github.com/Aman-CERP/varannot/internal/fileio"
)

// Reader streams records of type T, one JSON document per line.
type Reader[T any] struct {
	path    string
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

// NewReader opens a JSON-lines file for streaming.
func NewReader[T any](path string) (*Reader[T], error) {
	rc, err := fileio.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileAccess, "opening "+path, err)
	}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader[T]{path: path, rc: rc, scanner: sc}, nil
}

// Read returns up to batchSize records, or io.EOF once exhausted. A line
// that fails to decode aborts the stream with a parse error.
func (r *Reader[T]) Read(batchSize int) ([]T, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	out := make([]T, 0, batchSize)
	for len(out) < batchSize && r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, errors.ParseError(fmt.Sprintf("%s line %d", r.path, r.line), err)
		}
		out = append(out, rec)
	}
	if err := r.scanner.Err(); err != nil {
		return out, err
	}
	if len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

// Close releases the underlying file.
func (r *Reader[T]) Close() error { return r.rc.Close() }

// Writer emits records of type T, one JSON document per line. It is not
// safe for concurrent use; the task runner funnels all writes through a
// single goroutine.
type Writer[T any] struct {
	wc io.WriteCloser
	bw *bufio.Writer
}

// NewWriter creates (or, with appendMode, appends to) a JSON-lines file.
// Appending never clobbers records already written.
func NewWriter[T any](path string, appendMode bool) (*Writer[T], error) {
	wc, err := fileio.Create(path, appendMode)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileAccess, "creating "+path, err)
	}
	return &Writer[T]{wc: wc, bw: bufio.NewWriter(wc)}, nil
}

// Write appends a batch of records.
func (w *Writer[T]) Write(items []T) error {
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if _, err := w.bw.Write(b); err != nil {
			return err
		}
		if err := w.bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered records and releases the file.
func (w *Writer[T]) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.wc.Close()
		return err
	}
	return w.wc.Close()
}
