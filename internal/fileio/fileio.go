// Package fileio provides gzip-aware file opening shared by the variant
// readers and writers. Files ending in .gz are transparently
// (de)compressed.
package fileio

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (w *writeCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading, decompressing when the name ends in .gz.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &readCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
}

// Create opens path for writing, compressing when the name ends in .gz.
// With appendMode set, output is appended to an existing file instead of
// truncating it; for gzip files this starts a new, valid gzip member.
func Create(path string, appendMode bool) (io.WriteCloser, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zw := gzip.NewWriter(f)
	return &writeCloser{Writer: zw, closers: []io.Closer{zw, f}}, nil
}
