// Package vcf streams variant records out of VCF files. Multi-allelic
// records are split into one variant per alternate allele so that every
// downstream consumer sees simple single-allele variants.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Aman-CERP/varannot/internal/errors"
	"github.com/Aman-CERP/varannot/internal/fileio"
	"github.com/Aman-CERP/varannot/internal/variant"
)

const missing = "."

// Reader streams variants from a VCF file (plain or gzip). It is not safe
// for concurrent use; the task runner drives it from a single goroutine.
type Reader struct {
	path    string
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
	pending []variant.Variant
	done    bool
}

// NewReader opens a VCF file for streaming.
func NewReader(path string) (*Reader, error) {
	rc, err := fileio.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileAccess, "opening "+path, err)
	}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{path: path, rc: rc, scanner: sc}, nil
}

// Read returns up to batchSize variants, or io.EOF once the file is
// exhausted. A malformed record aborts the stream with a parse error.
func (r *Reader) Read(batchSize int) ([]variant.Variant, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	out := make([]variant.Variant, 0, batchSize)
	for len(out) < batchSize {
		if len(r.pending) > 0 {
			out = append(out, r.pending[0])
			r.pending = r.pending[1:]
			continue
		}
		if r.done {
			break
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return out, err
			}
			r.done = true
			continue
		}
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		vs, err := ParseLine(text)
		if err != nil {
			return nil, errors.ParseError(fmt.Sprintf("%s line %d", r.path, r.line), err)
		}
		r.pending = vs
	}
	if len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.rc.Close() }

// ParseLine parses one VCF data line into its per-allele variants. Records
// whose ALT column is missing yield no variants; all other column defects
// are errors.
func ParseLine(line string) ([]variant.Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, fmt.Errorf("want at least 8 columns, got %d", len(fields))
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("bad POS %q: %w", fields[1], err)
	}
	if fields[3] == "" || fields[3] == missing {
		return nil, fmt.Errorf("missing REF column")
	}
	if fields[4] == "" || fields[4] == missing {
		// Reference-only positions carry no alternate alleles.
		return nil, nil
	}
	info := parseInfo(fields[7])
	id := fields[2]
	if id == missing {
		id = ""
	}
	alts := strings.Split(fields[4], ",")
	out := make([]variant.Variant, 0, len(alts))
	for _, alt := range alts {
		v := variant.Variant{
			Chromosome: fields[0],
			Start:      pos,
			Reference:  fields[3],
			Alternate:  alt,
			ID:         id,
			Info:       info,
		}
		v.Type = v.InferType()
		out = append(out, v)
	}
	return out, nil
}

// parseInfo splits the INFO column into key/value attributes. Flag entries
// map to "true", matching how they are queried by field whitelists.
func parseInfo(s string) variant.InfoMap {
	if s == "" || s == missing {
		return nil
	}
	info := variant.InfoMap{}
	for _, kv := range strings.Split(s, ";") {
		if kv == "" {
			continue
		}
		if k, v, ok := strings.Cut(kv, "="); ok {
			info[k] = v
		} else {
			info[kv] = "true"
		}
	}
	return info
}
