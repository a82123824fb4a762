// Package preflight validates the environment before a pipeline run starts:
// free disk space where indices and output will be written, and the file
// descriptor limit the embedded stores and worker pool will draw from.
// Catching these up front beats failing halfway through a multi-hour run.
package preflight

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"syscall"

	"github.com/Aman-CERP/varannot/internal/config"
)

// MinDiskSpaceBytes is the minimum free space required at every write
// location (100 MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// MinFileDescriptors is the minimum file descriptor limit. Each open index
// store holds a set of table files, multiplied across custom files.
const MinFileDescriptors = 1024

// Status classifies one check outcome.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

// String returns the status label used in logs.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Result holds one check outcome.
type Result struct {
	Name    string
	Status  Status
	Message string
}

// Run executes every check for the given configuration and logs each result.
// It returns an error when any check failed.
func Run(cfg *config.Config, logger *slog.Logger) error {
	results := []Result{CheckFileDescriptors()}
	for _, dir := range writeLocations(cfg) {
		results = append(results, CheckDiskSpace(dir))
	}

	failed := 0
	for _, r := range results {
		switch r.Status {
		case StatusFail:
			failed++
			logger.Error("preflight check failed", "check", r.Name, "message", r.Message)
		case StatusWarn:
			logger.Warn("preflight check", "check", r.Name, "message", r.Message)
		default:
			logger.Debug("preflight check", "check", r.Name, "message", r.Message)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d preflight check(s) failed", failed)
	}
	return nil
}

// writeLocations collects every directory the run will write into: the
// output file's directory, each custom file's directory (its index is built
// beside it) and the population file's directory.
func writeLocations(cfg *config.Config) []string {
	seen := map[string]struct{}{}
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	add(cfg.Output)
	for _, cf := range cfg.CustomFiles {
		add(cf.Path)
	}
	add(cfg.Population.File)
	return dirs
}

// CheckDiskSpace verifies free space at the given directory.
func CheckDiskSpace(dir string) Result {
	res := Result{Name: "disk_space:" + dir}
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		res.Status = StatusWarn
		res.Message = fmt.Sprintf("cannot stat filesystem: %v", err)
		return res
	}
	available := stat.Bavail * uint64(stat.Bsize)
	res.Message = fmt.Sprintf("%s free (minimum: %s)", formatBytes(available), formatBytes(MinDiskSpaceBytes))
	if available < MinDiskSpaceBytes {
		res.Status = StatusFail
		return res
	}
	res.Status = StatusPass
	return res
}

// CheckFileDescriptors verifies the process file descriptor limit.
func CheckFileDescriptors() Result {
	res := Result{Name: "file_descriptors"}
	var rlim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlim); err != nil {
		res.Status = StatusWarn
		res.Message = fmt.Sprintf("cannot read rlimit: %v", err)
		return res
	}
	res.Message = fmt.Sprintf("%d (minimum: %d)", rlim.Cur, MinFileDescriptors)
	if rlim.Cur < MinFileDescriptors {
		res.Status = StatusFail
		res.Message += "; raise it with ulimit -n"
		return res
	}
	res.Status = StatusPass
	return res
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/mb)
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/kb)
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
