package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ScratchFile describes one committed file in the scratch directory.
type ScratchFile struct {
	Name       string    `json:"name" yaml:"name"`
	Path       string    `json:"path" yaml:"path"`
	Size       int64     `json:"size" yaml:"size"`
	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`
}

// ReclaimResult reports what Reclaim removed.
type ReclaimResult struct {
	Removed      int   `json:"removed" yaml:"removed"`
	RemovedParts int   `json:"removed_parts" yaml:"removed_parts"`
	Kept         int   `json:"kept" yaml:"kept"`
	FreedBytes   int64 `json:"freed_bytes" yaml:"freed_bytes"`
}

// ListScratch returns the committed scratch files in dir, oldest first.
// A missing directory yields an empty list.
func ListScratch(dir string) ([]ScratchFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scratch dir %q: %w", dir, err)
	}

	var files []ScratchFile
	for _, e := range entries {
		if e.IsDir() || !isScratchName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		files = append(files, ScratchFile{
			Name:       e.Name(),
			Path:       filepath.Join(dir, e.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModifiedAt.Before(files[j].ModifiedAt)
	})
	return files, nil
}

// Reclaim removes scratch files and abandoned part files older than maxAge.
// Part files younger than maxAge may belong to an in-flight copy and are kept.
// Files that do not follow the scratch naming scheme are never touched.
func Reclaim(dir string, maxAge time.Duration, now time.Time) (ReclaimResult, error) {
	var res ReclaimResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("read scratch dir %q: %w", dir, err)
	}

	cutoff := now.Add(-maxAge)
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		scratch, part := isScratchName(name), isPartName(name)
		if !scratch && !part {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			res.Kept++
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		res.FreedBytes += info.Size()
		if part {
			res.RemovedParts++
		} else {
			res.Removed++
		}
	}

	return res, errors.Join(errs...)
}

// ScratchSummary aggregates a scratch listing.
type ScratchSummary struct {
	Dir        string `json:"dir" yaml:"dir"`
	Files      int    `json:"files" yaml:"files"`
	Stale      int    `json:"stale" yaml:"stale"`
	TotalBytes int64  `json:"total_bytes" yaml:"total_bytes"`
	StaleBytes int64  `json:"stale_bytes" yaml:"stale_bytes"`
}

// Summarize counts files and bytes, marking files older than maxAge stale.
func Summarize(dir string, files []ScratchFile, maxAge time.Duration, now time.Time) ScratchSummary {
	sum := ScratchSummary{Dir: dir, Files: len(files)}
	cutoff := now.Add(-maxAge)
	for _, f := range files {
		sum.TotalBytes += f.Size
		if f.ModifiedAt.Before(cutoff) {
			sum.Stale++
			sum.StaleBytes += f.Size
		}
	}
	return sum
}

func isScratchName(name string) bool {
	return strings.HasPrefix(name, ScratchPrefix) && strings.HasSuffix(name, ScratchExt)
}

func isPartName(name string) bool {
	return strings.HasPrefix(name, partPrefix) && strings.HasSuffix(name, partExt)
}
