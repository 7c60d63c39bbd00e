package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage reports how many bytes each data path (database, vector store, rule index,
// rule mirror) occupies. Missing paths report zero.
type DiskUsage struct {
	Paths map[string]int64 `json:"paths"`
	Total int64            `json:"total_bytes"`
}

// MeasureDiskUsage sums the size of each path; directories are walked recursively.
func MeasureDiskUsage(paths ...string) (*DiskUsage, error) {
	u := &DiskUsage{Paths: make(map[string]int64, len(paths))}
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return nil, err
		}
		u.Paths[p] = n
		u.Total += n
	}
	return u, nil
}

func pathSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
