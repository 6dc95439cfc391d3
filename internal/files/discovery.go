package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RawPrefix starts the name of every downloaded export
const RawPrefix = "oi_spurts_"

// rawExtensions are the export formats the scraper may save
var rawExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
	".json": true,
}

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds raw exports in a directory
type Discovery struct {
	dir string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(dir string) *Discovery {
	return &Discovery{dir: dir}
}

// FindRawFiles lists the raw exports oldest first. The timestamp embedded
// in the name orders them, so the sort is by name. A missing directory
// holds no files.
func (d *Discovery) FindRawFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", d.dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsRawFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(d.dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// FindByDate lists the raw exports stamped with the calendar date of day
func (d *Discovery) FindByDate(day time.Time) ([]FileInfo, error) {
	all, err := d.FindRawFiles()
	if err != nil {
		return nil, err
	}

	prefix := RawPrefix + day.Format("20060102") + "_"
	var matched []FileInfo
	for _, f := range all {
		if strings.HasPrefix(f.Name, prefix) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// IsRawFile reports whether name looks like a downloaded export
func IsRawFile(name string) bool {
	if !strings.HasPrefix(name, RawPrefix) {
		return false
	}
	return rawExtensions[strings.ToLower(filepath.Ext(name))]
}
