package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"oispurts/internal/config"
)

// Manager saves and prunes raw exports in one directory
type Manager struct {
	dir       string
	discovery *Discovery
	logger    *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:       dir,
		discovery: NewDiscovery(dir),
		logger:    logger.With(slog.String("component", "raw_files")),
	}
}

// Dir returns the directory the manager writes to
func (m *Manager) Dir() string {
	return m.dir
}

// SaveRaw writes a downloaded export named after the fetch time.
// The file is written to a temporary name first and renamed into place.
func (m *Manager) SaveRaw(data []byte, at time.Time, ext string) (string, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	name := config.RawFileName(at, strings.TrimPrefix(ext, "."))
	path := filepath.Join(m.dir, name)

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write raw file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close raw file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move raw file into place: %w", err)
	}

	m.logger.Info("Saved raw export",
		slog.String("path", path),
		slog.Int("size_bytes", len(data)))

	return path, nil
}

// CountForDate returns how many exports were saved on the date of day
func (m *Manager) CountForDate(day time.Time) int {
	files, err := m.discovery.FindByDate(day)
	if err != nil {
		m.logger.Warn("Failed to list raw files", slog.String("error", err.Error()))
		return 0
	}
	return len(files)
}

// Latest returns the newest saved export
func (m *Manager) Latest() (FileInfo, bool) {
	files, err := m.discovery.FindRawFiles()
	if err != nil || len(files) == 0 {
		return FileInfo{}, false
	}
	return files[len(files)-1], true
}

// Prune keeps the newest keep exports and deletes the rest.
// It returns the paths removed.
func (m *Manager) Prune(keep int) ([]string, error) {
	files, err := m.discovery.FindRawFiles()
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(files) <= keep {
		return nil, nil
	}

	var removed []string
	for _, f := range files[:len(files)-keep] {
		if err := os.Remove(f.Path); err != nil {
			m.logger.Warn("Failed to delete raw file",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			continue
		}
		removed = append(removed, f.Path)
	}

	if len(removed) > 0 {
		m.logger.Info("Pruned raw exports",
			slog.Int("removed", len(removed)),
			slog.Int("kept", keep))
	}

	return removed, nil
}
