package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Paths contains all the application paths in resolved, absolute form
type Paths struct {
	BaseDir      string
	DataDir      string
	ExcelDir     string
	ProcessedDir string
	LogsDir      string
}

// ResolvePaths anchors the configured directories. An empty BaseDir means
// the directory of the running executable, never the working directory.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
		}
		base = filepath.Dir(exe)
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base dir: %w", err)
	}

	anchor := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	return &Paths{
		BaseDir:      base,
		DataDir:      anchor(cfg.DataDir),
		ExcelDir:     anchor(cfg.ExcelDir),
		ProcessedDir: anchor(cfg.ProcessedDir),
		LogsDir:      anchor(cfg.LogsDir),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ExcelDir, p.ProcessedDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// RawFileName names a downloaded export after the moment it was fetched
func RawFileName(at time.Time, ext string) string {
	if ext == "" {
		ext = "xlsx"
	}
	return fmt.Sprintf("oi_spurts_%s.%s", at.Format("20060102_150405"), ext)
}

// GetRawFilePath returns the path for a downloaded export
func (p *Paths) GetRawFilePath(filename string) string {
	return filepath.Join(p.ExcelDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("excel", p.ExcelDir),
			slog.String("processed", p.ProcessedDir),
			slog.String("logs", p.LogsDir),
		))
}
