package exporter

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "oispurts/internal/errors"
	"oispurts/internal/history"
	"oispurts/pkg/contracts/domain"
)

const (
	reportPrefix = "ranks_"
	reportExt    = ".csv"
)

// SnapshotLoader reads the saved snapshot of a day
type SnapshotLoader interface {
	Load(ctx context.Context, date string) (history.Snapshot, error)
}

// DailyExporter writes one CSV report per finished day
type DailyExporter struct {
	dir      string
	loader   SnapshotLoader
	location *time.Location
	logger   *slog.Logger
}

// NewDailyExporter creates an exporter writing into dir
func NewDailyExporter(dir string, loader SnapshotLoader, location *time.Location, logger *slog.Logger) *DailyExporter {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.Local
	}
	return &DailyExporter{
		dir:      dir,
		loader:   loader,
		location: location,
		logger:   logger.With(slog.String("component", "daily_exporter")),
	}
}

// ReportFileName returns the report name for date
func ReportFileName(date string) string {
	return reportPrefix + date + reportExt
}

// Path returns the report path for date
func (d *DailyExporter) Path(date string) string {
	return filepath.Join(d.dir, ReportFileName(date))
}

// Export writes the report for date from its snapshot. Rows are grouped
// by instrument and ordered by time within each instrument.
func (d *DailyExporter) Export(ctx context.Context, date string) (string, error) {
	snap, err := d.loader.Load(ctx, date)
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(snap.Histories))
	for k := range snap.Histories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var records [][]string
	for _, k := range keys {
		for _, obs := range snap.Histories[k] {
			records = append(records, historyRecord(obs, d.location))
		}
	}

	path := d.Path(date)
	if err := WriteFile(path, historyHeaders, records, WriteOptions{BOMPrefix: true}); err != nil {
		return "", apperrors.NewPersistenceError("write daily report", err).WithContext("path", path)
	}

	d.logger.InfoContext(ctx, "daily report written",
		slog.String("date", date),
		slog.String("path", path),
		slog.Int("instruments", len(keys)),
		slog.Int("rows", len(records)))
	return path, nil
}

// OnRollover exports the day that just ended. It matches the tracker's
// rollover callback; failures are logged.
func (d *DailyExporter) OnRollover(ctx context.Context, previousDate, currentDate string) {
	if previousDate == "" {
		return
	}
	if _, err := d.Export(ctx, previousDate); err != nil {
		if history.IsNotExist(err) {
			d.logger.DebugContext(ctx, "no snapshot to export", slog.String("date", previousDate))
			return
		}
		d.logger.ErrorContext(ctx, "failed to export daily report",
			slog.String("date", previousDate),
			slog.String("error", err.Error()))
	}
}

// Cleanup deletes reports dated more than keepDays before today
func (d *DailyExporter) Cleanup(ctx context.Context, today time.Time, keepDays int) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, apperrors.NewPersistenceError("list reports", err)
	}

	y, m, day := today.Date()
	cutoff := time.Date(y, m, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -keepDays)

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, reportPrefix) || !strings.HasSuffix(name, reportExt) {
			continue
		}
		date, err := time.Parse(domain.DateLayout, strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), reportExt))
		if err != nil || !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
			d.logger.WarnContext(ctx, "failed to remove old report",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}
		removed = append(removed, name)
	}
	return removed, nil
}
