package services

import (
	"context"
	"log/slog"
	"time"

	"oispurts/internal/config"
)

// RawPruner trims the raw export directory
type RawPruner interface {
	Prune(keep int) ([]string, error)
}

// SnapshotCleaner removes old daily snapshots
type SnapshotCleaner interface {
	Cleanup(ctx context.Context, today time.Time, keepDays int) ([]string, error)
}

// CleanupReport lists what a cleanup pass removed
type CleanupReport struct {
	RawFiles  []string `json:"raw_files"`
	Snapshots []string `json:"snapshots"`
}

// Maintenance runs the daily disk housekeeping
type Maintenance struct {
	raw       RawPruner
	snapshots SnapshotCleaner
	retention config.RetentionConfig
	logger    *slog.Logger
}

// NewMaintenance creates the cleanup job. Either store may be nil.
func NewMaintenance(raw RawPruner, snapshots SnapshotCleaner, retention config.RetentionConfig, logger *slog.Logger) *Maintenance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintenance{
		raw:       raw,
		snapshots: snapshots,
		retention: retention,
		logger:    logger.With(slog.String("component", "maintenance")),
	}
}

// Cleanup keeps the newest MaxRawFiles exports and drops snapshots older
// than SnapshotDays. Errors are logged; a failed step does not stop the other.
func (m *Maintenance) Cleanup(ctx context.Context, now time.Time) CleanupReport {
	var report CleanupReport

	if m.raw != nil {
		removed, err := m.raw.Prune(m.retention.MaxRawFiles)
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to prune raw files", slog.String("error", err.Error()))
		}
		report.RawFiles = removed
	}

	if m.snapshots != nil {
		removed, err := m.snapshots.Cleanup(ctx, now, m.retention.SnapshotDays)
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to clean up snapshots", slog.String("error", err.Error()))
		}
		report.Snapshots = removed
	}

	m.logger.InfoContext(ctx, "Cleanup completed",
		slog.Int("raw_files_removed", len(report.RawFiles)),
		slog.Int("snapshots_removed", len(report.Snapshots)))
	return report
}
