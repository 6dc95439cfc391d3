package history

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/pretty"

	apperrors "oispurts/internal/errors"
	"oispurts/pkg/contracts/domain"
)

const (
	snapshotPrefix = "daily_data_"
	snapshotExt    = ".json"
)

// Persister stores one snapshot per calendar date
type Persister interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, date string) (Snapshot, error)
}

// IsNotExist reports whether err means no snapshot exists for the date
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// SnapshotFileName returns the file name used for date
func SnapshotFileName(date string) string {
	return snapshotPrefix + date + snapshotExt
}

// FilePersister writes snapshots as indented JSON files in a directory
type FilePersister struct {
	dir    string
	logger *slog.Logger
}

// NewFilePersister creates a persister rooted at dir
func NewFilePersister(dir string, logger *slog.Logger) *FilePersister {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilePersister{
		dir:    dir,
		logger: logger.With(slog.String("component", "snapshot_store")),
	}
}

// Path returns the snapshot path for date
func (p *FilePersister) Path(date string) string {
	return filepath.Join(p.dir, SnapshotFileName(date))
}

// Save writes snap atomically: a temp file in the same directory is
// renamed over the previous snapshot once fully written.
func (p *FilePersister) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return apperrors.NewPersistenceError("create snapshot dir", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return apperrors.NewPersistenceError("encode snapshot", err)
	}
	data = pretty.Pretty(data)

	tmp, err := os.CreateTemp(p.dir, snapshotPrefix+"*.tmp")
	if err != nil {
		return apperrors.NewPersistenceError("create temp snapshot", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewPersistenceError("write snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewPersistenceError("close snapshot", err)
	}

	path := p.Path(snap.Date)
	if err := os.Rename(tmpName, path); err != nil {
		return apperrors.NewPersistenceError("replace snapshot", err).WithContext("path", path)
	}

	p.logger.DebugContext(ctx, "saved snapshot",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.Int("instruments", len(snap.Histories)))
	return nil
}

// Load reads the snapshot for date. A missing file returns an error
// matching IsNotExist.
func (p *FilePersister) Load(ctx context.Context, date string) (Snapshot, error) {
	var snap Snapshot
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	path := p.Path(date)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snap, err
		}
		return snap, apperrors.NewPersistenceError("read snapshot", err).WithContext("path", path)
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, apperrors.NewPersistenceError("decode snapshot", err).WithContext("path", path)
	}
	if snap.Histories == nil {
		snap.Histories = make(map[string]domain.InstrumentHistory)
	}
	return snap, nil
}

// Cleanup deletes snapshots dated more than keepDays before today and
// returns the names removed. Files whose name carries no date are left alone.
func (p *FilePersister) Cleanup(ctx context.Context, today time.Time, keepDays int) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, apperrors.NewPersistenceError("list snapshots", err)
	}

	y, m, d := today.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -keepDays)

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		date, err := time.Parse(domain.DateLayout, strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotExt))
		if err != nil {
			p.logger.WarnContext(ctx, "skipping snapshot with unparseable name", slog.String("file", name))
			continue
		}
		if !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(p.dir, name)); err != nil {
			p.logger.WarnContext(ctx, "failed to remove old snapshot",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}
		p.logger.InfoContext(ctx, "removed old snapshot", slog.String("file", name))
		removed = append(removed, name)
	}
	return removed, nil
}
