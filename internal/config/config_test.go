package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "oispurts/internal/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "10:00", cfg.Schedule.Start)
	assert.Equal(t, "14:30", cfg.Schedule.End)
	assert.Equal(t, 20*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, 3, cfg.Scraper.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Scraper.RequestTimeout)
	assert.Equal(t, 50, cfg.Retention.MaxRawFiles)
	assert.Equal(t, 7, cfg.Retention.SnapshotDays)
	assert.Equal(t, 20, cfg.Bot.PageSize)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without env or file",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "Asia/Kolkata", cfg.Schedule.Location)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"OISPURTS_SERVER_PORT":          "9090",
				"OISPURTS_SCHEDULE_INTERVAL":    "15m",
				"OISPURTS_SCRAPER_FALLBACK_URLS": "https://example.com/a,https://example.com/b",
				"OISPURTS_LOGGING_LEVEL":        "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval)
				assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, cfg.Scraper.FallbackURLs)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "yaml file with env taking precedence",
			file: "schedule:\n  start: \"09:30\"\n  end: \"15:00\"\nserver:\n  port: 7000\n",
			env:  map[string]string{"OISPURTS_SERVER_PORT": "7100"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "09:30", cfg.Schedule.Start)
				assert.Equal(t, "15:00", cfg.Schedule.End)
				assert.Equal(t, 7100, cfg.Server.Port)
				assert.Equal(t, 20*time.Minute, cfg.Schedule.Interval, "absent keys keep defaults")
			},
		},
		{
			name:    "invalid clock",
			env:     map[string]string{"OISPURTS_SCHEDULE_START": "25:99"},
			wantErr: true,
		},
		{
			name:    "start after end",
			env:     map[string]string{"OISPURTS_SCHEDULE_START": "15:00", "OISPURTS_SCHEDULE_END": "10:00"},
			wantErr: true,
		},
		{
			name:    "bot enabled without token",
			env:     map[string]string{"OISPURTS_BOT_ENABLED": "true", "OISPURTS_BOT_TOKEN": ""},
			wantErr: true,
		},
		{
			name:    "unknown location",
			env:     map[string]string{"OISPURTS_SCHEDULE_LOCATION": "Mars/Olympus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile := filepath.Join(t.TempDir(), "config.yaml")
			if tt.file != "" {
				require.NoError(t, os.WriteFile(cfgFile, []byte(tt.file), 0644))
			}
			t.Setenv("OISPURTS_CONFIG_FILE", cfgFile)
			if tt.file == "" {
				t.Setenv("OISPURTS_CONFIG_FILE", "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(t.TempDir(), "snapshots")

	paths, err := ResolvePaths(PathsConfig{
		BaseDir:      base,
		DataDir:      "data",
		ExcelDir:     "data/excel_files",
		ProcessedDir: abs,
		LogsDir:      "logs",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data", "excel_files"), paths.ExcelDir)
	assert.Equal(t, abs, paths.ProcessedDir)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DataDir, paths.ExcelDir, paths.ProcessedDir, paths.LogsDir} {
		assert.DirExists(t, dir)
	}
	assert.Equal(t, filepath.Join(paths.ExcelDir, "x.xlsx"), paths.GetRawFilePath("x.xlsx"))
}

func TestRawFileName(t *testing.T) {
	at := time.Date(2024, 1, 2, 10, 20, 5, 0, time.UTC)
	assert.Equal(t, "oi_spurts_20240102_102005.xlsx", RawFileName(at, ""))
	assert.Equal(t, "oi_spurts_20240102_102005.csv", RawFileName(at, "csv"))
}
