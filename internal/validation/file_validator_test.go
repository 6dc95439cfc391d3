package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "oispurts/internal/errors"
	"oispurts/internal/shared/testutil"
)

func TestValidateExport(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, size int) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0644))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"xlsx", write("oi_spurts_20240102_102000.xlsx", 200), false},
		{"csv upper case extension", write("export.CSV", 200), false},
		{"json", write("export.json", 200), false},
		{"legacy xls", write("export.xls", 200), true},
		{"lock file", write("~$export.xlsx", 200), true},
		{"too small", write("tiny.csv", 10), true},
		{"missing", filepath.Join(dir, "missing.xlsx"), true},
		{"directory", dir, true},
	}

	v := NewFileValidator(testutil.NewDiscardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateExport(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation), err.Error())
		})
	}
}

func TestValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(testutil.NewDiscardLogger())
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, v.ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file is removed")
}

func TestValidateOutputDirectory_FileInTheWay(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	v := NewFileValidator(testutil.NewDiscardLogger())
	assert.Error(t, v.ValidateOutputDirectory(filepath.Join(blocker, "sub")))
}
