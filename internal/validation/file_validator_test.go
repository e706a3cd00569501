package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	return path
}

func TestValidateFile(t *testing.T) {
	v := NewFileValidator(nil)

	assert.NoError(t, v.ValidateFile(writeFile(t, "data.csv")))

	err := v.ValidateFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorContains(t, err, "does not exist")

	err = v.ValidateFile(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")
}

func TestValidateSourceFile(t *testing.T) {
	v := NewFileValidator(nil)

	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{name: "csv accepted", file: "export.csv"},
		{name: "xlsx accepted", file: "export.xlsx"},
		{name: "unsupported extension", file: "export.txt", wantErr: "not a supported source format"},
		{name: "excel lock file", file: "~$export.xlsx", wantErr: "temporary Excel lock file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSourceFile(writeFile(t, tt.file))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)

	dir := filepath.Join(t.TempDir(), "reports", "nested")
	require.NoError(t, v.ValidateOutputDirectory(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
