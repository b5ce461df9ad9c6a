package pe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenMapped(t *testing.T) {
	b := alphaBeta().build()

	tests := []struct {
		name string
		data []byte
		mode Mode
	}{
		{"On-disk layout", b.file, ModeFile},
		{"Image layout", b.mapped, ModeMapped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mf, err := OpenMapped(writeTemp(t, "alphabeta.dll", tt.data), tt.mode)
			require.NoError(t, err)
			defer mf.Close()

			img := mf.Image()
			assert.Equal(t, tt.mode, img.Mode)
			assert.Equal(t, uint64(len(tt.data)), img.Size())

			table, err := ParseExports(img)
			require.NoError(t, err)
			assert.Equal(t, 3, table.Len())
		})
	}
}

func TestOpenMapped_TableOutlivesMapping(t *testing.T) {
	b := alphaBeta().build()
	mf, err := OpenMapped(writeTemp(t, "alphabeta.dll", b.file), ModeFile)
	require.NoError(t, err)

	table, err := ParseExports(mf.Image())
	require.NoError(t, err)
	require.NoError(t, mf.Close())

	alpha, ok := table.Lookup("Alpha")
	require.True(t, ok)
	assert.Equal(t, uint16(1), alpha.Ordinal)
}

func TestOpenMapped_EmptyFile(t *testing.T) {
	mf, err := OpenMapped(writeTemp(t, "empty.dll", nil), ModeFile)
	require.NoError(t, err)
	defer mf.Close()

	_, err = ParseExports(mf.Image())
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)
}

func TestOpenMapped_Errors(t *testing.T) {
	_, err := OpenMapped(filepath.Join(t.TempDir(), "missing.dll"), ModeFile)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	b := alphaBeta().build()
	_, err = OpenMapped(writeTemp(t, "alphabeta.dll", b.file), ModeLoaded)
	assert.Error(t, err)
}

func TestMappedFile_CloseTwice(t *testing.T) {
	b := alphaBeta().build()
	mf, err := OpenMapped(writeTemp(t, "alphabeta.dll", b.file), ModeFile)
	require.NoError(t, err)

	assert.NoError(t, mf.Close())
	assert.NoError(t, mf.Close())
}
