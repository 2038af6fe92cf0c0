package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestSave_WritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "users/alice.json", []byte(`{"login":"alice"}`)))

	data, err := os.ReadFile(filepath.Join(dir, "users", "alice.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"login":"alice"}`, string(data))
}

func TestSave_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	err = s.Save(context.Background(), "../escape.json", []byte("x"))
	require.Error(t, err)
}
