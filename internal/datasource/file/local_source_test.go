package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalOpen_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pip.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	rc, err := NewLocal(path).Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(b))
}

func TestLocalOpen_MissingFile(t *testing.T) {
	_, err := NewLocal(filepath.Join(t.TempDir(), "nope.csv")).Open(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal("does-not-matter.csv").Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
