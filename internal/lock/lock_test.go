package lock

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquire_ExclusiveUntilReleased(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".publishom", "lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	require.Equal(t, path, first.Path())

	_, err = Acquire(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLocked), "expected ErrLocked, got %v", err)

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	second, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}
