package dirlock

import (
	"os"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCreatesLockFile(t *testing.T) {
	dir := t.TempDir()

	h, err := Acquire(dir)
	require.NoError(t, err)
	defer h.Release()

	_, err = os.Stat(h.Path())
	assert.NoError(t, err)
}

func TestAcquireFailsWhenAlreadyHeld(t *testing.T) {
	dir := t.TempDir()

	h, err := Acquire(dir)
	require.NoError(t, err)
	defer h.Release()

	_, err = Acquire(dir)
	assert.ErrorIs(t, err, ErrAlreadyHeld)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	h, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	h2, err := Acquire(dir)
	require.NoError(t, err)
	defer h2.Release()
}

func TestAcquireExclusivityAcrossTwoHandles(t *testing.T) {
	// Simulates two concurrent bootstraps racing for the same data
	// directory: exactly one succeeds, the other fails fast.
	dir := t.TempDir()

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := Acquire(dir)
			results <- err
		}()
	}

	var successes, failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyHeld)
			failures++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)
}

func TestFlockDependencyIsExclusiveOSLock(t *testing.T) {
	// Sanity check that the underlying library provides the OS-level
	// primitive Acquire depends on.
	dir := t.TempDir()
	fl := flock.New(dir + "/direct")
	locked, err := fl.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	_ = fl.Unlock()
}
