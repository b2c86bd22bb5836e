package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndWaitExit(t *testing.T) {
	r := NewProcessRunner()
	require.NoError(t, r.Start("VOLUME-1", "true", nil))

	info, ok := r.Status("VOLUME-1")
	require.True(t, ok)
	assert.Equal(t, "VOLUME-1", info.Name)
	assert.NotZero(t, info.PID)

	require.Eventually(t, func() bool {
		info, _ := r.Status("VOLUME-1")
		return info.Status == StatusExited
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStartRejectsDuplicateRunning(t *testing.T) {
	r := NewProcessRunner()
	require.NoError(t, r.Start("MAKER-1", "sleep", []string{"30"}))
	defer func() { _ = r.Remove("MAKER-1") }()

	err := r.Start("MAKER-1", "sleep", []string{"30"})
	assert.Error(t, err)
}

func TestStopAndRestart(t *testing.T) {
	r := NewProcessRunner()
	require.NoError(t, r.Start("HOLDER-1", "sleep", []string{"30"}))
	require.NoError(t, r.Stop("HOLDER-1"))

	require.Eventually(t, func() bool {
		info, _ := r.Status("HOLDER-1")
		return info.Status == StatusStopped
	}, 5*time.Second, 20*time.Millisecond)

	// A stopped name can be started again.
	require.NoError(t, r.Start("HOLDER-1", "true", nil))
	require.NoError(t, r.Remove("HOLDER-1"))
}

func TestFailedCommandReportsErrored(t *testing.T) {
	r := NewProcessRunner()
	require.NoError(t, r.Start("MIXER-1", "false", nil))

	require.Eventually(t, func() bool {
		info, _ := r.Status("MIXER-1")
		return info.Status == StatusErrored
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	r := NewProcessRunner()
	assert.NoError(t, r.Remove("SWEEP-9"))
	assert.Empty(t, r.List())
}

func TestList(t *testing.T) {
	r := NewProcessRunner()
	require.NoError(t, r.Start("VOLUME-1", "sleep", []string{"30"}))
	require.NoError(t, r.Start("VOLUME-2", "sleep", []string{"30"}))
	defer func() {
		_ = r.Remove("VOLUME-1")
		_ = r.Remove("VOLUME-2")
	}()

	infos := r.List()
	assert.Len(t, infos, 2)
}
