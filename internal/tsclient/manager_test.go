package tsclient

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pidPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "client.pid")
}

func TestIsRunningWithoutPIDFile(t *testing.T) {
	t.Parallel()

	m := New(nil, "", pidPath(t))
	assert.False(t, m.IsRunning())
}

func TestIsRunningLivePID(t *testing.T) {
	t.Parallel()

	path := pidPath(t)
	// our own pid is guaranteed alive
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644))
	m := New(nil, "", path)
	assert.True(t, m.IsRunning())
}

func TestIsRunningStalePID(t *testing.T) {
	t.Parallel()

	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0644))
	m := New(nil, "", path)
	assert.False(t, m.IsRunning())
}

func TestIsRunningGarbagePIDFile(t *testing.T) {
	t.Parallel()

	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0644))
	m := New(nil, "", path)
	assert.False(t, m.IsRunning())
}

func TestStartWithoutCommand(t *testing.T) {
	t.Parallel()

	m := New(nil, "", pidPath(t))
	assert.False(t, m.Start())
}

func TestStartWritesPIDFile(t *testing.T) {
	t.Parallel()

	path := pidPath(t)
	m := New([]string{"sleep", "30"}, "", path)
	require.True(t, m.Start())
	defer m.Stop(time.Second)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(raw))
	require.NoError(t, err)
	assert.Greater(t, pid, 0)
	assert.True(t, m.IsRunning())
}

func TestStopClearsPIDFile(t *testing.T) {
	t.Parallel()

	path := pidPath(t)
	m := New([]string{"sleep", "30"}, "", path)
	require.True(t, m.Start())

	m.Stop(2 * time.Second)
	assert.False(t, m.IsRunning())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRestartCooldown(t *testing.T) {
	t.Parallel()

	m := New([]string{"sleep", "30"}, "", pidPath(t))
	require.True(t, m.Restart())
	defer m.Stop(time.Second)

	// inside the cooldown window the restart is refused
	assert.False(t, m.Restart())

	m.mu.Lock()
	m.lastRestart = time.Now().Add(-RestartCooldown - time.Second)
	m.mu.Unlock()
	assert.True(t, m.Restart())
	m.Stop(time.Second)
}
