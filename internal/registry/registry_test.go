package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsEmpty(t *testing.T) {
	t.Parallel()

	r, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestAddRemovePersistRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regs.txt")
	r, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, r.Add("uid-b", 0))
	require.NoError(t, r.Add("uid-a", 5000))

	// reload from disk
	r2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Len())
	assert.True(t, r2.Registered("uid-a"))
	assert.True(t, r2.Registered("uid-b"))
	assert.Equal(t, []string{"uid-b"}, r2.Subscribers(4999))
	assert.Equal(t, []string{"uid-a", "uid-b"}, r2.Subscribers(5000))

	require.NoError(t, r2.Remove("uid-a"))
	r3, err := Load(path)
	require.NoError(t, err)
	assert.False(t, r3.Registered("uid-a"))
	assert.True(t, r3.Registered("uid-b"))
}

func TestFileFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regs.txt")
	r, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, r.Add("uid-z", 0))
	require.NoError(t, r.Add("uid-a", 1500))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// sorted, threshold suffix only when non-zero
	assert.Equal(t, "uid-a,1500\nuid-z\n", string(data))
}

func TestLoadSkipsCommentsAndBlanks(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regs.txt")
	content := "# opted-in uids\n\nuid-a\n  uid-b , 300 \nbadline,notanumber\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Registered("uid-a"))
	assert.Equal(t, []string{"badline", "uid-a", "uid-b"}, r.Subscribers(300))
	// the unparseable threshold falls back to zero
	assert.Contains(t, r.Subscribers(0), "badline")
}

func TestRemoveAbsentUIDIsNoop(t *testing.T) {
	t.Parallel()

	// the registry must not try to write to a path that was never created
	r, err := Load(filepath.Join(t.TempDir(), "never-written.txt"))
	require.NoError(t, err)
	require.NoError(t, r.Remove("uid-ghost"))
	_, statErr := os.Stat(r.path)
	assert.True(t, os.IsNotExist(statErr))
}
