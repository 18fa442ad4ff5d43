package bot

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HEchternacht/rollabot/internal/guildapi"
	"github.com/HEchternacht/rollabot/internal/registry"
)

func newExpBot(t *testing.T, body func() string) *TS3Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body())
	}))
	t.Cleanup(srv.Close)

	b := newTestBot(nil)
	b.SetGuildClient(guildapi.New(guildapi.Config{GuildURL: srv.URL}))
	regs, err := registry.Load(filepath.Join(t.TempDir(), "regs.txt"))
	require.NoError(t, err)
	b.regs = regs
	return b
}

func TestExpCheckQueuesPokeForSubscribers(t *testing.T) {
	t.Parallel()

	body := `{"members":[` +
		`{"name":"Alice","delta_experience":5000},` +
		`{"name":"Bob","delta_experience":12000},` +
		`{"name":"Carol","delta_experience":0}` +
		`],"last_refresh_ts":100}`
	b := newExpBot(t, func() string { return body })
	require.NoError(t, b.regs.Add("uid-low", 0))
	require.NoError(t, b.regs.Add("uid-mid", 10000))
	require.NoError(t, b.regs.Add("uid-high", 50000))

	b.runGuildExpCheck()

	require.Equal(t, 1, b.pokes.Len())
	delivered := map[string]string{}
	err := b.pokes.Flush(map[string]int{"uid-low": 1, "uid-mid": 2, "uid-high": 3},
		func(clid int, msg string) error {
			delivered[fmt.Sprint(clid)] = msg
			return nil
		})
	require.NoError(t, err)

	// the largest gain (12000) clears low and mid thresholds, not high
	require.Len(t, delivered, 2)
	// gains are listed largest first, zero-gain members are omitted
	assert.Equal(t, "Guild exp gains: Bob +12000, Alice +5000", delivered["1"])
	assert.Equal(t, delivered["1"], delivered["2"])
}

func TestExpCheckSkipsStaleFeed(t *testing.T) {
	t.Parallel()

	body := `{"members":[{"name":"Alice","delta_experience":5000}],"last_refresh_ts":100}`
	b := newExpBot(t, func() string { return body })
	require.NoError(t, b.regs.Add("uid-a", 0))

	b.runGuildExpCheck()
	require.Equal(t, 1, b.pokes.Len())

	// same feed stamp: no new poke
	b.runGuildExpCheck()
	assert.Equal(t, 1, b.pokes.Len())
}

func TestExpCheckNoSubscribersNoPoke(t *testing.T) {
	t.Parallel()

	body := `{"members":[{"name":"Alice","delta_experience":5000}],"last_refresh_ts":100}`
	b := newExpBot(t, func() string { return body })

	b.runGuildExpCheck()
	assert.Equal(t, 0, b.pokes.Len())
}

func TestExpCheckNoGainsNoPoke(t *testing.T) {
	t.Parallel()

	body := `{"members":[{"name":"Alice","delta_experience":0}],"last_refresh_ts":100}`
	b := newExpBot(t, func() string { return body })
	require.NoError(t, b.regs.Add("uid-a", 0))

	b.runGuildExpCheck()
	assert.Equal(t, 0, b.pokes.Len())
}
