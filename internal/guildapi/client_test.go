package guildapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchGuildParsesRoster(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"members":[{"name":"Alice","level":120,"vocation":"Knight","delta_experience":5000}],"last_refresh_ts":100}`))
	}))
	defer srv.Close()

	c := New(Config{GuildURL: srv.URL})
	g, err := c.FetchGuild(context.Background())
	require.NoError(t, err)
	require.Len(t, g.Members, 1)
	assert.Equal(t, "Alice", g.Members[0].Name)
	assert.Equal(t, int64(5000), g.Members[0].DeltaExperience)
	assert.Equal(t, int64(100), g.LastRefreshTS)
}

func TestFetchGuildUsesETag(t *testing.T) {
	t.Parallel()

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"members":[{"name":"Alice"}],"last_refresh_ts":100}`))
	}))
	defer srv.Close()

	c := New(Config{GuildURL: srv.URL})

	g1, err := c.FetchGuild(context.Background())
	require.NoError(t, err)

	// second fetch hits the 304 path and returns the cached snapshot
	g2, err := c.FetchGuild(context.Background())
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, 2, requests)
}

func TestFetchGuildErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{GuildURL: srv.URL})
	_, err := c.FetchGuild(context.Background())
	assert.ErrorContains(t, err, "status 502")
}

func TestFetchGuildUnconfigured(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	_, err := c.FetchGuild(context.Background())
	assert.Error(t, err)
}

func TestHasNewDataAdvancesStamp(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	g := &Guild{LastRefreshTS: 100}

	assert.True(t, c.HasNewData(g))
	// same stamp again: already acted on
	assert.False(t, c.HasNewData(g))
	assert.True(t, c.HasNewData(&Guild{LastRefreshTS: 150}))
	assert.False(t, c.HasNewData(&Guild{LastRefreshTS: 120}))
}

func TestFetchWarStatsCaches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"guild_name":"Rolla","enemy_name":"Foes","kills":12,"deaths":7,"score":5,"enemy_score":2}`))
	}))
	defer srv.Close()

	c := New(Config{WarStatsURL: srv.URL})

	stats, updated := c.Stats()
	assert.Nil(t, stats)
	assert.True(t, updated.IsZero())
	assert.Equal(t, "War stats not available yet.", c.FormatStats())

	ws, err := c.FetchWarStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, ws.Kills)

	stats, updated = c.Stats()
	require.NotNil(t, stats)
	assert.False(t, updated.IsZero())
	assert.Contains(t, c.FormatStats(), "Rolla vs Foes: kills 12, deaths 7, score 5:2")
}

func TestStaleStatsSurviveFailedFetch(t *testing.T) {
	t.Parallel()

	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"guild_name":"Rolla","enemy_name":"Foes","kills":1}`))
	}))
	defer srv.Close()

	c := New(Config{WarStatsURL: srv.URL})
	_, err := c.FetchWarStats(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = c.FetchWarStats(context.Background())
	require.Error(t, err)

	stats, _ := c.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Kills)
}
