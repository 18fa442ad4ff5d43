// Package guildapi fetches guild membership and war statistics from the
// external HTTP APIs and caches the last good payload. Consumers read the
// cache; a failed fetch keeps the previous snapshot (stale beats empty for
// chat commands).
package guildapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Member is one guild roster entry from the stats feed.
type Member struct {
	Name            string `json:"name"`
	Level           int    `json:"level"`
	Vocation        string `json:"vocation"`
	DeltaExperience int64  `json:"delta_experience"`
}

// Guild is the member list plus the feed's own refresh stamp, used to
// detect "new data since last check".
type Guild struct {
	Members       []Member `json:"members"`
	LastRefreshTS int64    `json:"last_refresh_ts"`
}

// WarStats is the aggregate of the ongoing guild war.
type WarStats struct {
	GuildName  string `json:"guild_name"`
	EnemyName  string `json:"enemy_name"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	Score      int    `json:"score"`
	EnemyScore int    `json:"enemy_score"`
}

// Config points the client at the two endpoints.
type Config struct {
	GuildURL    string `json:"guild_url"`
	WarStatsURL string `json:"war_stats_url"`
}

// Client is the HTTP collaborator. Exported methods are safe for
// concurrent use.
type Client struct {
	http *http.Client
	cfg  Config

	mu            sync.RWMutex
	guild         *Guild
	guildEtag     string
	stats         *WarStats
	statsUpdated  time.Time
	lastRefreshTS int64 // last seen feed stamp, for new-data detection
}

// New builds a client with a 10s request timeout.
func New(cfg Config) *Client {
	return &Client{
		http: &http.Client{Timeout: 10 * time.Second},
		cfg:  cfg,
	}
}

// FetchGuild pulls the roster. Uses If-None-Match: a 304 returns the cached
// snapshot without counting as new data.
func (c *Client) FetchGuild(ctx context.Context) (*Guild, error) {
	if c.cfg.GuildURL == "" {
		return nil, errors.New("guildapi: guild url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.GuildURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.mu.RLock()
	if c.guildEtag != "" {
		req.Header.Set("If-None-Match", c.guildEtag)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.mu.RLock()
		prev := c.guild
		c.mu.RUnlock()
		if prev == nil {
			return nil, errors.New("guildapi: 304 with empty cache")
		}
		return prev, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("guildapi: guild fetch status %d", resp.StatusCode)
	}

	var g Guild
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.guild = &g
	if et := resp.Header.Get("ETag"); et != "" {
		c.guildEtag = et
	}
	c.mu.Unlock()
	return &g, nil
}

// HasNewData reports whether the feed stamp moved past the last one we
// acted on, and records it when it did.
func (c *Client) HasNewData(g *Guild) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g.LastRefreshTS <= c.lastRefreshTS {
		return false
	}
	c.lastRefreshTS = g.LastRefreshTS
	return true
}

// FetchWarStats pulls the war aggregate and refreshes the cache.
func (c *Client) FetchWarStats(ctx context.Context) (*WarStats, error) {
	if c.cfg.WarStatsURL == "" {
		return nil, errors.New("guildapi: war stats url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.WarStatsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("guildapi: war stats status %d", resp.StatusCode)
	}

	var ws WarStats
	if err := json.NewDecoder(resp.Body).Decode(&ws); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats = &ws
	c.statsUpdated = time.Now()
	c.mu.Unlock()
	return &ws, nil
}

// Stats returns the cached war stats and when they were fetched. Nil until
// the first successful fetch.
func (c *Client) Stats() (*WarStats, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats, c.statsUpdated
}

// FormatStats renders the cached stats for chat output.
func (c *Client) FormatStats() string {
	stats, updated := c.Stats()
	if stats == nil {
		return "War stats not available yet."
	}
	return fmt.Sprintf("%s vs %s: kills %d, deaths %d, score %d:%d (updated %s)",
		stats.GuildName, stats.EnemyName,
		stats.Kills, stats.Deaths,
		stats.Score, stats.EnemyScore,
		updated.Format("15:04:05"))
}
