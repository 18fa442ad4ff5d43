package activitylog

import (
	"encoding/csv"
	"log"
	"os"
	"time"
)

// ClientRow is one client in a snapshot append.
type ClientRow struct {
	Clid     string
	Nickname string
	UID      string
	IP       string
}

// AppendClientSnapshot appends the current client list to the snapshot CSV,
// one row per client sharing a single timestamp.
func AppendClientSnapshot(path string, clients []ClientRow) error {
	exists := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		exists = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write([]string{"timestamp", "clid", "nickname", "uid", "ip"}); err != nil {
			return err
		}
	}

	ts := time.Now().Format(time.RFC3339)
	for _, c := range clients {
		if err := w.Write([]string{ts, c.Clid, c.Nickname, c.UID, c.IP}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	log.Printf("[activity] logged %d clients to %s", len(clients), path)
	return nil
}

var dailyHeader = []string{"date", "kills", "deaths", "score", "fetched_at"}

// DailyWarStatsRow is one day's aggregate of the war statistics feed.
type DailyWarStatsRow struct {
	Date   string // YYYY-MM-DD
	Kills  string
	Deaths string
	Score  string
}

// UpsertDailyWarStats writes one row per day keyed by date: today's row is
// overwritten in place, other days are appended untouched.
func UpsertDailyWarStats(path string, row DailyWarStatsRow) error {
	var rows [][]string
	if f, err := os.Open(path); err == nil {
		rows, err = readAllRows(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	out := [][]string{dailyHeader}
	fetched := time.Now().Format(time.RFC3339)
	replaced := false
	for i, r := range rows {
		if i == 0 || len(r) == 0 {
			continue
		}
		if r[0] == row.Date {
			out = append(out, []string{row.Date, row.Kills, row.Deaths, row.Score, fetched})
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, []string{row.Date, row.Kills, row.Deaths, row.Score, fetched})
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(out); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
