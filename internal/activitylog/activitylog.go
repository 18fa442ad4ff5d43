// Package activitylog persists user activity to flat CSV files: one
// append-only event log, periodic client-list snapshots, and a rolling
// daily war-stats aggregate. Formats are shared with external tooling, so
// column order is fixed.
package activitylog

import (
	"encoding/csv"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var eventHeader = []string{"timestamp", "event_type", "clid", "nickname", "uid", "ip", "details"}

// ClientInfo is the identity triple attached to every event row.
type ClientInfo struct {
	Nickname string
	UID      string
	IP       string
}

// Logger appends activity events to a CSV file. Safe for concurrent use;
// the dispatcher and the worker both write to it.
type Logger struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

// Open opens (or creates) the event log, writing the header on first use.
func Open(path string) (*Logger, error) {
	exists := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		exists = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := &Logger{path: path, f: f, w: csv.NewWriter(f)}
	if !exists {
		if err := l.w.Write(eventHeader); err != nil {
			f.Close()
			return nil, err
		}
		l.w.Flush()
		log.Printf("[activity] created new activity log: %s", path)
	} else {
		log.Printf("[activity] opened existing activity log: %s", path)
	}
	return l, nil
}

// LogEvent appends one row. details is serialized to JSON in the last
// column. Errors are logged, not returned: a full disk must not take the
// dispatcher down.
func (l *Logger) LogEvent(eventType, clid string, info ClientInfo, details map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	row := []string{
		time.Now().Format(time.RFC3339),
		eventType,
		clid,
		info.Nickname,
		info.UID,
		info.IP,
		string(detailsJSON),
	}
	if err := l.w.Write(row); err != nil {
		log.Printf("[activity] write %s: %v", eventType, err)
		return
	}
	l.w.Flush()
}

// CleanupOldEntries rewrites the log dropping rows older than the given
// retention. Rows with unparseable timestamps are kept.
func (l *Logger) CleanupOldEntries(keep time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return nil
	}

	in, err := os.Open(l.path)
	if err != nil {
		return err
	}
	rows, err := readAllRows(in)
	in.Close()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-keep)
	tmp := l.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(out)

	// an externally truncated file has no rows to carry the header over
	if len(rows) == 0 {
		_ = w.Write(eventHeader)
	}

	removed, kept := 0, 0
	for i, row := range rows {
		if i == 0 {
			_ = w.Write(row) // header
			continue
		}
		if len(row) == 0 {
			continue
		}
		ts, perr := time.Parse(time.RFC3339, row[0])
		if perr == nil && ts.Before(cutoff) {
			removed++
			continue
		}
		_ = w.Write(row)
		kept++
	}
	w.Flush()
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return err
	}
	log.Printf("[activity] cleaned activity log: removed %d old entries, kept %d", removed, kept)

	// reopen the append handle on the rewritten file
	if l.f != nil {
		l.f.Close()
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.f, l.w = nil, nil
		return err
	}
	l.f = f
	l.w = csv.NewWriter(f)
	return nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		l.w.Flush()
		l.f.Close()
		l.f, l.w = nil, nil
	}
}

func readAllRows(f *os.File) ([][]string, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
