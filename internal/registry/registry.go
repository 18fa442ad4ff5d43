// Package registry holds the exp-notification opt-in list: one durable
// client UID per line, with an optional ",min_exp_threshold" suffix.
// UIDs, not clids, key the file; transient client IDs do not survive
// reconnects.
package registry

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Registry is the in-memory view of the registration file.
type Registry struct {
	mu        sync.RWMutex
	path      string
	threshold map[string]int64 // uid -> minimum exp gain to be notified about
}

// Load reads the registration file. A missing file yields an empty
// registry, not an error.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, threshold: map[string]int64{}}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uid, rest, _ := strings.Cut(line, ",")
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		var min int64
		if rest = strings.TrimSpace(rest); rest != "" {
			if v, perr := strconv.ParseInt(rest, 10, 64); perr == nil {
				min = v
			}
		}
		r.threshold[uid] = min
	}
	return r, sc.Err()
}

// Add registers a uid with the given minimum gain and persists.
func (r *Registry) Add(uid string, minExp int64) error {
	r.mu.Lock()
	r.threshold[uid] = minExp
	r.mu.Unlock()
	return r.save()
}

// Remove unregisters a uid and persists. Removing an absent uid is a no-op.
func (r *Registry) Remove(uid string) error {
	r.mu.Lock()
	_, ok := r.threshold[uid]
	delete(r.threshold, uid)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.save()
}

// Registered reports whether a uid is opted in.
func (r *Registry) Registered(uid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.threshold[uid]
	return ok
}

// Subscribers returns the uids whose threshold is at or below gain.
func (r *Registry) Subscribers(gain int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var uids []string
	for uid, min := range r.threshold {
		if gain >= min {
			uids = append(uids, uid)
		}
	}
	sort.Strings(uids)
	return uids
}

// Len reports the number of registered uids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.threshold)
}

func (r *Registry) save() error {
	r.mu.RLock()
	uids := make([]string, 0, len(r.threshold))
	for uid := range r.threshold {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var b strings.Builder
	for _, uid := range uids {
		if min := r.threshold[uid]; min > 0 {
			fmt.Fprintf(&b, "%s,%d\n", uid, min)
		} else {
			fmt.Fprintf(&b, "%s\n", uid)
		}
	}
	r.mu.RUnlock()

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
