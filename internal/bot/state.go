package bot

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ClientRecord is the per-clid view of a connected (or once-connected)
// client. Records are never deleted on leave; they keep attributing log
// rows after the client is gone. The clid is transient; uid is the
// durable identity.
type ClientRecord struct {
	Clid     int
	Nickname string
	UID      string
	IP       string
	Cid      int // current channel, 0 if unknown
}

// clientStore owns the client map and the online set. Mutated from the
// dispatcher and the worker threads, so everything goes through the lock.
type clientStore struct {
	mu      sync.RWMutex
	records map[int]ClientRecord
	online  map[int]bool
}

func newClientStore() *clientStore {
	return &clientStore{records: map[int]ClientRecord{}, online: map[int]bool{}}
}

// Upsert merges non-empty fields of rec into the stored record.
func (cs *clientStore) Upsert(rec ClientRecord) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cur := cs.records[rec.Clid]
	cur.Clid = rec.Clid
	if rec.Nickname != "" {
		cur.Nickname = rec.Nickname
	}
	if rec.UID != "" {
		cur.UID = rec.UID
	}
	if rec.IP != "" {
		cur.IP = rec.IP
	}
	if rec.Cid != 0 {
		cur.Cid = rec.Cid
	}
	cs.records[rec.Clid] = cur
}

// Get returns the stored record for a clid.
func (cs *clientStore) Get(clid int) (ClientRecord, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	rec, ok := cs.records[clid]
	return rec, ok
}

// SetOnline flips a client's presence without touching its record.
func (cs *clientStore) SetOnline(clid int, online bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if online {
		cs.online[clid] = true
	} else {
		delete(cs.online, clid)
	}
}

// ReplaceOnline applies a full reference snapshot: records are merged,
// the online set is rebuilt wholesale.
func (cs *clientStore) ReplaceOnline(snapshot []ClientRecord) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.online = make(map[int]bool, len(snapshot))
	for _, rec := range snapshot {
		cur := cs.records[rec.Clid]
		cur.Clid = rec.Clid
		if rec.Nickname != "" {
			cur.Nickname = rec.Nickname
		}
		if rec.UID != "" {
			cur.UID = rec.UID
		}
		if rec.IP != "" {
			cur.IP = rec.IP
		}
		if rec.Cid != 0 {
			cur.Cid = rec.Cid
		}
		cs.records[rec.Clid] = cur
		cs.online[rec.Clid] = true
	}
}

// OnlineUIDToClid maps durable uids to their current transient clid, for
// poke delivery. Clients without a known uid are omitted.
func (cs *clientStore) OnlineUIDToClid() map[string]int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	m := map[string]int{}
	for clid := range cs.online {
		if rec, ok := cs.records[clid]; ok && rec.UID != "" {
			m[rec.UID] = clid
		}
	}
	return m
}

// Online returns the records of currently online clients, sorted by clid.
func (cs *clientStore) Online() []ClientRecord {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]ClientRecord, 0, len(cs.online))
	for clid := range cs.online {
		out = append(out, cs.records[clid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Clid < out[j].Clid })
	return out
}

// OnlineCount reports how many clients are currently online.
func (cs *clientStore) OnlineCount() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.online)
}

// channelStore is the cid -> name map, replaced wholesale each reference
// cycle. No diffing.
type channelStore struct {
	mu    sync.RWMutex
	names map[int]string
}

func newChannelStore() *channelStore {
	return &channelStore{names: map[int]string{}}
}

func (ch *channelStore) ReplaceAll(names map[int]string) {
	ch.mu.Lock()
	ch.names = names
	ch.mu.Unlock()
}

// Name resolves a cid, falling back to a literal "Channel <cid>" when the
// snapshot has not seen it yet.
func (ch *channelStore) Name(cid int) string {
	ch.mu.RLock()
	name, ok := ch.names[cid]
	ch.mu.RUnlock()
	if !ok || name == "" {
		return fmt.Sprintf("Channel %d", cid)
	}
	return name
}

func (ch *channelStore) Len() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.names)
}

// lockSet is the set of locked-down channels the sweep task empties.
// Read at enqueue time, mutated from chat commands on the worker thread.
type lockSet struct {
	mu   sync.Mutex
	cids map[int]bool
}

func newLockSet() *lockSet { return &lockSet{cids: map[int]bool{}} }

func (ls *lockSet) Lock(cid int) {
	ls.mu.Lock()
	ls.cids[cid] = true
	ls.mu.Unlock()
}

func (ls *lockSet) Unlock(cid int) {
	ls.mu.Lock()
	delete(ls.cids, cid)
	ls.mu.Unlock()
}

func (ls *lockSet) Locked(cid int) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.cids[cid]
}

func (ls *lockSet) List() []int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]int, 0, len(ls.cids))
	for cid := range ls.cids {
		out = append(out, cid)
	}
	sort.Ints(out)
	return out
}

// dedupFilter drops a notification identical to the immediately preceding
// one when it arrives inside the window. Guards against duplicate delivery
// from the transport, not against legitimate repeats.
type dedupFilter struct {
	mu      sync.Mutex
	window  time.Duration
	lastKey string
	lastAt  time.Time
	now     func() time.Time
}

func newDedupFilter(window time.Duration) *dedupFilter {
	return &dedupFilter{window: window, now: time.Now}
}

// Drop reports whether the raw payload should be discarded, and records it
// as the new previous key otherwise.
func (d *dedupFilter) Drop(raw string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if raw == d.lastKey && now.Sub(d.lastAt) < d.window {
		return true
	}
	d.lastKey = raw
	d.lastAt = now
	return false
}
