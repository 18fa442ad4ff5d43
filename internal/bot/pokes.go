package bot

import (
	"log"
	"sync"
	"time"

	"github.com/HEchternacht/rollabot/internal/clientquery"
)

// pokeTTL bounds how long an undelivered poke is retried.
const pokeTTL = 24 * time.Hour

// PendingPoke is an at-least-once broadcast awaiting delivery. Targets are
// keyed by uid; delivered uids are removed each flush pass and the poke is
// dropped once the set empties or the TTL runs out.
type PendingPoke struct {
	Message   string
	Targets   map[string]bool
	CreatedAt time.Time
}

// pokeQueue holds undelivered pokes. Appended by the exp check, consumed
// by the worker on every flush cadence; both go through the lock.
type pokeQueue struct {
	mu    sync.Mutex
	pokes []*PendingPoke
	now   func() time.Time
}

func newPokeQueue() *pokeQueue {
	return &pokeQueue{now: time.Now}
}

// Enqueue appends one poke for the given target uids.
func (pq *pokeQueue) Enqueue(message string, uids []string) {
	if len(uids) == 0 {
		return
	}
	targets := make(map[string]bool, len(uids))
	for _, uid := range uids {
		targets[uid] = true
	}
	pq.mu.Lock()
	pq.pokes = append(pq.pokes, &PendingPoke{
		Message:   message,
		Targets:   targets,
		CreatedAt: pq.now(),
	})
	pq.mu.Unlock()
}

// Flush attempts delivery to every pending target currently online.
// Succeeded uids leave their poke's target set; exhausted or expired pokes
// are dropped. A connection-class error aborts the remaining attempts for
// all pokes in this pass; everything still pending stays queued for the
// next cadence.
func (pq *pokeQueue) Flush(online map[string]int, poke func(clid int, msg string) error) error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	now := pq.now()
	kept := pq.pokes[:0]
	var abort error

	for _, p := range pq.pokes {
		if now.Sub(p.CreatedAt) > pokeTTL {
			log.Printf("[pokes] dropping expired poke (%d targets left): %s",
				len(p.Targets), p.Message)
			continue
		}
		if abort == nil {
			for uid := range p.Targets {
				clid, isOnline := online[uid]
				if !isOnline {
					continue
				}
				if err := poke(clid, p.Message); err != nil {
					if clientquery.IsConnectionError(err) {
						abort = err
						break
					}
					log.Printf("[pokes] poke clid=%d failed: %v", clid, err)
					continue
				}
				delete(p.Targets, uid)
			}
		}
		if len(p.Targets) > 0 {
			kept = append(kept, p)
		}
	}

	pq.pokes = kept
	return abort
}

// Len reports how many pokes are still queued.
func (pq *pokeQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.pokes)
}
