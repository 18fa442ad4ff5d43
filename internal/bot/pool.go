package bot

import (
	"sync"
	"time"

	"github.com/HEchternacht/rollabot/internal/clientquery"
)

// querySession is the slice of clientquery.Session the bot consumes.
// Narrowed to an interface so the loops can be exercised against fakes.
type querySession interface {
	Role() clientquery.Role
	IsAlive() bool
	Close()
	SendKeepalive() error
	WaitEvent(timeout time.Duration) (string, error)
	ClientList(opts clientquery.ClientListOpts) ([]map[string]string, error)
	ChannelList() ([]map[string]string, error)
	ClientPoke(clid int, msg string) error
	SendTextMessage(targetmode, target int, msg string) error
	ClientMove(cid, clid int) error
	Attached() (bool, error)
	ConnectServer() error
}

// connectFunc builds a fresh authenticated session for a role. Swapped out
// in tests.
type connectFunc func(role clientquery.Role) (querySession, error)

// sessionPool holds the four role slots. A slot is either a fully set up
// session or nil, never a half-connected one.
type sessionPool struct {
	mu    sync.RWMutex
	slots map[clientquery.Role]querySession
}

func newSessionPool() *sessionPool {
	return &sessionPool{slots: map[clientquery.Role]querySession{}}
}

// Get returns the session for a role, or nil if the slot is empty.
func (p *sessionPool) Get(role clientquery.Role) querySession {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slots[role]
}

// Replace installs a new session, closing any previous occupant.
func (p *sessionPool) Replace(role clientquery.Role, s querySession) {
	p.mu.Lock()
	old := p.slots[role]
	p.slots[role] = s
	p.mu.Unlock()
	if old != nil && old != s {
		old.Close()
	}
}

// Drop closes and empties a slot. The supervisor rebuilds it on its next
// tick.
func (p *sessionPool) Drop(role clientquery.Role) {
	p.mu.Lock()
	old := p.slots[role]
	delete(p.slots, role)
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// CloseAll tears every slot down. Used on shutdown; also unblocks the
// dispatcher's event wait.
func (p *sessionPool) CloseAll() {
	p.mu.Lock()
	slots := p.slots
	p.slots = map[clientquery.Role]querySession{}
	p.mu.Unlock()
	for _, s := range slots {
		if s != nil {
			s.Close()
		}
	}
}

// Alive reports the per-role liveness view for the panel.
func (p *sessionPool) Alive() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool, len(clientquery.Roles))
	for _, role := range clientquery.Roles {
		s := p.slots[role]
		out[string(role)] = s != nil && s.IsAlive()
	}
	return out
}
